package engine

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the API. The caller supplies auth middleware so this
// package stays free of token concerns; adminOnly guards everything that
// mutates configuration or reads the audit trail.
func RegisterRoutes(app *fiber.App, h *Handler, authed fiber.Handler, adminOnly fiber.Handler) {
	api := app.Group("/api", authed)

	api.Post("/validate", h.Validate)

	rules := api.Group("/rules", adminOnly)
	rules.Get("/export", h.ExportRules)
	rules.Post("/import", h.ImportRules)
	rules.Get("/", h.ListRules)
	rules.Post("/", h.CreateRule)
	rules.Get("/:id", h.GetRule)
	rules.Put("/:id", h.UpdateRule)
	rules.Delete("/:id", h.DeleteRule)
	rules.Post("/:id/duplicate", h.DuplicateRule)
	rules.Post("/:id/toggle", h.ToggleRule)

	logs := api.Group("/logs", adminOnly)
	logs.Get("/recent", h.RecentLogs)
	logs.Get("/export.csv", h.ExportLogsCSV)
	logs.Delete("/old", h.PruneLogs)
	logs.Get("/", h.ListLogs)

	api.Get("/settings", adminOnly, h.GetSettings)
	api.Put("/settings", adminOnly, h.UpdateSettings)
	api.Get("/stats", adminOnly, h.Stats)

	schema := api.Group("/schema", adminOnly)
	schema.Get("/tables", h.SchemaTables)
	schema.Get("/tables/:name/fields", h.SchemaFields)

	api.Post("/admin/reset", adminOnly, h.Reset)
}
