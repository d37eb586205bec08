package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"rulegate/internal/metadata"
	"rulegate/internal/settings"
	"rulegate/internal/store"
)

// Handler serves the validation and administration API.
type Handler struct {
	Rules     RuleStore
	Logs      LogStore
	Settings  *settings.Store
	Registry  *metadata.Registry
	Validator *Validator
}

func NewHandler(rules RuleStore, logs LogStore, cfg *settings.Store, registry *metadata.Registry, validator *Validator) *Handler {
	return &Handler{Rules: rules, Logs: logs, Settings: cfg, Registry: registry, Validator: validator}
}

func currentUser(c *fiber.Ctx) *metadata.UserContext {
	if user, ok := c.Locals("user").(*metadata.UserContext); ok {
		return user
	}
	return nil
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, NewAppError("BAD_REQUEST", 400, "invalid id")
	}
	return id, nil
}

// --- validation ---

type validateRequest struct {
	TableName string        `json:"tableName"`
	RecordNum int64         `json:"recordNum"`
	Record    RecordContext `json:"record"`
}

func (h *Handler) Validate(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return NewAppError("BAD_REQUEST", 400, "invalid request body")
	}
	if req.TableName == "" {
		return NewAppError("BAD_REQUEST", 400, "tableName is required")
	}

	outcome, err := h.Validator.Validate(c.Context(), req.TableName, req.RecordNum, req.Record, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(outcome)
}

// --- rules ---

func (h *Handler) ListRules(c *fiber.Ctx) error {
	if table := c.Query("table"); table != "" {
		rules, err := h.Rules.ListForTable(c.Context(), table, c.QueryBool("activeOnly"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"rules": rules})
	}

	rules, err := h.Rules.ListAll(c.Context(), c.Query("sort"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rules": rules})
}

func (h *Handler) GetRule(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	rule, err := h.Rules.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("rule", id)
		}
		return err
	}
	return c.JSON(rule)
}

func (h *Handler) CreateRule(c *fiber.Ctx) error {
	var rule metadata.Rule
	if err := c.BodyParser(&rule); err != nil {
		return NewAppError("BAD_REQUEST", 400, "invalid request body")
	}
	if details := ValidateRule(&rule); len(details) > 0 {
		return ValidationError(details)
	}

	if user := currentUser(c); user != nil {
		rule.CreatedBy = user.ID
		rule.UpdatedBy = user.ID
	}

	id, err := h.Rules.Create(c.Context(), &rule)
	if err != nil {
		return err
	}
	rule.Num = id

	resp := fiber.Map{"rule": &rule}
	if warning := h.ruleCountWarning(c, rule.TableName); warning != "" {
		resp["warning"] = warning
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ruleCountWarning flags tables that exceed the advisory per-table rule cap.
// The cap never blocks creation.
func (h *Handler) ruleCountWarning(c *fiber.Ctx, table string) string {
	cfg := h.Settings.Load()
	rules, err := h.Rules.ListForTable(c.Context(), table, false)
	if err != nil || len(rules) <= cfg.MaxRulesPerTable {
		return ""
	}
	return fmt.Sprintf("table %s now has %d rules, above the configured maximum of %d",
		table, len(rules), cfg.MaxRulesPerTable)
}

func (h *Handler) UpdateRule(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var rule metadata.Rule
	if err := c.BodyParser(&rule); err != nil {
		return NewAppError("BAD_REQUEST", 400, "invalid request body")
	}
	if details := ValidateRule(&rule); len(details) > 0 {
		return ValidationError(details)
	}

	if user := currentUser(c); user != nil {
		rule.UpdatedBy = user.ID
	}

	if err := h.Rules.Update(c.Context(), id, &rule); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("rule", id)
		}
		return err
	}

	updated, err := h.Rules.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (h *Handler) DeleteRule(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	deleted, err := h.Rules.Delete(c.Context(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("rule", id)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func (h *Handler) DuplicateRule(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	actor := ""
	if user := currentUser(c); user != nil {
		actor = user.ID
	}

	newID, err := h.Rules.Duplicate(c.Context(), id, actor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("rule", id)
		}
		return err
	}

	rule, err := h.Rules.Get(c.Context(), newID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *Handler) ToggleRule(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	rule, err := h.Rules.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError("rule", id)
		}
		return err
	}

	if err := h.Rules.SetActive(c.Context(), id, !rule.IsActive); err != nil {
		return err
	}
	rule.IsActive = !rule.IsActive
	return c.JSON(rule)
}

func (h *Handler) ExportRules(c *fiber.Ctx) error {
	env, err := ExportRules(c.Context(), h.Rules)
	if err != nil {
		return err
	}
	c.Set("Content-Disposition", `attachment; filename="validation-rules.json"`)
	return c.JSON(env)
}

func (h *Handler) ImportRules(c *fiber.Ctx) error {
	var env ExportEnvelope
	if err := c.BodyParser(&env); err != nil {
		return NewAppError("BAD_REQUEST", 400, "invalid import bundle")
	}

	actor := ""
	if user := currentUser(c); user != nil {
		actor = user.ID
	}

	result, err := ImportRules(c.Context(), h.Rules, &env, actor)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// --- logs ---

func logFilterFromQuery(c *fiber.Ctx) LogFilter {
	f := LogFilter{
		Table:    c.Query("table"),
		DateFrom: c.Query("dateFrom"),
		DateTo:   c.Query("dateTo"),
	}
	if v := c.Query("ruleNum"); v != "" {
		f.RuleNum, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("blocked"); v != "" {
		blocked := v == "true" || v == "1"
		f.Blocked = &blocked
	}
	return f
}

func (h *Handler) ListLogs(c *fiber.Ctx) error {
	page, err := h.Logs.Query(c.Context(), LogQuery{
		LogFilter: logFilterFromQuery(c),
		Page:      c.QueryInt("page", 1),
		PerPage:   c.QueryInt("perPage", defaultLogPerPage),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handler) RecentLogs(c *fiber.Ctx) error {
	entries, err := h.Logs.Recent(c.Context(), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (h *Handler) ExportLogsCSV(c *fiber.Ctx) error {
	entries, err := h.Logs.ListFiltered(c.Context(), logFilterFromQuery(c))
	if err != nil {
		return err
	}

	c.Set("Content-Type", "text/csv; charset=utf-8")
	c.Set("Content-Disposition", `attachment; filename="validation-logs.csv"`)
	return WriteLogsCSV(c, entries)
}

func (h *Handler) PruneLogs(c *fiber.Ctx) error {
	days := c.QueryInt("days", 0)
	if days < 1 {
		days = h.Settings.Load().LogRetentionDays
	}
	deleted, err := h.Logs.PruneOlderThan(c.Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": deleted, "days": days})
}

// --- settings ---

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(h.Settings.Load())
}

func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	in := h.Settings.Load()
	if err := c.BodyParser(&in); err != nil {
		return NewAppError("BAD_REQUEST", 400, "invalid settings body")
	}
	if err := h.Settings.Save(in); err != nil {
		return err
	}
	return c.JSON(h.Settings.Load())
}

// --- stats / schema / reset ---

func (h *Handler) Stats(c *fiber.Ctx) error {
	ruleCounts, err := h.Rules.Counts(c.Context())
	if err != nil {
		return err
	}
	logStats, err := h.Logs.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rules": ruleCounts, "logs": logStats})
}

func (h *Handler) SchemaTables(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tables": h.Registry.Tables()})
}

func (h *Handler) SchemaFields(c *fiber.Ctx) error {
	table := c.Params("name")
	fields := h.Registry.Fields(table)
	if fields == nil {
		return NewAppError("NOT_FOUND", 404, fmt.Sprintf("table %s not found", table))
	}
	return c.JSON(fiber.Map{"table": table, "fields": fields})
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// Reset wipes all rules, all logs, and the settings document. Requires an
// explicit confirm flag in the body.
func (h *Handler) Reset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil || !req.Confirm {
		return NewAppError("CONFIRM_REQUIRED", 400, `reset requires {"confirm": true}`)
	}

	if err := h.Rules.Reset(c.Context()); err != nil {
		return err
	}
	if err := h.Logs.Reset(c.Context()); err != nil {
		return err
	}
	if err := h.Settings.Delete(); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reset": true})
}
