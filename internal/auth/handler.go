package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"rulegate/internal/engine"
	"rulegate/internal/metadata"
	"rulegate/internal/store"
)

// Handler serves login against the _users table.
type Handler struct {
	store  *store.Store
	secret string
}

func NewHandler(s *store.Store, secret string) *Handler {
	return &Handler{store: s, secret: secret}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string                `json:"token"`
	User  *metadata.UserContext `json:"user"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return engine.NewAppError("BAD_REQUEST", 400, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return engine.NewAppError("BAD_REQUEST", 400, "email and password are required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(c.Context(), h.store.DB,
		fmt.Sprintf(`SELECT id, email, name, password_hash, roles, active FROM _users WHERE email = %s`,
			pb.Add(req.Email)),
		pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.UnauthorizedError("invalid credentials")
		}
		return err
	}

	if !rowActive(row) {
		return engine.UnauthorizedError("account disabled")
	}

	hash, _ := row["password_hash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return engine.UnauthorizedError("invalid credentials")
	}

	var roles []string
	if raw, ok := row["roles"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &roles); err != nil {
			roles = nil
		}
	}

	user := &metadata.UserContext{
		ID:    asString(row["id"]),
		Email: asString(row["email"]),
		Name:  asString(row["name"]),
		Roles: roles,
	}

	token, err := GenerateToken(h.secret, user)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse{Token: token, User: user})
}

func rowActive(row map[string]any) bool {
	switch v := row["active"].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	default:
		return false
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
