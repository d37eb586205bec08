package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the plugin's system tables and seeds the initial admin
// user. Statements run one at a time; pgx rejects multi-statement strings.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range strings.Split(s.Dialect.SystemTablesSQL(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap system tables: %w", err)
		}
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	var count int
	err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	pb := s.Dialect.NewParamBuilder()
	_, err = Exec(ctx, s.DB,
		fmt.Sprintf(`INSERT INTO _users (id, email, name, password_hash, roles) VALUES (%s, %s, %s, %s, %s)`,
			pb.Add(uuid.New().String()), pb.Add("admin@example.com"), pb.Add("Administrator"),
			pb.Add(string(hash)), pb.Add(`["admin"]`)),
		pb.Params()...)
	if err != nil {
		return err
	}

	log.Println("Seeded admin user: admin@example.com / admin123 (change this password)")
	return nil
}
