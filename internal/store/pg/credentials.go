package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gatekit.org/internal/auth"
	"gatekit.org/internal/ids"
	"gatekit.org/internal/rbac"
)

var _ auth.CredentialStore = (*Store)(nil)

// FindByIdentifier resolves a login identifier (email) to an identity
// snapshot.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (auth.Identity, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	return s.findIdentity(ctx, `
		select id, email, role, status from users where email = $1
	`, identifier)
}

// Find resolves a subject id to a fresh identity snapshot.
func (s *Store) Find(ctx context.Context, subjectID string) (auth.Identity, error) {
	return s.findIdentity(ctx, `
		select id, email, role, status from users where id = $1
	`, subjectID)
}

func (s *Store) findIdentity(ctx context.Context, query, arg string) (auth.Identity, error) {
	var (
		identity auth.Identity
		role     string
		status   string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&identity.ID, &identity.Email, &role, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("identity %s: %w", identity.ID, err)
	}
	identity.Role = parsed
	identity.Status = auth.Status(status)
	return identity, nil
}

// VerifySecret checks the secret against the stored hash. The hash never
// leaves this adapter.
func (s *Store) VerifySecret(ctx context.Context, subjectID, secret string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		select password_hash from users where id = $1
	`, subjectID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, auth.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return auth.VerifyPassword(hash, secret), nil
}

// CreateUser inserts a new identity. Used by seeding and operator tooling;
// registration flows live outside this service.
func (s *Store) CreateUser(ctx context.Context, email, password string, role rbac.Role) (auth.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return auth.Identity{}, errors.New("pg: valid email is required")
	}
	if !role.Valid() {
		return auth.Identity{}, fmt.Errorf("pg: invalid role %q", role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return auth.Identity{}, err
	}

	id := ids.New()
	_, err = s.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, role, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, now(), now())
	`, id, email, hash, string(role), string(auth.StatusActive))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Identity{}, fmt.Errorf("pg: email already registered")
		}
		return auth.Identity{}, err
	}
	return auth.Identity{ID: id, Email: email, Role: role, Status: auth.StatusActive}, nil
}

// SetRole updates a subject's role. The new role takes effect for already
// issued tokens only after the subject's generation is bumped.
func (s *Store) SetRole(ctx context.Context, subjectID string, role rbac.Role) error {
	if !role.Valid() {
		return fmt.Errorf("pg: invalid role %q", role)
	}
	res, err := s.db.ExecContext(ctx, `
		update users set role = $2, updated_at = now() where id = $1
	`, subjectID, string(role))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// SetStatus enables or disables a subject.
func (s *Store) SetStatus(ctx context.Context, subjectID string, status auth.Status) error {
	if status != auth.StatusActive && status != auth.StatusDisabled {
		return fmt.Errorf("pg: unsupported status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		update users set status = $2, updated_at = now() where id = $1
	`, subjectID, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
