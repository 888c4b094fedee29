package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gridbase/gridbase/pkg/database"
	"github.com/gridbase/gridbase/pkg/logger"
)

// Service resolves per-user table and column capabilities. It is the
// single gate in front of the query builder and the row store.
type Service struct {
	db     *database.PostgreSQL
	logger *logger.Logger
}

// NewService creates a new permissions service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// CheckTable decides whether the principal holds the capability on the
// table. Default-deny: without a record, non-admins get nothing.
func (s *Service) CheckTable(ctx context.Context, p Principal, tableID string, cap Capability) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}

	rec, err := s.getTablePermission(ctx, p, tableID)
	if err != nil {
		return false, err
	}

	return resolveTable(p, rec, cap) == Granted, nil
}

// CheckColumn decides whether the principal holds the capability on the
// column. Only read and edit exist at column level.
func (s *Service) CheckColumn(ctx context.Context, p Principal, tableID, columnID string, cap Capability) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}
	if cap == CapDelete {
		return false, nil
	}

	rec, err := s.getColumnPermission(ctx, p, tableID, columnID)
	if err != nil {
		return false, err
	}

	return resolveColumn(p, rec, cap) == Granted, nil
}

// ReadableColumns filters columnIDs down to those the principal may
// read. Admins see every column.
func (s *Service) ReadableColumns(ctx context.Context, p Principal, tableID string, columnIDs []string) ([]string, error) {
	if p.IsAdmin() {
		out := make([]string, len(columnIDs))
		copy(out, columnIDs)
		return out, nil
	}

	query := `
		SELECT column_id
		FROM column_permissions
		WHERE user_id = $1 AND table_id = $2 AND tenant_id = $3 AND can_read = TRUE
	`

	rows, err := s.db.Pool().Query(ctx, query, p.UserID, tableID, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query column permissions: %w", err)
	}
	defer rows.Close()

	readable := make(map[string]bool)
	for rows.Next() {
		var columnID string
		if err := rows.Scan(&columnID); err != nil {
			return nil, err
		}
		readable[columnID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, id := range columnIDs {
		if readable[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Service) getTablePermission(ctx context.Context, p Principal, tableID string) (*TablePermission, error) {
	query := `
		SELECT permission_id, user_id, table_id, tenant_id, can_read, can_edit, can_delete, created, updated
		FROM table_permissions
		WHERE user_id = $1 AND table_id = $2 AND tenant_id = $3
	`

	var rec TablePermission
	err := s.db.Pool().QueryRow(ctx, query, p.UserID, tableID, p.TenantID).Scan(
		&rec.ID, &rec.UserID, &rec.TableID, &rec.TenantID,
		&rec.CanRead, &rec.CanEdit, &rec.CanDelete, &rec.Created, &rec.Updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query table permission: %w", err)
	}

	return &rec, nil
}

func (s *Service) getColumnPermission(ctx context.Context, p Principal, tableID, columnID string) (*ColumnPermission, error) {
	query := `
		SELECT permission_id, user_id, table_id, column_id, tenant_id, can_read, can_edit, created, updated
		FROM column_permissions
		WHERE user_id = $1 AND table_id = $2 AND column_id = $3 AND tenant_id = $4
	`

	var rec ColumnPermission
	err := s.db.Pool().QueryRow(ctx, query, p.UserID, tableID, columnID, p.TenantID).Scan(
		&rec.ID, &rec.UserID, &rec.TableID, &rec.ColumnID, &rec.TenantID,
		&rec.CanRead, &rec.CanEdit, &rec.Created, &rec.Updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query column permission: %w", err)
	}

	return &rec, nil
}

// GrantTable upserts a table permission record for a user.
func (s *Service) GrantTable(ctx context.Context, tenantID, userID, tableID string, canRead, canEdit, canDelete bool) error {
	s.logger.Infof("Granting table permission on %s to user %s", tableID, userID)

	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO table_permissions (user_id, table_id, tenant_id, can_read, can_edit, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, table_id)
		DO UPDATE SET can_read = $4, can_edit = $5, can_delete = $6, updated = CURRENT_TIMESTAMP
	`, userID, tableID, tenantID, canRead, canEdit, canDelete)
	if err != nil {
		s.logger.Errorf("Failed to grant table permission: %v", err)
		return err
	}

	return nil
}

// GrantColumn upserts a column permission record for a user.
func (s *Service) GrantColumn(ctx context.Context, tenantID, userID, tableID, columnID string, canRead, canEdit bool) error {
	s.logger.Infof("Granting column permission on %s to user %s", columnID, userID)

	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO column_permissions (user_id, table_id, column_id, tenant_id, can_read, can_edit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, table_id, column_id)
		DO UPDATE SET can_read = $5, can_edit = $6, updated = CURRENT_TIMESTAMP
	`, userID, tableID, columnID, tenantID, canRead, canEdit)
	if err != nil {
		s.logger.Errorf("Failed to grant column permission: %v", err)
		return err
	}

	return nil
}

// RevokeTable removes a user's table permission record, restoring the
// default-deny state.
func (s *Service) RevokeTable(ctx context.Context, tenantID, userID, tableID string) error {
	_, err := s.db.Pool().Exec(ctx,
		`DELETE FROM table_permissions WHERE user_id = $1 AND table_id = $2 AND tenant_id = $3`,
		userID, tableID, tenantID,
	)
	return err
}

// RevokeColumn removes a user's column permission record.
func (s *Service) RevokeColumn(ctx context.Context, tenantID, userID, tableID, columnID string) error {
	_, err := s.db.Pool().Exec(ctx,
		`DELETE FROM column_permissions WHERE user_id = $1 AND table_id = $2 AND column_id = $3 AND tenant_id = $4`,
		userID, tableID, columnID, tenantID,
	)
	return err
}
