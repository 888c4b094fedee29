package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gridbase/gridbase/pkg/apperror"
	"github.com/gridbase/gridbase/pkg/database"
	"github.com/gridbase/gridbase/pkg/logger"
)

// Service owns database, table and column definitions.
type Service struct {
	db     *database.PostgreSQL
	logger *logger.Logger
}

// NewService creates a new catalog service
func NewService(db *database.PostgreSQL, logger *logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// mapStoreError converts low-level pgx errors into the engine taxonomy.
func mapStoreError(err error, field, notFoundMsg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("%s", notFoundMsg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperror.Conflict(field, "name already in use")
		case foreignKeyViolation:
			return apperror.NotFound("referenced record not found")
		}
	}
	return err
}

// checkReferenceTargets resolves every reference column's target table
// within the requesting tenant. A table owned by another tenant is
// indistinguishable from a missing one, so a guessed id never confirms
// that the table exists elsewhere.
func (s *Service) checkReferenceTargets(ctx context.Context, tenantID string, defs []ColumnDefinition) error {
	for _, def := range defs {
		if def.ReferenceTableID == "" {
			continue
		}
		var exists bool
		err := s.db.Pool().QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM tables WHERE table_id = $1 AND tenant_id = $2)",
			def.ReferenceTableID, tenantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check reference target: %w", err)
		}
		if !exists {
			return apperror.NotFound("referenced table not found")
		}
	}
	return nil
}

// ProvisionTenant creates a tenant together with its initial database.
func (s *Service) ProvisionTenant(ctx context.Context, tenantName, databaseName string) (*Database, error) {
	s.logger.Infof("Provisioning tenant %q with database %q", tenantName, databaseName)

	var db Database
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var tenantID string
		err := tx.QueryRow(ctx,
			`INSERT INTO tenants (tenant_name) VALUES ($1) RETURNING tenant_id`,
			tenantName,
		).Scan(&tenantID)
		if err != nil {
			return mapStoreError(err, "tenant_name", "tenant not found")
		}

		return tx.QueryRow(ctx, `
			INSERT INTO databases (tenant_id, database_name)
			VALUES ($1, $2)
			RETURNING database_id, tenant_id, database_name, created, updated
		`, tenantID, databaseName).Scan(&db.ID, &db.TenantID, &db.Name, &db.Created, &db.Updated)
	})
	if err != nil {
		s.logger.Errorf("Failed to provision tenant: %v", err)
		return nil, err
	}

	return &db, nil
}

// GetDatabase retrieves a database scoped to the tenant.
func (s *Service) GetDatabase(ctx context.Context, tenantID, databaseID string) (*Database, error) {
	query := `
		SELECT database_id, tenant_id, database_name, created, updated
		FROM databases
		WHERE database_id = $1 AND tenant_id = $2
	`

	var db Database
	err := s.db.Pool().QueryRow(ctx, query, databaseID, tenantID).Scan(
		&db.ID, &db.TenantID, &db.Name, &db.Created, &db.Updated,
	)
	if err != nil {
		return nil, mapStoreError(err, "database", "database not found")
	}

	return &db, nil
}

// CreateTable creates a table with its initial column set. The column
// definitions are checked against the static schema rules first; a name
// collision within the database is a validation error.
func (s *Service) CreateTable(ctx context.Context, tenantID, databaseID, name string, defs []ColumnDefinition) (*Table, error) {
	s.logger.Infof("Creating table %q in database %s", name, databaseID)

	if name == "" {
		return nil, apperror.Validation("name", "table name must not be empty")
	}
	if err := ValidateColumnDefinitions(defs); err != nil {
		return nil, err
	}

	// The database must belong to the requesting tenant.
	if _, err := s.GetDatabase(ctx, tenantID, databaseID); err != nil {
		return nil, err
	}
	if err := s.checkReferenceTargets(ctx, tenantID, defs); err != nil {
		return nil, err
	}

	var nameExists bool
	err := s.db.Pool().QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM tables WHERE database_id = $1 AND table_name = $2)",
		databaseID, name,
	).Scan(&nameExists)
	if err != nil {
		return nil, fmt.Errorf("failed to check table name existence: %w", err)
	}
	if nameExists {
		return nil, apperror.Validation("name", "table %q already exists in this database", name)
	}

	var table Table
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO tables (database_id, tenant_id, table_name)
			VALUES ($1, $2, $3)
			RETURNING table_id, database_id, tenant_id, table_name, is_predefined, is_protected, created, updated
		`, databaseID, tenantID, name).Scan(
			&table.ID, &table.DatabaseID, &table.TenantID, &table.Name,
			&table.IsPredefined, &table.IsProtected, &table.Created, &table.Updated,
		)
		if err != nil {
			return mapStoreError(err, "name", "database not found")
		}

		for _, def := range defs {
			col, err := insertColumn(ctx, tx, table.ID, tenantID, def)
			if err != nil {
				return err
			}
			table.Columns = append(table.Columns, *col)
		}
		return nil
	})
	if err != nil {
		s.logger.Errorf("Failed to create table: %v", err)
		return nil, err
	}

	return &table, nil
}

func insertColumn(ctx context.Context, tx pgx.Tx, tableID, tenantID string, def ColumnDefinition) (*Column, error) {
	var col Column
	var refTable *string
	if def.ReferenceTableID != "" {
		refTable = &def.ReferenceTableID
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO columns (table_id, tenant_id, column_name, column_type, required, is_primary, position, custom_options, reference_table_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING column_id, table_id, tenant_id, column_name, column_type, required, is_primary, position, custom_options, reference_table_id, created, updated
	`, tableID, tenantID, def.Name, string(def.Type), def.Required, def.Primary, def.Position, def.CustomOptions, refTable).Scan(
		&col.ID, &col.TableID, &col.TenantID, &col.Name, (*string)(&col.Type),
		&col.Required, &col.Primary, &col.Position, &col.CustomOptions, &refTable,
		&col.Created, &col.Updated,
	)
	if err != nil {
		return nil, mapStoreError(err, def.Name, "table not found")
	}
	if refTable != nil {
		col.ReferenceTableID = *refTable
	}
	return &col, nil
}

// GetTable retrieves a table and its ordered columns scoped to the
// tenant. A table owned by another tenant is indistinguishable from a
// missing one.
func (s *Service) GetTable(ctx context.Context, tenantID, tableID string) (*Table, error) {
	query := `
		SELECT table_id, database_id, tenant_id, table_name, is_predefined, is_protected, created, updated
		FROM tables
		WHERE table_id = $1 AND tenant_id = $2
	`

	var table Table
	err := s.db.Pool().QueryRow(ctx, query, tableID, tenantID).Scan(
		&table.ID, &table.DatabaseID, &table.TenantID, &table.Name,
		&table.IsPredefined, &table.IsProtected, &table.Created, &table.Updated,
	)
	if err != nil {
		return nil, mapStoreError(err, "table", "table not found")
	}

	columns, err := s.listColumns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	table.Columns = columns

	return &table, nil
}

func (s *Service) listColumns(ctx context.Context, tableID string) ([]Column, error) {
	query := `
		SELECT column_id, table_id, tenant_id, column_name, column_type, required, is_primary, position, custom_options, reference_table_id, created, updated
		FROM columns
		WHERE table_id = $1
		ORDER BY position
	`

	rows, err := s.db.Pool().Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var refTable *string
		err := rows.Scan(
			&col.ID, &col.TableID, &col.TenantID, &col.Name, (*string)(&col.Type),
			&col.Required, &col.Primary, &col.Position, &col.CustomOptions, &refTable,
			&col.Created, &col.Updated,
		)
		if err != nil {
			return nil, err
		}
		if refTable != nil {
			col.ReferenceTableID = *refTable
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}

// ListTables retrieves all tables of a database scoped to the tenant.
func (s *Service) ListTables(ctx context.Context, tenantID, databaseID string) ([]*Table, error) {
	query := `
		SELECT table_id, database_id, tenant_id, table_name, is_predefined, is_protected, created, updated
		FROM tables
		WHERE database_id = $1 AND tenant_id = $2
		ORDER BY table_name
	`

	rows, err := s.db.Pool().Query(ctx, query, databaseID, tenantID)
	if err != nil {
		s.logger.Errorf("Failed to list tables: %v", err)
		return nil, fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		var table Table
		err := rows.Scan(
			&table.ID, &table.DatabaseID, &table.TenantID, &table.Name,
			&table.IsPredefined, &table.IsProtected, &table.Created, &table.Updated,
		)
		if err != nil {
			return nil, err
		}
		tables = append(tables, &table)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tables, nil
}

// AddColumn appends a column to an existing table. The new column takes
// the next position so ordering stays contiguous. Schema edits on the
// same table are serialized by a transaction-scoped advisory lock.
func (s *Service) AddColumn(ctx context.Context, tenantID, tableID string, def ColumnDefinition) (*Column, error) {
	s.logger.Infof("Adding column %q to table %s", def.Name, tableID)

	table, err := s.GetTable(ctx, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferenceTargets(ctx, tenantID, []ColumnDefinition{def}); err != nil {
		return nil, err
	}

	var col *Column
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockTableSchema(ctx, tx, tableID); err != nil {
			return err
		}

		// Re-read the column set under the lock so concurrent edits
		// cannot produce duplicate names or positions.
		existing, err := listColumnsTx(ctx, tx, tableID)
		if err != nil {
			return err
		}

		merged := make([]ColumnDefinition, 0, len(existing)+1)
		for _, c := range existing {
			merged = append(merged, ColumnDefinition{
				Name: c.Name, Type: c.Type, Required: c.Required, Primary: c.Primary,
				Position: c.Position, CustomOptions: c.CustomOptions, ReferenceTableID: c.ReferenceTableID,
			})
		}
		def.Position = len(existing)
		merged = append(merged, def)

		if err := ValidateColumnDefinitions(merged); err != nil {
			return err
		}

		col, err = insertColumn(ctx, tx, table.ID, tenantID, def)
		return err
	})
	if err != nil {
		s.logger.Errorf("Failed to add column: %v", err)
		return nil, err
	}

	return col, nil
}

// ReorderColumns applies a full ordering of column ids to the table.
func (s *Service) ReorderColumns(ctx context.Context, tenantID, tableID string, orderedIDs []string) error {
	s.logger.Infof("Reordering %d columns on table %s", len(orderedIDs), tableID)

	if _, err := s.GetTable(ctx, tenantID, tableID); err != nil {
		return err
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockTableSchema(ctx, tx, tableID); err != nil {
			return err
		}

		existing, err := listColumnsTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := ValidateReorder(existing, orderedIDs); err != nil {
			return err
		}

		for position, columnID := range orderedIDs {
			tag, err := tx.Exec(ctx,
				`UPDATE columns SET position = $1, updated = CURRENT_TIMESTAMP WHERE column_id = $2 AND table_id = $3`,
				position, columnID, tableID,
			)
			if err != nil {
				return fmt.Errorf("failed to update column position: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return apperror.NotFound("column not found")
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Errorf("Failed to reorder columns: %v", err)
		return err
	}

	return nil
}

// DeleteColumn removes a column and resequences the remaining ones.
func (s *Service) DeleteColumn(ctx context.Context, tenantID, tableID, columnID string) error {
	s.logger.Infof("Deleting column %s from table %s", columnID, tableID)

	if _, err := s.GetTable(ctx, tenantID, tableID); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockTableSchema(ctx, tx, tableID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM columns WHERE column_id = $1 AND table_id = $2`,
			columnID, tableID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete column: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("column not found")
		}

		// Close the ordering gap left by the deleted column.
		remaining, err := listColumnsTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		for position, col := range remaining {
			if col.Position == position {
				continue
			}
			if _, err := tx.Exec(ctx,
				`UPDATE columns SET position = $1, updated = CURRENT_TIMESTAMP WHERE column_id = $2`,
				position, col.ID,
			); err != nil {
				return fmt.Errorf("failed to resequence columns: %w", err)
			}
		}
		return nil
	})
}

// UpdateColumn changes a column's name and/or required flag. Type
// changes are not supported; existing cells would silently change
// meaning.
func (s *Service) UpdateColumn(ctx context.Context, tenantID, tableID, columnID string, newName *string, required *bool) (*Column, error) {
	s.logger.Infof("Updating column %s on table %s", columnID, tableID)

	if newName == nil && required == nil {
		return nil, apperror.Validation("column", "nothing to update")
	}
	if newName != nil && *newName == "" {
		return nil, apperror.Validation("name", "column name must not be empty")
	}

	if _, err := s.GetTable(ctx, tenantID, tableID); err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	if newName != nil {
		setClauses = append(setClauses, fmt.Sprintf("column_name = $%d", argIndex))
		args = append(args, *newName)
		argIndex++
	}
	if required != nil {
		setClauses = append(setClauses, fmt.Sprintf("required = $%d", argIndex))
		args = append(args, *required)
		argIndex++
	}
	setClauses = append(setClauses, "updated = CURRENT_TIMESTAMP")

	query := fmt.Sprintf(`
		UPDATE columns SET %s
		WHERE column_id = $%d AND table_id = $%d
		RETURNING column_id, table_id, tenant_id, column_name, column_type, required, is_primary, position, custom_options, reference_table_id, created, updated
	`, strings.Join(setClauses, ", "), argIndex, argIndex+1)
	args = append(args, columnID, tableID)

	var col Column
	var refTable *string
	err := s.db.Pool().QueryRow(ctx, query, args...).Scan(
		&col.ID, &col.TableID, &col.TenantID, &col.Name, (*string)(&col.Type),
		&col.Required, &col.Primary, &col.Position, &col.CustomOptions, &refTable,
		&col.Created, &col.Updated,
	)
	if err != nil {
		return nil, mapStoreError(err, "name", "column not found")
	}
	if refTable != nil {
		col.ReferenceTableID = *refTable
	}

	return &col, nil
}

// DeleteTable deletes a table and everything under it. Predefined and
// protected tables are refused.
func (s *Service) DeleteTable(ctx context.Context, tenantID, tableID string) error {
	s.logger.Infof("Deleting table %s", tableID)

	table, err := s.GetTable(ctx, tenantID, tableID)
	if err != nil {
		return err
	}
	if table.IsProtected || table.IsPredefined {
		return apperror.PermissionDenied("table %q is protected and cannot be deleted", table.Name)
	}

	// Columns, rows, cells and permissions cascade via foreign keys.
	commandTag, err := s.db.Pool().Exec(ctx,
		`DELETE FROM tables WHERE table_id = $1 AND tenant_id = $2`,
		tableID, tenantID,
	)
	if err != nil {
		s.logger.Errorf("Failed to delete table: %v", err)
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return apperror.NotFound("table not found")
	}

	return nil
}

// RenameTable renames a table within its database.
func (s *Service) RenameTable(ctx context.Context, tenantID, tableID, newName string) (*Table, error) {
	if newName == "" {
		return nil, apperror.Validation("name", "table name must not be empty")
	}

	var table Table
	err := s.db.Pool().QueryRow(ctx, `
		UPDATE tables SET table_name = $1, updated = CURRENT_TIMESTAMP
		WHERE table_id = $2 AND tenant_id = $3
		RETURNING table_id, database_id, tenant_id, table_name, is_predefined, is_protected, created, updated
	`, newName, tableID, tenantID).Scan(
		&table.ID, &table.DatabaseID, &table.TenantID, &table.Name,
		&table.IsPredefined, &table.IsProtected, &table.Created, &table.Updated,
	)
	if err != nil {
		return nil, mapStoreError(err, "name", "table not found")
	}

	return &table, nil
}

// lockTableSchema takes the per-table advisory lock held for the rest
// of the transaction, serializing concurrent schema edits.
func lockTableSchema(ctx context.Context, tx pgx.Tx, tableID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tableID)
	if err != nil {
		return fmt.Errorf("failed to lock table schema: %w", err)
	}
	return nil
}

func listColumnsTx(ctx context.Context, tx pgx.Tx, tableID string) ([]Column, error) {
	rows, err := tx.Query(ctx, `
		SELECT column_id, table_id, tenant_id, column_name, column_type, required, is_primary, position, custom_options, reference_table_id, created, updated
		FROM columns
		WHERE table_id = $1
		ORDER BY position
	`, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var refTable *string
		err := rows.Scan(
			&col.ID, &col.TableID, &col.TenantID, &col.Name, (*string)(&col.Type),
			&col.Required, &col.Primary, &col.Position, &col.CustomOptions, &refTable,
			&col.Created, &col.Updated,
		)
		if err != nil {
			return nil, err
		}
		if refTable != nil {
			col.ReferenceTableID = *refTable
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}
