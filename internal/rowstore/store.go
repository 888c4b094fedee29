package rowstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gridbase/gridbase/internal/coltype"
	"github.com/gridbase/gridbase/internal/filter"
	"github.com/gridbase/gridbase/pkg/apperror"
	"github.com/gridbase/gridbase/pkg/database"
	"github.com/gridbase/gridbase/pkg/logger"
)

// Store persists rows and their sparse cells. Cells only exist where a
// value was written; an unwritten cell is indistinguishable from an
// explicit null.
type Store struct {
	db     *database.PostgreSQL
	logger *logger.Logger
}

// NewStore creates a new row store
func NewStore(db *database.PostgreSQL, logger *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// CellValues maps column ids to validated typed values.
type CellValues map[string]coltype.TypedValue

// cellParams splits a typed value into the five nullable value columns
// of the cells relation. Exactly one of them is non-nil.
func cellParams(v coltype.TypedValue) (text *string, number *float64, boolean *bool, date *time.Time, ref *int64) {
	switch v.Kind {
	case coltype.KindText, coltype.KindEnum:
		text = &v.Text
	case coltype.KindNumber:
		number = &v.Number
	case coltype.KindBool:
		boolean = &v.Bool
	case coltype.KindDate:
		d := v.Date.UTC()
		date = &d
	case coltype.KindRef:
		ref = &v.Ref
	}
	return
}

// CreateRow inserts a row together with its initial cells in one
// transaction, so a partially written row is never observable. Null
// values produce no cell.
func (s *Store) CreateRow(ctx context.Context, tenantID, tableID string, values CellValues) (*filter.Row, error) {
	s.logger.Debugf("Creating row in table %s with %d cells", tableID, len(values))

	row := filter.Row{Cells: make(map[string]interface{}, len(values))}
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO rows (table_id, tenant_id)
			VALUES ($1, $2)
			RETURNING row_id, created, updated
		`, tableID, tenantID).Scan(&row.ID, &row.Created, &row.Updated)
		if err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}

		for columnID, value := range values {
			if value.IsNull() {
				continue
			}
			if err := upsertCellTx(ctx, tx, tenantID, tableID, row.ID, columnID, value); err != nil {
				return err
			}
			row.Cells[columnID] = value.Format()
		}
		return nil
	})
	if err != nil {
		s.logger.Errorf("Failed to create row: %v", err)
		return nil, err
	}

	return &row, nil
}

// UpsertCell writes one cell. A first write materializes the cell, a
// later write replaces it; a null value deletes it, returning the cell
// to its unwritten state. The parent row's updated timestamp moves
// either way.
func (s *Store) UpsertCell(ctx context.Context, tenantID, tableID string, rowID int64, columnID string, value coltype.TypedValue) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		// Touching the row first also proves it belongs to the tenant.
		tag, err := tx.Exec(ctx, `
			UPDATE rows SET updated = CURRENT_TIMESTAMP
			WHERE row_id = $1 AND table_id = $2 AND tenant_id = $3
		`, rowID, tableID, tenantID)
		if err != nil {
			return fmt.Errorf("failed to touch row: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("row not found")
		}

		if value.IsNull() {
			_, err := tx.Exec(ctx,
				`DELETE FROM cells WHERE row_id = $1 AND column_id = $2`,
				rowID, columnID,
			)
			if err != nil {
				return fmt.Errorf("failed to clear cell: %w", err)
			}
			return nil
		}

		return upsertCellTx(ctx, tx, tenantID, tableID, rowID, columnID, value)
	})
}

func upsertCellTx(ctx context.Context, tx pgx.Tx, tenantID, tableID string, rowID int64, columnID string, value coltype.TypedValue) error {
	text, number, boolean, date, ref := cellParams(value)
	_, err := tx.Exec(ctx, `
		INSERT INTO cells (row_id, column_id, table_id, tenant_id, value_text, value_number, value_bool, value_date, value_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (row_id, column_id) DO UPDATE SET
			value_text = EXCLUDED.value_text,
			value_number = EXCLUDED.value_number,
			value_bool = EXCLUDED.value_bool,
			value_date = EXCLUDED.value_date,
			value_ref = EXCLUDED.value_ref,
			updated = CURRENT_TIMESTAMP
	`, rowID, columnID, tableID, tenantID, text, number, boolean, date, ref)
	if err != nil {
		return fmt.Errorf("failed to upsert cell: %w", err)
	}
	return nil
}

// DeleteRow removes a row; its cells cascade.
func (s *Store) DeleteRow(ctx context.Context, tenantID, tableID string, rowID int64) error {
	s.logger.Debugf("Deleting row %d from table %s", rowID, tableID)

	tag, err := s.db.Pool().Exec(ctx,
		`DELETE FROM rows WHERE row_id = $1 AND table_id = $2 AND tenant_id = $3`,
		rowID, tableID, tenantID,
	)
	if err != nil {
		s.logger.Errorf("Failed to delete row: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("row not found")
	}

	return nil
}

// ListRowIDs returns the ids of a table's rows in insertion order, for
// reference pickers and exports that do not need cell data.
func (s *Store) ListRowIDs(ctx context.Context, tenantID, tableID string, limit, offset int) ([]int64, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT row_id FROM rows
		WHERE table_id = $1 AND tenant_id = $2
		ORDER BY row_id
		LIMIT $3 OFFSET $4
	`, tableID, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RowExists reports whether a row exists within the tenant's table.
// Reference values are checked through this before they are stored.
func (s *Store) RowExists(ctx context.Context, tenantID, tableID string, rowID int64) (bool, error) {
	var exists bool
	err := s.db.Pool().QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM rows WHERE row_id = $1 AND table_id = $2 AND tenant_id = $3)",
		rowID, tableID, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check row existence: %w", err)
	}
	return exists, nil
}

// GetRow retrieves one row with its cells restricted to the visible
// column set.
func (s *Store) GetRow(ctx context.Context, tenantID, tableID string, rowID int64, visible []coltype.ColumnSpec) (*filter.Row, error) {
	var row filter.Row
	err := s.db.Pool().QueryRow(ctx, `
		SELECT row_id, created, updated
		FROM rows
		WHERE row_id = $1 AND table_id = $2 AND tenant_id = $3
	`, rowID, tableID, tenantID).Scan(&row.ID, &row.Created, &row.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("row not found")
		}
		return nil, err
	}

	rows := []filter.Row{row}
	if err := s.hydrateCells(ctx, rows, visible); err != nil {
		return nil, err
	}

	return &rows[0], nil
}

// ExecuteQuery runs a compiled filter query: the count over the full
// match set, then the page select, then cell hydration for the page.
// Cells outside the visible column set are never read.
func (s *Store) ExecuteQuery(ctx context.Context, q *filter.Query, visible []coltype.ColumnSpec) ([]filter.Row, int, error) {
	var total int
	err := s.db.Pool().QueryRow(ctx, q.CountSQL, q.CountArgs...).Scan(&total)
	if err != nil {
		s.logger.Errorf("Failed to count matching rows: %v", err)
		return nil, 0, fmt.Errorf("failed to count matching rows: %w", err)
	}
	if total == 0 {
		return []filter.Row{}, 0, nil
	}

	rows, err := s.db.Pool().Query(ctx, q.SelectSQL, q.SelectArgs...)
	if err != nil {
		s.logger.Errorf("Failed to execute filter query: %v", err)
		return nil, 0, fmt.Errorf("failed to execute filter query: %w", err)
	}
	defer rows.Close()

	var page []filter.Row
	for rows.Next() {
		var row filter.Row
		if err := rows.Scan(&row.ID, &row.Created, &row.Updated); err != nil {
			return nil, 0, err
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := s.hydrateCells(ctx, page, visible); err != nil {
		return nil, 0, err
	}

	return page, total, nil
}

// hydrateCells fills the sparse cell maps of the given rows in one
// query over the visible columns.
func (s *Store) hydrateCells(ctx context.Context, page []filter.Row, visible []coltype.ColumnSpec) error {
	for i := range page {
		if page[i].Cells == nil {
			page[i].Cells = make(map[string]interface{})
		}
	}
	if len(page) == 0 || len(visible) == 0 {
		return nil
	}

	rowIDs := make([]int64, len(page))
	rowIndex := make(map[int64]int, len(page))
	for i, row := range page {
		rowIDs[i] = row.ID
		rowIndex[row.ID] = i
	}

	columnIDs := make([]string, len(visible))
	specs := make(map[string]coltype.ColumnSpec, len(visible))
	for i, col := range visible {
		columnIDs[i] = col.ID
		specs[col.ID] = col
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT row_id, column_id, value_text, value_number, value_bool, value_date, value_ref
		FROM cells
		WHERE row_id = ANY($1) AND column_id = ANY($2)
	`, rowIDs, columnIDs)
	if err != nil {
		return fmt.Errorf("failed to load cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rowID    int64
			columnID string
			text     *string
			number   *float64
			boolean  *bool
			date     *time.Time
			ref      *int64
		)
		if err := rows.Scan(&rowID, &columnID, &text, &number, &boolean, &date, &ref); err != nil {
			return err
		}

		spec, ok := specs[columnID]
		if !ok {
			continue
		}
		idx, ok := rowIndex[rowID]
		if !ok {
			continue
		}
		page[idx].Cells[columnID] = scannedValue(spec.Type, text, number, boolean, date, ref).Format()
	}

	return rows.Err()
}

// scannedValue rebuilds a typed value from the nullable value columns,
// trusting the column type over whichever columns happen to be set.
func scannedValue(t coltype.ColumnType, text *string, number *float64, boolean *bool, date *time.Time, ref *int64) coltype.TypedValue {
	switch t {
	case coltype.TypeText:
		if text != nil {
			return coltype.TypedValue{Kind: coltype.KindText, Text: *text}
		}
	case coltype.TypeCustomArray:
		if text != nil {
			return coltype.TypedValue{Kind: coltype.KindEnum, Text: *text}
		}
	case coltype.TypeNumber:
		if number != nil {
			return coltype.TypedValue{Kind: coltype.KindNumber, Number: *number}
		}
	case coltype.TypeBoolean:
		if boolean != nil {
			return coltype.TypedValue{Kind: coltype.KindBool, Bool: *boolean}
		}
	case coltype.TypeDate:
		if date != nil {
			return coltype.TypedValue{Kind: coltype.KindDate, Date: *date}
		}
	case coltype.TypeReference:
		if ref != nil {
			return coltype.TypedValue{Kind: coltype.KindRef, Ref: *ref}
		}
	}
	return coltype.Null()
}
