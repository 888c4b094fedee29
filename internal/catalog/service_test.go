package catalog

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/gridbase/gridbase/pkg/apperror"
)

func TestMapStoreError(t *testing.T) {
	t.Run("no rows is not found", func(t *testing.T) {
		err := mapStoreError(pgx.ErrNoRows, "table", "table not found")
		assert.True(t, apperror.IsNotFound(err))
		assert.Contains(t, err.Error(), "table not found")
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		err := mapStoreError(&pgconn.PgError{Code: "23505"}, "name", "table not found")
		assert.True(t, apperror.IsConflict(err))
	})

	t.Run("foreign key violation is not found", func(t *testing.T) {
		err := mapStoreError(&pgconn.PgError{Code: "23503"}, "name", "table not found")
		assert.True(t, apperror.IsNotFound(err),
			"a dangling reference must read as a missing record, never as a server error")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		assert.Equal(t, boom, mapStoreError(boom, "name", "table not found"))
	})
}
