package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTable(t *testing.T) {
	member := Principal{UserID: "u1", TenantID: "t1", Role: "member"}
	admin := Principal{UserID: "u2", TenantID: "t1", Role: RoleAdmin}

	t.Run("admin granted without record", func(t *testing.T) {
		assert.Equal(t, Granted, resolveTable(admin, nil, CapRead))
		assert.Equal(t, Granted, resolveTable(admin, nil, CapEdit))
		assert.Equal(t, Granted, resolveTable(admin, nil, CapDelete))
	})

	t.Run("no record denies every capability", func(t *testing.T) {
		assert.Equal(t, Denied, resolveTable(member, nil, CapRead))
		assert.Equal(t, Denied, resolveTable(member, nil, CapEdit))
		assert.Equal(t, Denied, resolveTable(member, nil, CapDelete))
	})

	t.Run("record flags decide", func(t *testing.T) {
		rec := &TablePermission{CanRead: true, CanEdit: false, CanDelete: true}
		assert.Equal(t, Granted, resolveTable(member, rec, CapRead))
		assert.Equal(t, Denied, resolveTable(member, rec, CapEdit))
		assert.Equal(t, Granted, resolveTable(member, rec, CapDelete))
	})
}

func TestResolveColumn(t *testing.T) {
	member := Principal{UserID: "u1", TenantID: "t1", Role: "member"}
	admin := Principal{UserID: "u2", TenantID: "t1", Role: RoleAdmin}

	t.Run("admin granted without record", func(t *testing.T) {
		assert.Equal(t, Granted, resolveColumn(admin, nil, CapRead))
	})

	t.Run("missing record denies, no table inheritance", func(t *testing.T) {
		assert.Equal(t, Denied, resolveColumn(member, nil, CapRead))
		assert.Equal(t, Denied, resolveColumn(member, nil, CapEdit))
	})

	t.Run("record flags decide", func(t *testing.T) {
		rec := &ColumnPermission{CanRead: true, CanEdit: false}
		assert.Equal(t, Granted, resolveColumn(member, rec, CapRead))
		assert.Equal(t, Denied, resolveColumn(member, rec, CapEdit))
	})

	t.Run("delete never exists at column level", func(t *testing.T) {
		rec := &ColumnPermission{CanRead: true, CanEdit: true}
		assert.Equal(t, Denied, resolveColumn(member, rec, CapDelete))
	})
}
