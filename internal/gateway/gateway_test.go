package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridbase/gridbase/pkg/apperror"
	"github.com/gridbase/gridbase/pkg/health"
	"github.com/gridbase/gridbase/pkg/logger"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation maps to 400", apperror.Validation("f1", "bad operator"), http.StatusBadRequest},
		{"permission denied maps to 403", apperror.PermissionDenied("no access"), http.StatusForbidden},
		{"not found maps to 404", apperror.NotFound("table not found"), http.StatusNotFound},
		{"conflict maps to 409", apperror.Conflict("name", "name already in use"), http.StatusConflict},
		{"cache fault maps to 500", apperror.CacheFault(errors.New("redis down")), http.StatusInternalServerError},
		{"plain error maps to 500", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, statusForError(tc.err))
		})
	}
}

func TestHealthReflectsCurrentDependencyState(t *testing.T) {
	checker := health.NewChecker()
	dbUp := true
	checker.Register("postgres", func() error {
		if dbUp {
			return nil
		}
		return errors.New("connection refused")
	})

	s := NewServer(nil, checker, logger.New("gateway-test", "test"))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// The pool dies after startup; the next request must report it.
	dbUp = false
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestPrincipalMiddlewareRejectsAnonymous(t *testing.T) {
	s := NewServer(nil, health.NewChecker(), logger.New("gateway-test", "test"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/t1", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), HeaderUser)
}

func TestPrincipalMiddlewareRequiresTenant(t *testing.T) {
	s := NewServer(nil, health.NewChecker(), logger.New("gateway-test", "test"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/t1", nil)
	req.Header.Set(HeaderUser, "u1")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
