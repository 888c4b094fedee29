package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/internal/filter"
	"github.com/gridbase/gridbase/internal/permissions"
	"github.com/gridbase/gridbase/pkg/apperror"
	"github.com/gridbase/gridbase/pkg/health"
)

// statusForError maps the engine error taxonomy onto HTTP status codes.
// This mapping is the gateway's externally visible contract.
func statusForError(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindPermissionDenied:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message, details string) {
	s.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// respondError translates an engine error into its HTTP shape.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Errorf("Request failed: %v", err)
		s.writeErrorResponse(w, status, "internal error", "an unexpected error occurred")
		return
	}

	resp := ErrorResponse{Error: http.StatusText(status), Message: err.Error()}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	}
	s.writeJSONResponse(w, status, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func rowIDFrom(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["row_id"], 10, 64)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	checks := s.checker.RunAll()

	status := s.checker.GetOverallStatus()
	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	resp := HealthResponse{Status: status.String()}
	for _, check := range checks {
		resp.Checks = append(resp.Checks, HealthCheckResponse{
			Name:    check.Name,
			Status:  check.Status.String(),
			Message: check.Message,
		})
	}
	s.writeJSONResponse(w, code, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.engine.Metrics())
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if !s.decode(w, r, &req) {
		return
	}

	defs := make([]catalog.ColumnDefinition, 0, len(req.Columns))
	for _, col := range req.Columns {
		defs = append(defs, col.toDefinition())
	}

	table, err := s.engine.CreateTable(r.Context(), principalFrom(r), mux.Vars(r)["database_id"], req.Name, defs)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, toTableResponse(table))
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.engine.ListTables(r.Context(), principalFrom(r), mux.Vars(r)["database_id"])
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := make([]TableResponse, 0, len(tables))
	for _, table := range tables {
		resp = append(resp, toTableResponse(table))
	}
	s.writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.engine.GetTable(r.Context(), principalFrom(r), mux.Vars(r)["table_id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, toTableResponse(table))
}

func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	var req RenameTableRequest
	if !s.decode(w, r, &req) {
		return
	}

	table, err := s.engine.RenameTable(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, toTableResponse(table))
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteTable(r.Context(), principalFrom(r), mux.Vars(r)["table_id"]); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req ColumnDefinitionRequest
	if !s.decode(w, r, &req) {
		return
	}

	col, err := s.engine.AddColumn(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], req.toDefinition())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusCreated, toColumnResponse(*col))
}

func (s *Server) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	var req UpdateColumnRequest
	if !s.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	col, err := s.engine.UpdateColumn(r.Context(), principalFrom(r), vars["table_id"], vars["column_id"], req.Name, req.Required)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, toColumnResponse(*col))
}

func (s *Server) handleReorderColumns(w http.ResponseWriter, r *http.Request) {
	var req ReorderColumnsRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.ReorderColumns(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], req.ColumnIDs); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.engine.DeleteColumn(r.Context(), principalFrom(r), vars["table_id"], vars["column_id"]); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var payload filter.Payload
	if !s.decode(w, r, &payload) {
		return
	}

	resp, err := s.engine.BuildFilteredQuery(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], payload)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) handleValidateFilters(w http.ResponseWriter, r *http.Request) {
	var req ValidateFiltersRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.engine.ValidateFilters(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], req.Filters)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	capability := permissions.Capability(r.URL.Query().Get("capability"))
	switch capability {
	case permissions.CapRead, permissions.CapEdit, permissions.CapDelete:
	default:
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid capability",
			"capability must be one of read, edit, delete")
		return
	}

	allowed, err := s.engine.CheckPermission(r.Context(), principalFrom(r),
		mux.Vars(r)["table_id"], r.URL.Query().Get("columnId"), capability)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, PermissionCheckResponse{Allowed: allowed})
}

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	var req CreateRowRequest
	if !s.decode(w, r, &req) {
		return
	}

	row, err := s.engine.CreateRow(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], req.Cells)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusCreated, row)
}

func (s *Server) handleListRowIDs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	ids, err := s.engine.ListRowIDs(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], page, pageSize)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	s.writeJSONResponse(w, http.StatusOK, RowIDsResponse{RowIDs: ids})
}

func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	rowID, err := rowIDFrom(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid row id", err.Error())
		return
	}

	row, err := s.engine.GetRow(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], rowID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, row)
}

func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	rowID, err := rowIDFrom(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid row id", err.Error())
		return
	}

	var req UpdateCellRequest
	if !s.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	if err := s.engine.UpdateCell(r.Context(), principalFrom(r), vars["table_id"], rowID, vars["column_id"], req.Value); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	rowID, err := rowIDFrom(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid row id", err.Error())
		return
	}

	if err := s.engine.DeleteRow(r.Context(), principalFrom(r), mux.Vars(r)["table_id"], rowID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
