package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mesh-intelligence/sheets/internal/logging"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error              string `json:"error"`
	Kind               string `json:"kind,omitempty"`
	Fatal              bool   `json:"fatal,omitempty"`
	ManualIntervention *bool  `json:"manual_intervention,omitempty"`
	Path               string `json:"path,omitempty"`
	Method             string `json:"method,omitempty"`
}

// tableRequest is the body of create and rename table.
type tableRequest struct {
	Name string `json:"name"`
}

// columnRequest is the body of add and rename column.
type columnRequest struct {
	ColumnName string `json:"column_name"`
}

// healthResponse reports whether bookkeeping matches the catalog.
type healthResponse struct {
	Status string        `json:"status"`
	Drift  []types.Drift `json:"drift"`
}

// errBadRequest marks malformed request bodies and path values.
var errBadRequest = errors.New("bad request")

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch types.Kind(err) {
	case types.KindInvalid:
		return http.StatusBadRequest
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status its kind maps to. Rebuild
// failures carry the manual intervention flag.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Kind: types.Kind(err).String()}
	if errors.Is(err, errBadRequest) {
		body.Kind = types.KindInvalid.String()
	}

	var rebuildErr *types.RebuildError
	if errors.As(err, &rebuildErr) {
		manual := rebuildErr.ManualRepair
		body.Fatal = true
		body.ManualIntervention = &manual
	}

	entry := logging.FromContext(r.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	respond(w, status, body)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusNotFound, errorBody{
		Error:  "not found",
		Kind:   types.KindNotFound.String(),
		Path:   r.URL.Path,
		Method: r.Method,
	})
}

// decodeBody reads a size-limited JSON body into v. Numbers decode as
// json.Number so they keep their textual form.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: reading body: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
	}
	return nil
}

// rowID parses the {id} path value.
func rowID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: row id %q is not a positive integer", errBadRequest, raw)
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	drift, err := s.store.Check(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := "ok"
	if len(drift) > 0 {
		status = "drift"
	}
	respond(w, http.StatusOK, healthResponse{Status: status, Drift: drift})
}

// --- tables ---

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListTables(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, tables)
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	info, err := s.store.CreateTable(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventSchema, Op: "create_table", Table: info.Name})
	respond(w, http.StatusCreated, info)
}

func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if err := s.store.DropTable(r.Context(), table); err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventSchema, Op: "drop_table", Table: table})
	respond(w, http.StatusOK, map[string]string{"deleted": table})
}

func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	info, err := s.store.RenameTable(r.Context(), r.PathValue("table"), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventSchema, Op: "rename_table", Table: info.Name})
	respond(w, http.StatusOK, map[string]any{"newName": info.Name, "table": info})
}

// --- columns ---

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.store.ListColumns(r.Context(), r.PathValue("table"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	respond(w, http.StatusOK, names)
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.store.AddColumn(r.Context(), r.PathValue("table"), req.ColumnName)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventSchema, Op: "add_column", Table: res.Column.Table, Column: res.Column.Name})

	body := map[string]string{"column_name": res.Column.Name}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	respond(w, http.StatusCreated, body)
}

func (s *Server) handleRenameColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	col, err := s.store.RenameColumn(r.Context(), r.PathValue("table"), r.PathValue("column"), req.ColumnName)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventSchema, Op: "rename_column", Table: col.Table, Column: col.Name})
	respond(w, http.StatusOK, map[string]string{"column_name": col.Name})
}

func (s *Server) handleDropColumn(w http.ResponseWriter, r *http.Request) {
	col, err := s.store.DropColumn(r.Context(), r.PathValue("table"), r.PathValue("column"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventSchema, Op: "drop_column", Table: col.Table, Column: col.Name})
	respond(w, http.StatusOK, map[string]string{"deletedColumn": col.Name})
}

// --- rows ---

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListRows(r.Context(), r.PathValue("table"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, rows)
}

func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	id, err := rowID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	row, err := s.store.GetRow(r.Context(), r.PathValue("table"), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, row)
}

func (s *Server) handleInsertRow(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := s.decodeBody(w, r, &fields); err != nil {
		respondError(w, r, err)
		return
	}
	table := r.PathValue("table")
	row, err := s.store.InsertRow(r.Context(), table, fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventRows, Op: "insert_row", Table: table, ID: row.ID()})
	respond(w, http.StatusCreated, row)
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id, err := rowID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var fields map[string]any
	if err := s.decodeBody(w, r, &fields); err != nil {
		respondError(w, r, err)
		return
	}
	table := r.PathValue("table")
	row, err := s.store.UpdateRow(r.Context(), table, id, fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventRows, Op: "update_row", Table: table, ID: id})
	respond(w, http.StatusOK, row)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := rowID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table := r.PathValue("table")
	if err := s.store.DeleteRow(r.Context(), table, id); err != nil {
		respondError(w, r, err)
		return
	}
	s.hub.Publish(Event{Type: EventRows, Op: "delete_row", Table: table, ID: id})
	respond(w, http.StatusOK, map[string]int64{"deletedId": id})
}
