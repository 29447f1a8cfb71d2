package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-fieldio/internal/driver"
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
	"github.com/nerrad567/gray-logic-fieldio/internal/history"
)

// driverSummary is one entry of the driver list.
type driverSummary struct {
	ID          uint32 `json:"id"`
	Moniker     string `json:"moniker"`
	FieldListID uint32 `json:"field_list_id"`
	Fields      int    `json:"fields"`
}

// driverDetail is a driver with its fields.
type driverDetail struct {
	driverSummary
	FieldList []fieldView `json:"field_list"`
}

// fieldView is the JSON form of a live field.
type fieldView struct {
	ID           uint32               `json:"id"`
	Name         string               `json:"name"`
	Type         field.Type           `json:"type"`
	Access       field.Access         `json:"access"`
	Limits       string               `json:"limits"`
	AlwaysWrite  bool                 `json:"always_write,omitempty"`
	State        string               `json:"state"`
	Value        *string              `json:"value,omitempty"`
	Serial       uint32               `json:"serial"`
	Trigger      *field.TriggerConfig `json:"trigger,omitempty"`
	TriggerError string               `json:"trigger_error,omitempty"`
}

// writeFieldRequest is the body of PUT .../fields/{name}.
type writeFieldRequest struct {
	Value *string `json:"value"`
}

// stepFieldRequest is the body of POST .../fields/{name}/step.
type stepFieldRequest struct {
	Backward bool `json:"backward"`
	Wrap     bool `json:"wrap"`
}

// writeFieldResponse reports the outcome of a write or step.
type writeFieldResponse struct {
	Result string    `json:"result"`
	Field  fieldView `json:"field"`
}

func summarise(d *driver.Driver) driverSummary {
	return driverSummary{
		ID:          d.ID(),
		Moniker:     d.Moniker(),
		FieldListID: d.FieldListID(),
		Fields:      d.FieldCount(),
	}
}

func viewField(st *field.Store) fieldView {
	def := st.Definition()
	_, fieldID := st.IDs()
	v := fieldView{
		ID:          fieldID,
		Name:        def.Name,
		Type:        def.Type,
		Access:      def.Access,
		Limits:      st.Limit().Describe(),
		AlwaysWrite: def.AlwaysWrite,
		State:       st.State().String(),
		Serial:      st.SerialNum(),
	}
	if v.State != field.StateNoValue.String() {
		text := st.FormatText()
		v.Value = &text
	}
	if cfg, ok := st.Trigger(); ok {
		v.Trigger = &cfg
	}
	if err := st.LastTriggerError(); err != nil {
		v.TriggerError = err.Error()
	}
	return v
}

// handleListDrivers returns every registered driver and the registry
// counters.
func (s *Server) handleListDrivers(w http.ResponseWriter, _ *http.Request) {
	drivers := s.registry.Drivers()
	out := make([]driverSummary, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, summarise(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drivers": out,
		"stats":   s.registry.Stats(),
	})
}

// handleGetDriver returns one driver with all its fields.
func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.Driver(chi.URLParam(r, "moniker"))
	if err != nil {
		s.writeFieldError(w, err)
		return
	}
	detail := driverDetail{driverSummary: summarise(d)}
	for _, st := range d.Fields() {
		detail.FieldList = append(detail.FieldList, viewField(st))
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleRemoveDriver unregisters a driver. Polling clients resynchronise.
func (s *Server) handleRemoveDriver(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(chi.URLParam(r, "moniker")); err != nil {
		s.writeFieldError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetField returns one live field.
func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.Field(chi.URLParam(r, "moniker"), chi.URLParam(r, "name"))
	if err != nil {
		s.writeFieldError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewField(st))
}

// handleWriteField writes a field from its text form.
func (s *Server) handleWriteField(w http.ResponseWriter, r *http.Request) {
	var req writeFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	moniker, name := chi.URLParam(r, "moniker"), chi.URLParam(r, "name")
	res, err := s.registry.WriteField(moniker, name, *req.Value)
	s.respondWrite(w, moniker, name, res, err)
}

// handleStepField moves a field to the next or previous value of its limit.
func (s *Server) handleStepField(w http.ResponseWriter, r *http.Request) {
	var req stepFieldRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	moniker, name := chi.URLParam(r, "moniker"), chi.URLParam(r, "name")
	res, err := s.registry.StepField(moniker, name, !req.Backward, req.Wrap)
	s.respondWrite(w, moniker, name, res, err)
}

func (s *Server) respondWrite(w http.ResponseWriter, moniker, name string, res field.Result, err error) {
	if err != nil {
		s.writeFieldError(w, err)
		return
	}
	st, err := s.registry.Field(moniker, name)
	if err != nil {
		s.writeFieldError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, writeFieldResponse{Result: res.String(), Field: viewField(st)})
}

// handleDriverValues returns the persisted last value of each field of a
// driver. Values outlive the driver, so an unknown moniker is not an
// error.
func (s *Server) handleDriverValues(w http.ResponseWriter, r *http.Request) {
	if s.values == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "value history is not configured")
		return
	}
	moniker := chi.URLParam(r, "moniker")
	records, err := s.values.Values(r.Context(), moniker)
	if err != nil {
		s.logger.Error("reading persisted values failed", "moniker", moniker, "error", err)
		writeInternalError(w, "failed to read values")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"moniker": moniker,
		"values":  records,
	})
}

// handleFieldHistory returns the change history of a field, newest first.
func (s *Server) handleFieldHistory(w http.ResponseWriter, r *http.Request) {
	if s.values == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "value history is not configured")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	moniker, name := chi.URLParam(r, "moniker"), chi.URLParam(r, "name")
	entries, err := s.values.History(r.Context(), moniker, name, limit)
	if err != nil {
		s.logger.Error("reading field history failed", "moniker", moniker, "field", name, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"moniker": moniker,
		"field":   name,
		"history": entries,
	})
}

// writeFieldError maps registry and field errors to HTTP responses.
func (s *Server) writeFieldError(w http.ResponseWriter, err error) {
	var verr *field.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ValidationError{
			Error: Error{
				Status:  http.StatusUnprocessableEntity,
				Code:    ErrCodeValidation,
				Message: verr.Error(),
			},
			Field: verr.Field,
			Text:  verr.Text,
			Limit: verr.Limit,
		})
	case errors.Is(err, field.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, driver.ErrDriverNotFound), errors.Is(err, driver.ErrFieldNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, driver.ErrNotWritable):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, field.ErrNotSteppable):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeNotSteppable, err.Error())
	default:
		s.logger.Error("field request failed", "error", err)
		writeInternalError(w, "field request failed")
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
