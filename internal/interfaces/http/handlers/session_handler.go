package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// SessionHandler exposes the form state of a session as JSON, for clients
// that drive the four screens without the HTML pages.
type SessionHandler struct {
	svc          appvaluation.Service
	logger       logging.Logger
	maxBodyBytes int64
}

func NewSessionHandler(svc appvaluation.Service, logger logging.Logger, maxBodyBytes int64) *SessionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SessionHandler{svc: svc, logger: logger.Named("http.session"), maxBodyBytes: maxBodyBytes}
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.StartSession(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

// Get handles GET /api/v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Update handles PATCH /api/v1/sessions/{id}. The body maps form field
// names to new values; rejected fields come back in "errors" with 200, the
// same way the pages show them inline.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := decodeJSON(w, r, h.maxBodyBytes, formPatchSchema, &patch); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	values, err := formValues(patch)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	update, err := h.svc.UpdateForm(r.Context(), chi.URLParam(r, "id"), values)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// Reset handles POST /api/v1/sessions/{id}/reset.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.ResetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Delete handles DELETE /api/v1/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.EndSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard handles GET /api/v1/sessions/{id}/dashboard.
func (h *SessionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// formValues renders JSON scalars the way a browser would submit them.
func formValues(patch map[string]json.RawMessage) (url.Values, error) {
	values := make(url.Values, len(patch))
	for field, raw := range patch {
		var v interface{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, errors.New(errors.CodeInvalidParam, "malformed value").WithField(field)
		}
		switch x := v.(type) {
		case string:
			values.Set(field, x)
		case json.Number:
			values.Set(field, x.String())
		case bool:
			values.Set(field, strconv.FormatBool(x))
		default:
			return nil, errors.New(errors.CodeInvalidParam, "must be a string, number or boolean").WithField(field)
		}
	}
	return values, nil
}
