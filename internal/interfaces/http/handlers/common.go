package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError maps err to its HTTP status and a {code, message, field}
// body. Server errors are logged and their message masked.
func writeAppError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	resp := ErrorResponse{RequestID: middleware.GetReqID(r.Context())}
	code := errors.CodeInternal

	if iv, ok := domain.AsInvalidInput(err); ok {
		code = iv.Code()
		resp.Message = iv.Reason
		resp.Field = iv.Field
	} else if ae, ok := errors.AsAppError(err); ok {
		code = ae.Code
		resp.Message = ae.Message
		resp.Field = ae.Field
	}

	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			logging.String("path", r.URL.Path),
			logging.String("code", code.String()),
			logging.Err(err))
		resp.Message = errors.DefaultMessageForCode(code)
		resp.Field = ""
	}
	if resp.Message == "" {
		resp.Message = errors.DefaultMessageForCode(code)
	}
	resp.Code = code.String()
	writeJSON(w, status, resp)
}

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, errors.New(errors.CodeInvalidParam, "request body too large or unreadable").WithCause(err)
	}
	return data, nil
}

// decodeJSON validates the body against schema and decodes it over v, so
// fields absent from the body keep the values v already holds.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, schema *requestSchema, v interface{}) error {
	data, err := readBody(w, r, limit)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if schema != nil {
		if err := schema.validate(data); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		if _, ok := domain.AsInvalidInput(err); ok {
			return err
		}
		return errors.New(errors.CodeInvalidParam, "malformed JSON body").WithCause(err)
	}
	return nil
}
