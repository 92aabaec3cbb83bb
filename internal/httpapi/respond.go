package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cleared-dev/books/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error's kind to an HTTP status.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		status, code = http.StatusBadRequest, "validation_error"
	case apperr.ErrNotFound:
		status, code = http.StatusNotFound, "not_found"
	case apperr.ErrConflict:
		status, code = http.StatusConflict, "conflict"
	case apperr.ErrUnauthorized:
		status, code = http.StatusUnauthorized, "unauthorized"
	case apperr.ErrTimeout:
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	writeJSONError(w, status, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body: "+err.Error())
		return false
	}
	return true
}

// Date is a calendar date encoded as "2006-01-02".
type Date struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return errors.New("dates must look like 2006-01-02")
	}
	d.Time = t
	return nil
}

func dateOf(t time.Time) Date {
	return Date{Time: t}
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// queryDate parses an optional date query parameter.
func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, apperr.Validation("httpapi", "%s must look like 2006-01-02, got %q", name, v)
	}
	return t, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Validation("httpapi", "%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}
