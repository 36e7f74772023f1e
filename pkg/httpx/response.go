package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidID    = errors.New("invalid id")
	ErrInvalidBody  = errors.New("invalid request body")
	ErrInvalidQuery = errors.New("invalid query parameter")
)

const maxBody = 1 << 20

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func Fail(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message, Error: code})
}

// Rule maps one error onto a status and a machine-readable code.
type Rule struct {
	Target error
	Status int
	Code   string
}

type Rules []Rule

// Write answers with the first matching rule. Unmatched errors are logged
// and reported as a generic 500 without leaking their text.
func (rs Rules) Write(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	for _, rule := range rs {
		if errors.Is(err, rule.Target) {
			Fail(w, rule.Status, rule.Code, rule.Target.Error())
			return
		}
	}
	log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	Fail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(dst); err != nil {
		return ErrInvalidBody
	}
	return nil
}

func PathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// UserID reads the optional X-User-ID header.
func UserID(r *http.Request) (*uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidID
	}
	return &id, nil
}

func QueryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidQuery
	}
	return n, nil
}
