package idempotency

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	settleTimeout = 2 * time.Second
)

// Middleware replays the first response of a POST carrying an
// Idempotency-Key header. 5xx responses are not stored so the client can
// retry them. When Redis is unreachable requests pass through untouched.
func (s *Store) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderKey)
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := s.RequestKey(r.Method, r.URL.Path, clientKey)

			cached, err := s.Begin(ctx, key)
			switch {
			case errors.Is(err, ErrInProgress):
				httpx.Fail(w, http.StatusConflict, "REQUEST_IN_PROGRESS", err.Error())
				return
			case err != nil:
				log.WarnContext(ctx, "idempotency lookup failed", "err", err)
				next.ServeHTTP(w, r)
				return
			case cached != nil:
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					s.settle(ctx, log, key, nil)
					panic(p)
				}
			}()
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError || (!rec.wroteHeader && ctx.Err() != nil) {
				s.settle(ctx, log, key, nil)
				return
			}
			s.settle(ctx, log, key, &Response{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()})
		})
	}
}

// settle stores resp under key, or frees key when resp is nil. It outlives
// the request context, which may already be cancelled by a timeout.
func (s *Store) settle(ctx context.Context, log *slog.Logger, key string, resp *Response) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if resp == nil {
		if err := s.Abort(ctx, key); err != nil {
			log.WarnContext(ctx, "idempotency abort failed", "key", key, "err", err)
		}
		return
	}
	if err := s.Finish(ctx, key, *resp); err != nil {
		log.WarnContext(ctx, "idempotency store failed", "key", key, "err", err)
	}
}

type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
