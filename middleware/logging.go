package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskflow-project/backend/logging"
)

const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// RequestLogger stamps each request with an X-Request-ID and logs its
// outcome under that id.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := logging.Logger.WithFields(logrus.Fields{"request_id": requestID})
		msg := "Event ID: HTTP_REQUEST, Description: %s %s -> %d in %s"
		switch {
		case rec.status >= http.StatusInternalServerError:
			entry.Errorf(msg, r.Method, r.URL.Path, rec.status, time.Since(start))
		case rec.status >= http.StatusBadRequest:
			entry.Warnf(msg, r.Method, r.URL.Path, rec.status, time.Since(start))
		default:
			entry.Infof(msg, r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}
