package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nb4mna/nb4mna/internal/logging"

	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id of a request.
const HeaderRequestID = "X-Request-ID"

// correlationIDLength is how many characters of the id are logged.
const correlationIDLength = 8

// correlationID reuses a valid UUID from X-Request-ID or generates a new
// one, echoes it in the response and attaches it to the request logger.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(HeaderRequestID))
		if err != nil {
			id = uuid.New()
		}
		hexID := strings.ReplaceAll(id.String(), "-", "")

		w.Header().Set(HeaderRequestID, hexID)
		ctx := logging.WithCorrelationID(r.Context(), hexID[:correlationIDLength])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs every request in Apache CLF with the response time in milliseconds.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		if host == "" {
			host = r.RemoteAddr
		}

		logging.FromContext(r.Context()).Infof(`%s - - [%s] "%s %s %s" %d %d %d`,
			host,
			start.Format("02/Jan/2006:15:04:05 -0700"),
			r.Method,
			r.RequestURI,
			r.Proto,
			lrw.statusCode,
			lrw.size,
			time.Since(start).Milliseconds(),
		)
	})
}

// loggingResponseWriter captures the status and size of a response.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := lrw.ResponseWriter.Write(b)
	lrw.size += size
	return size, err
}
