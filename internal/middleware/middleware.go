package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/uniassist/internal/handlers"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var GetHandler = Wrap(handlers.GetHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)
var ListDocumentsHandler = Wrap(handlers.ListDocumentsHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		defer func() {
			metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
		}()

		re := processRequest(requestResponseStruct{req: r, writer: rec})
		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)
	}
}

// processRequest runs trace, auth and rate limiting in order and stops at the
// first failure.
func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Info("New request received")
	for _, step := range []func(requestResponseStruct) requestResponseStruct{injectTrace, authenticate, rateLimiter} {
		re = step(re)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	return re
}
