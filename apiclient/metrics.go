package apiclient

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "todo-client/apiclient"
	requestSpanName = "apiclient.request"
	requestLogName  = "apiclient.request"
)

type requestMetrics struct {
	logger    *log.Logger
	span      trace.Span
	start     time.Time
	method    string
	route     string
	requestID string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route, requestID string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
			attribute.String("todo.request_id", requestID),
		),
	)
	return &requestMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		method:    method,
		route:     route,
		requestID: requestID,
	}, ctx
}

// Log records the outcome of the request and ends its span.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	severity, severityNumber := severityForStatus(status, err)

	m.span.SetAttributes(
		attribute.Int("http.response.status_code", status),
		attribute.Float64("todo.request.total_ms", total),
		attribute.Int("todo.request.severity_number", severityNumber),
	)
	if err != nil {
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"method":          m.method,
		"route":           m.route,
		"status":          status,
		"total_ms":        total,
		"request_id":      m.requestID,
		"severity_number": severityNumber,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	entry := m.logger.WithFields(fields)
	switch severity {
	case "ERROR":
		entry.Error(requestLogName)
	case "WARN":
		entry.Warn(requestLogName)
	default:
		entry.Info(requestLogName)
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError || (status == 0 && err != nil):
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
