package restyutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("restyutil")

// New returns a resty client with a per request timeout and otel tracing
// wired in. Every scrape and delivery call in the process goes through a
// client built here so outbound http shows up in traces uniformly.
func New(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)

	client.OnBeforeRequest(onBeforeRequest)
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)

	return client
}

func onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx, _ := tracer.Start(req.Context(), req.Method)

	slog.DebugContext(ctx, "start request", "method", req.Method, "url", req.URL)

	req.SetContext(ctx)
	return nil
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	// request attributes are set here since res.Request.RawRequest is
	// still nil in onBeforeRequest
	span.SetName(fmt.Sprintf("http %s", res.Request.Method))
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	span.SetName(fmt.Sprintf("http %s", req.Method))
	if req.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	}

	slog.ErrorContext(req.Context(), "request failed",
		"method", req.Method,
		"url", req.URL,
		"err", err,
	)
}
