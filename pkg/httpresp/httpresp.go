// Package httpresp is the response envelope shared by the submission surface's gin
// handlers (pkg/api), mirroring core/pkg/model/rest/resp.go's Response/Meta/Trace
// shape and trace-id extraction.
package httpresp

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// CodeSuccess is the Meta.Code value for a successful response.
const CodeSuccess int = 2000

var successMeta = Meta{Code: CodeSuccess, Message: "OK"}

// Meta carries a stable numeric code alongside a human message, mirroring
// core/pkg/model/rest/resp.go's Meta.
type Meta struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Trace surfaces the active span's identifiers, when one is present.
type Trace struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

// Response is the envelope every handler in pkg/api returns.
type Response struct {
	Meta    Meta        `json:"meta"`
	Data    interface{} `json:"data,omitempty"`
	Tracing *Trace      `json:"tracing,omitempty"`
}

// ListData wraps a paginated/listing result with its total count.
type ListData struct {
	Rows       interface{} `json:"rows"`
	TotalCount int         `json:"total_count"`
}

func newResponse(ctx context.Context, meta Meta, data interface{}) Response {
	resp := Response{Meta: meta, Data: data}
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if sc.IsValid() {
		resp.Tracing = &Trace{
			TraceID: sc.TraceID().String(),
			SpanID:  sc.SpanID().String(),
		}
	}
	return resp
}

// Success builds a CodeSuccess envelope around data.
func Success(ctx context.Context, data interface{}) Response {
	return newResponse(ctx, successMeta, data)
}

// Fail builds an envelope carrying a non-success code and human message.
func Fail(ctx context.Context, code int, message string) Response {
	return newResponse(ctx, Meta{Code: code, Message: message}, nil)
}

// NewListData wraps rows with a total count for list endpoints.
func NewListData(rows interface{}, totalCount int) ListData {
	return ListData{Rows: rows, TotalCount: totalCount}
}
