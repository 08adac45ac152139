/*
Package tracing follows a request through the widget host.

Every API request gets a span. The trace id arrives in the X-Trace-ID
header or is generated, and goes back in the response headers. Code
that leaves the process, such as remote bundle fetches, copies the trace
headers from its context onto the outgoing request so that CDN or proxy
logs can be matched to the mount that caused them.

	tracer := tracing.New("widgetkit", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "bundle.load")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Finished spans are logged by a background collector. Submit never
blocks; spans are dropped when the buffer is full.
*/
package tracing
