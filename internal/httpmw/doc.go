// Package httpmw provides HTTP middleware for the static site listener.
//
// httpserver.NewHandler composes them outermost first: panic recovery,
// request ID, client IP resolution, OTEL tracing, trace response headers,
// metrics, request-scoped logging, then the chi router which adds route
// annotation, access logging, security and content headers ahead of the
// throttling stages.
//
// Query strings and user agents are never copied into log fields.
package httpmw
