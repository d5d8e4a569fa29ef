package tracing

// Span attribute keys.
const (
	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrRequestID      = "request.id"

	// Contact attributes
	AttrContactID    = "contact.id"
	AttrReplacedByID = "contact.replaced_by_id"
	AttrContactCount = "registry.count"

	// Idempotency attributes
	AttrIdempotencyKey = "idempotency.key"
)

// Span name prefixes for consistent naming.
const (
	SpanPrefixHTTP     = "http."
	SpanPrefixRegistry = "registry."
)

// Event names for span events.
const (
	EventValidationFailed = "validation.failed"
	EventIdempotentReplay = "idempotency.replay"
)
