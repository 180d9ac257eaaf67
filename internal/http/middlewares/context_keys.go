package middlewares

// keys set on the gin context
const (
	CtxRequestID = "request_id"
)

const RequestIDHeader = "X-Request-Id"
