package middlewares

// Keys used on the gin context.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
)
