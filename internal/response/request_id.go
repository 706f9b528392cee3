package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key holding the request ID.
const ContextKeyRequestID = "request_id"

// RequestID tags every request with an ID that shows up in the response
// metadata and the X-Request-ID header, so a student's support ticket can
// be matched to the exact attempt operation in the logs. An inbound
// X-Request-ID is honored only when it is itself a UUID: exam clients are
// untrusted and do not get to inject arbitrary trace values.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
