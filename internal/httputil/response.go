// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// RespondError writes the {code, message, request_id} error envelope and
// aborts the request. The client SDK parses exactly this shape, so the field
// set here is a wire contract, not a convention.
func RespondError(c *gin.Context, status int, code, message string) {
	var requestID string
	if rid, exists := c.Get("request_id"); exists {
		if s, ok := rid.(string); ok {
			requestID = s
		}
	}

	resp := map[string]string{
		"code":    code,
		"message": message,
	}

	if requestID != "" {
		resp["request_id"] = requestID
	}

	c.AbortWithStatusJSON(status, resp)
}
