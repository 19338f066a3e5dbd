package utils

import (
	"bidio/internal/biderrors"

	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response. Bid errors also carry their
// wire code so HTTP clients can branch the same way packet clients do.
func JSONError(c *gin.Context, status int, err error, message string) {
	body := gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	}
	if p := biderrors.Normalize(err); p.Code != "StoreError" {
		body["code"] = p.Code
		if p.Data != nil {
			body["details"] = p.Data
		}
	}
	c.JSON(status, body)
}
