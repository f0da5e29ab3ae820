package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

// Envelope is the body shape of every ops endpoint.
type Envelope struct {
	Data  interface{}      `json:"data,omitempty"`
	Error *appErrors.Error `json:"error,omitempty"`
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Data: data})
}

// OK responds with HTTP 200.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// Error sends err in the common structure with the given status.
func Error(c *gin.Context, status int, err error) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Error: appErrors.FromError(err)})
}
