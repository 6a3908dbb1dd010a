package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API reply. Code is 0 on success.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Message: "ok", Data: data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, Response{Code: status, Message: err.Error()})
}
