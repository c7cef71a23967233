package envelope

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// successBody is the envelope for successful responses. Success
// responses never carry an error field.
type successBody struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// errorBody is the envelope for failure responses. Failure responses
// never carry a data field.
type errorBody struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, successBody{Success: true, Data: data})
}

// OKMessage writes a 200 success envelope with a human-readable message.
func OKMessage(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, successBody{Success: true, Data: data, Message: message})
}

// Created writes a 201 success envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, successBody{Success: true, Data: data})
}

// Fail writes the error envelope for err and aborts the chain so no
// later stage can produce a second response.
func Fail(c *gin.Context, err *Error) {
	c.AbortWithStatusJSON(err.Status(), errorBody{Success: false, Error: err})
}
