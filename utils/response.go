package utils

import "github.com/gin-gonic/gin"

// JSONResponse is the envelope of the JSON endpoints (health checks).
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 envelope around data.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(200, JSONResponse{Code: 0, Message: "success", Data: data})
}

// Error writes an error envelope with an application code.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, JSONResponse{Code: code, Message: message})
}
