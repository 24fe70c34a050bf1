package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/response"
)

// Recovery 捕获 handler panic，记录堆栈后返回统一 500 响应
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("请求处理 panic",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", GetRequestID(c)),
			zap.Stack("stack"),
		)
		if !c.Writer.Written() {
			response.Error(c, http.StatusInternalServerError, 50000, "服务器内部错误")
		}
		c.Abort()
	})
}
