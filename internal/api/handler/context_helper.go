package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/response"
)

// MustUUIDParam 读取并校验路径中的 UUID 参数。
// 格式非法时写入 400 响应并返回 false，调用方应直接 return。
func MustUUIDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, 10001, name+" 格式非法")
		return "", false
	}
	return id, true
}

// bindFailed 参数绑定失败统一响应
func bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}

// handleCommonError 处理各模块共有的错误种类，模块自身的 handle…Error 未命中时兜底
func handleCommonError(c *gin.Context, err error) {
	details := ""
	if de, ok := pkgerrors.As(err); ok {
		details = de.Error()
	}
	switch {
	case errors.Is(err, pkgerrors.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", details)
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.ErrorWithDetails(c, http.StatusNotFound, 10004, "记录不存在", details)
	case errors.Is(err, pkgerrors.ErrInvalidStateTransition):
		response.ErrorWithDetails(c, http.StatusConflict, 10009, "当前状态不允许该操作", details)
	case errors.Is(err, pkgerrors.ErrDependencyTimeout):
		response.GatewayTimeout(c, "依赖服务超时，请稍后重试")
	case errors.Is(err, pkgerrors.ErrDependencyUnavailable):
		response.ServiceUnavailable(c, "依赖服务不可用，请稍后重试")
	default:
		response.InternalError(c)
	}
}
