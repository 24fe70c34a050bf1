package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/response"
)

// AttendanceHandler 门禁考勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// GateEntry 门禁进场事件
// POST /api/v1/gate/entry
func (h *AttendanceHandler) GateEntry(c *gin.Context) {
	h.gateEvent(c, service.GateEntry)
}

// GateExit 门禁出场事件
// POST /api/v1/gate/exit
func (h *AttendanceHandler) GateExit(c *gin.Context) {
	h.gateEvent(c, service.GateExit)
}

func (h *AttendanceHandler) gateEvent(c *gin.Context, direction service.GateDirection) {
	var req dto.GateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.attendanceSvc.RecordGateEvent(c.Request.Context(), direction, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// List 考勤记录列表
// GET /api/v1/attendance
func (h *AttendanceHandler) List(c *gin.Context) {
	var req dto.AttendanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.attendanceSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// MonthlySummary 月度考勤汇总
// GET /api/v1/attendance/summary?month=2025-03
func (h *AttendanceHandler) MonthlySummary(c *gin.Context) {
	var req dto.AttendanceMonthRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.attendanceSvc.MonthlySummary(c.Request.Context(), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkAbsent 为指定日期无记录的在职员工补记缺勤
// POST /api/v1/attendance/mark-absent
func (h *AttendanceHandler) MarkAbsent(c *gin.Context) {
	var req dto.MarkAbsentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	result, err := h.attendanceSvc.MarkAbsent(c.Request.Context(), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// handleAttendanceError 统一处理考勤模块业务错误
func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	details := ""
	if de, ok := pkgerrors.As(err); ok {
		details = de.Error()
	}
	switch {
	case errors.Is(err, pkgerrors.ErrIdentityNotFound):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 21001, "未匹配到在职员工", details)
	case errors.Is(err, pkgerrors.ErrNoOpenCheckIn):
		response.ErrorWithDetails(c, http.StatusConflict, 21002, "当日无进场记录，无法登记出场", details)
	default:
		handleCommonError(c, err)
	}
}
