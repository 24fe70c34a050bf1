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

// DispatchHandler 发货调度模块 HTTP 处理器（发货单、出门证、运输任务）
type DispatchHandler struct {
	dispatchSvc service.DispatchService
}

// NewDispatchHandler 创建 DispatchHandler
func NewDispatchHandler(dispatchSvc service.DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatchSvc: dispatchSvc}
}

// ════════════════════════════════════════════════════════════
// 发货单
// ════════════════════════════════════════════════════════════

// Create 创建发货单
// POST /api/v1/dispatches
func (h *DispatchHandler) Create(c *gin.Context) {
	var req dto.CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.dispatchSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.Created(c, result)
}

// List 发货单列表
// GET /api/v1/dispatches
func (h *DispatchHandler) List(c *gin.Context) {
	var req dto.DispatchListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.dispatchSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// Get 发货单详情（含出门证/运输任务）
// GET /api/v1/dispatches/:id
func (h *DispatchHandler) Get(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.dispatchSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// OverrideDeliveryType 变更配送方式（仅 pending）
// PUT /api/v1/dispatches/:id/delivery-type
func (h *DispatchHandler) OverrideDeliveryType(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.OverrideDeliveryTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.dispatchSvc.OverrideDeliveryType(c.Request.Context(), id, &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// Process 处理发货单：自提生成出门证，运输生成运输任务
// POST /api/v1/dispatches/:id/process
func (h *DispatchHandler) Process(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.ProcessDispatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	result, err := h.dispatchSvc.Process(c.Request.Context(), id, &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// Cancel 取消发货单
// POST /api/v1/dispatches/:id/cancel
func (h *DispatchHandler) Cancel(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CancelDispatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}

	result, err := h.dispatchSvc.Cancel(c.Request.Context(), id, &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// ════════════════════════════════════════════════════════════
// 出门证
// ════════════════════════════════════════════════════════════

// GetGatePass 出门证详情
// GET /api/v1/gate-passes/:id
func (h *DispatchHandler) GetGatePass(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.dispatchSvc.GetGatePass(c.Request.Context(), id)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// VerifyGatePass 门卫核验出门证
// POST /api/v1/gate-passes/:id/verify
func (h *DispatchHandler) VerifyGatePass(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.VerifyGatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.dispatchSvc.VerifyGatePass(c.Request.Context(), id, &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// ════════════════════════════════════════════════════════════
// 运输任务
// ════════════════════════════════════════════════════════════

// GetTransportJob 运输任务详情
// GET /api/v1/transport-jobs/:id
func (h *DispatchHandler) GetTransportJob(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.dispatchSvc.GetTransportJob(c.Request.Context(), id)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateTransportJob 推进运输任务状态
// PUT /api/v1/transport-jobs/:id/status
func (h *DispatchHandler) UpdateTransportJob(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateTransportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.dispatchSvc.UpdateTransportJob(c.Request.Context(), id, &req)
	if err != nil {
		h.handleDispatchError(c, err)
		return
	}

	response.OK(c, result)
}

// handleDispatchError 统一处理发货调度模块业务错误
func (h *DispatchHandler) handleDispatchError(c *gin.Context, err error) {
	de, _ := pkgerrors.As(err)
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidStateTransition):
		details := ""
		if de != nil {
			details = de.Detail
		}
		response.ErrorWithDetails(c, http.StatusConflict, 20001, "发货单当前状态不允许该操作", details)
	case errors.Is(err, pkgerrors.ErrNotFound) && de != nil:
		switch de.Entity {
		case "gate_pass":
			response.NotFound(c, 20102, "出门证不存在")
		case "transport_job":
			response.NotFound(c, 20103, "运输任务不存在")
		case "sales_order":
			response.NotFound(c, 20104, "销售订单不存在")
		default:
			response.NotFound(c, 20101, "发货单不存在")
		}
	default:
		handleCommonError(c, err)
	}
}
