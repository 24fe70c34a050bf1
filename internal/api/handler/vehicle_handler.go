package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/response"
)

// VehicleHandler 车辆登记模块 HTTP 处理器
type VehicleHandler struct {
	vehicleSvc service.VehicleService
}

// NewVehicleHandler 创建 VehicleHandler
func NewVehicleHandler(vehicleSvc service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleSvc: vehicleSvc}
}

// Create 登记车辆
// POST /api/v1/vehicles
func (h *VehicleHandler) Create(c *gin.Context) {
	var req dto.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.vehicleSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleVehicleError(c, err)
		return
	}

	response.Created(c, result)
}

// List 车辆列表
// GET /api/v1/vehicles
func (h *VehicleHandler) List(c *gin.Context) {
	var req dto.VehicleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.vehicleSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleVehicleError(c, err)
		return
	}

	response.OK(c, result)
}

// Get 车辆详情
// GET /api/v1/vehicles/:id
func (h *VehicleHandler) Get(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.vehicleSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleVehicleError(c, err)
		return
	}

	response.OK(c, result)
}

// Update 更新车辆信息
// PUT /api/v1/vehicles/:id
func (h *VehicleHandler) Update(c *gin.Context) {
	id, ok := MustUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.vehicleSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleVehicleError(c, err)
		return
	}

	response.OK(c, result)
}

// SetStatus 按车牌号变更状态；未登记车牌返回 tracked=false
// PUT /api/v1/vehicles/by-number/:number/status
func (h *VehicleHandler) SetStatus(c *gin.Context) {
	var req dto.SetVehicleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.vehicleSvc.SetStatus(c.Request.Context(), c.Param("number"), &req)
	if err != nil {
		h.handleVehicleError(c, err)
		return
	}

	response.OK(c, result)
}

// handleVehicleError 统一处理车辆模块业务错误
func (h *VehicleHandler) handleVehicleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 22001, "车辆不存在")
	default:
		handleCommonError(c, err)
	}
}
