package dto

// ── 车辆模块 DTO ──

// CreateVehicleRequest 登记车辆请求
type CreateVehicleRequest struct {
	VehicleNumber   string  `json:"vehicle_number"   binding:"required,vehicle_no"`
	VehicleType     string  `json:"vehicle_type"     binding:"omitempty,max=50"`
	DriverName      string  `json:"driver_name"      binding:"omitempty,max=100"`
	DriverContact   string  `json:"driver_contact"   binding:"omitempty,max=50"`
	Capacity        float64 `json:"capacity"         binding:"omitempty,gte=0"`
	CurrentLocation string  `json:"current_location" binding:"omitempty,max=200"`
	Notes           string  `json:"notes"            binding:"omitempty,max=1000"`
}

// UpdateVehicleRequest 更新车辆信息（nil 字段不修改）
type UpdateVehicleRequest struct {
	VehicleType     *string  `json:"vehicle_type"     binding:"omitempty,max=50"`
	DriverName      *string  `json:"driver_name"      binding:"omitempty,max=100"`
	DriverContact   *string  `json:"driver_contact"   binding:"omitempty,max=50"`
	Capacity        *float64 `json:"capacity"         binding:"omitempty,gte=0"`
	CurrentLocation *string  `json:"current_location" binding:"omitempty,max=200"`
	Notes           *string  `json:"notes"            binding:"omitempty,max=1000"`
}

// SetVehicleStatusRequest 按车牌号变更车辆状态
type SetVehicleStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// VehicleListRequest 车辆列表筛选
type VehicleListRequest struct {
	PaginationRequest
	Status string `form:"status"`
}

// VehicleResponse 车辆响应
type VehicleResponse struct {
	ID              string  `json:"id"`
	VehicleNumber   string  `json:"vehicle_number"`
	VehicleType     string  `json:"vehicle_type"`
	DriverName      string  `json:"driver_name"`
	DriverContact   string  `json:"driver_contact"`
	Capacity        float64 `json:"capacity"`
	Status          string  `json:"status"`
	CurrentLocation string  `json:"current_location"`
	Notes           string  `json:"notes"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// VehicleStatusResponse 状态变更结果；Tracked 为 false 表示车牌未登记，本次为空操作
type VehicleStatusResponse struct {
	VehicleNumber string `json:"vehicle_number"`
	Status        string `json:"status"`
	Tracked       bool   `json:"tracked"`
}
