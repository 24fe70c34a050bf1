package dto

// ── 发货申请模块 DTO ──

// CreateDispatchRequest 创建发货申请请求
// 传入 sales_order_id 时，未填写的客户信息与订单号由销售订单补齐
type CreateDispatchRequest struct {
	SalesOrderID  string `json:"sales_order_id"  binding:"omitempty,uuid"`
	OrderNumber   string `json:"order_number"    binding:"omitempty,max=50"`
	PartyName     string `json:"party_name"      binding:"omitempty,max=200"`
	PartyContact  string `json:"party_contact"   binding:"omitempty,max=50"`
	PartyAddress  string `json:"party_address"   binding:"omitempty,max=500"`
	PartyEmail    string `json:"party_email"     binding:"omitempty,email"`
	DeliveryType  string `json:"delivery_type"`
	Quantity      *int   `json:"quantity"`
	DispatchNotes string `json:"dispatch_notes"  binding:"omitempty,max=1000"`
}

// OverrideDeliveryTypeRequest 发货员变更发货方式
type OverrideDeliveryTypeRequest struct {
	DeliveryType string `json:"delivery_type" binding:"required"`
	Notes        string `json:"notes"         binding:"omitempty,max=1000"`
}

// ProcessDispatchRequest 处理发货申请（生成出门证或运输任务）
type ProcessDispatchRequest struct {
	VehicleNo       string `json:"vehicle_no"       binding:"omitempty,vehicle_no"`
	TransporterName string `json:"transporter_name" binding:"omitempty,max=200"`
	DriverName      string `json:"driver_name"      binding:"omitempty,max=100"`
}

// CancelDispatchRequest 取消发货申请
type CancelDispatchRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// VerifyGatePassRequest 门卫核验出门证
type VerifyGatePassRequest struct {
	Decision string `json:"decision" binding:"required,oneof=verified rejected"`
	Remarks  string `json:"remarks"  binding:"omitempty,max=500"`
}

// UpdateTransportJobRequest 更新运输任务状态
type UpdateTransportJobRequest struct {
	Status  string `json:"status"  binding:"required"`
	Remarks string `json:"remarks" binding:"omitempty,max=500"`
}

// DispatchListRequest 发货申请列表筛选
type DispatchListRequest struct {
	PaginationRequest
	Status       string `form:"status"`
	DeliveryType string `form:"delivery_type"`
	SalesOrderID string `form:"sales_order_id" binding:"omitempty,uuid"`
}

// DispatchResponse 发货申请响应
type DispatchResponse struct {
	ID                   string                `json:"id"`
	SalesOrderID         *string               `json:"sales_order_id,omitempty"`
	OrderNumber          string                `json:"order_number"`
	PartyName            string                `json:"party_name"`
	PartyContact         string                `json:"party_contact"`
	PartyAddress         string                `json:"party_address"`
	PartyEmail           string                `json:"party_email"`
	DeliveryType         string                `json:"delivery_type"`
	OriginalDeliveryType string                `json:"original_delivery_type"`
	Quantity             int                   `json:"quantity"`
	Status               string                `json:"status"`
	DispatchNotes        string                `json:"dispatch_notes"`
	GatePass             *GatePassResponse     `json:"gate_pass,omitempty"`
	TransportJob         *TransportJobResponse `json:"transport_job,omitempty"`
	CreatedAt            string                `json:"created_at"`
	UpdatedAt            string                `json:"updated_at"`
}

// GatePassResponse 出门证响应
type GatePassResponse struct {
	ID                string `json:"id"`
	DispatchRequestID string `json:"dispatch_request_id"`
	PartyName         string `json:"party_name"`
	VehicleNo         string `json:"vehicle_no"`
	Status            string `json:"status"`
	VerifiedAt        string `json:"verified_at,omitempty"`
	Remarks           string `json:"remarks"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// TransportJobResponse 运输任务响应
type TransportJobResponse struct {
	ID                string `json:"id"`
	DispatchRequestID string `json:"dispatch_request_id"`
	TransporterName   string `json:"transporter_name"`
	DriverName        string `json:"driver_name"`
	VehicleNo         string `json:"vehicle_no"`
	Status            string `json:"status"`
	DispatchedAt      string `json:"dispatched_at,omitempty"`
	DeliveredAt       string `json:"delivered_at,omitempty"`
	Remarks           string `json:"remarks"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}
