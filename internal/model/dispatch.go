package model

import "time"

// DispatchRequest 发货申请表 — 对应 dispatch_requests
type DispatchRequest struct {
	DispatchRequestID    string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"dispatch_request_id"`
	SalesOrderID         *string        `gorm:"type:uuid"                                      json:"sales_order_id,omitempty"`
	OrderNumber          string         `gorm:"type:varchar(50);not null;default:''"           json:"order_number"`
	PartyName            string         `gorm:"type:varchar(200);not null"                     json:"party_name"`
	PartyContact         string         `gorm:"type:varchar(50);not null;default:''"           json:"party_contact"`
	PartyAddress         string         `gorm:"type:text;not null;default:''"                  json:"party_address"`
	PartyEmail           string         `gorm:"type:varchar(255);not null;default:''"          json:"party_email"`
	DeliveryType         DeliveryType   `gorm:"type:varchar(20);not null"                      json:"delivery_type"`
	OriginalDeliveryType DeliveryType   `gorm:"type:varchar(20);not null;<-:create"            json:"original_delivery_type"` // 仅在创建时写入
	Quantity             int            `gorm:"not null;default:1"                             json:"quantity"`
	Status               DispatchStatus `gorm:"type:varchar(30);not null;default:'pending'"    json:"status"`
	DispatchNotes        string         `gorm:"type:text;not null;default:''"                  json:"dispatch_notes"`
	BaseModel

	// 关联（一对一，随发货申请级联删除）
	GatePass     *GatePass     `gorm:"foreignKey:DispatchRequestID;references:DispatchRequestID;constraint:OnDelete:CASCADE" json:"gate_pass,omitempty"`
	TransportJob *TransportJob `gorm:"foreignKey:DispatchRequestID;references:DispatchRequestID;constraint:OnDelete:CASCADE" json:"transport_job,omitempty"`
}

// TableName 指定表名
func (DispatchRequest) TableName() string { return "dispatch_requests" }

// GatePass 出门证表 — 对应 gate_passes（仅自提）
type GatePass struct {
	GatePassID        string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"gate_pass_id"`
	DispatchRequestID string         `gorm:"type:uuid;not null;uniqueIndex"                 json:"dispatch_request_id"`
	PartyName         string         `gorm:"type:varchar(200);not null"                     json:"party_name"`
	VehicleNo         string         `gorm:"type:varchar(30);not null"                      json:"vehicle_no"`
	Status            GatePassStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	VerifiedAt        *time.Time     `json:"verified_at,omitempty"`
	Remarks           string         `gorm:"type:text;not null;default:''"                  json:"remarks"`
	BaseModel
}

// TableName 指定表名
func (GatePass) TableName() string { return "gate_passes" }

// TransportJob 运输任务表 — 对应 transport_jobs（仅公司运输）
type TransportJob struct {
	TransportJobID    string             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"transport_job_id"`
	DispatchRequestID string             `gorm:"type:uuid;not null;uniqueIndex"                 json:"dispatch_request_id"`
	TransporterName   string             `gorm:"type:varchar(200);not null;default:''"          json:"transporter_name"`
	DriverName        string             `gorm:"type:varchar(100);not null;default:''"          json:"driver_name"`
	VehicleNo         string             `gorm:"type:varchar(30);not null"                      json:"vehicle_no"`
	Status            TransportJobStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	DispatchedAt      *time.Time         `json:"dispatched_at,omitempty"`
	DeliveredAt       *time.Time         `json:"delivered_at,omitempty"`
	Remarks           string             `gorm:"type:text;not null;default:''"                  json:"remarks"`
	BaseModel
}

// TableName 指定表名
func (TransportJob) TableName() string { return "transport_jobs" }
