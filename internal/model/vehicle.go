package model

// VehicleNoMaxLen 车牌列（vehicles / gate_passes / transport_jobs）的字符上限
const VehicleNoMaxLen = 30

// Vehicle 车辆表 — 对应 vehicles
// 出门证/运输任务按车牌号值引用，不建外键（允许临时车辆）
type Vehicle struct {
	VehicleID       string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"vehicle_id"`
	VehicleNumber   string        `gorm:"type:varchar(30);not null;uniqueIndex"          json:"vehicle_number"`
	VehicleType     string        `gorm:"type:varchar(50);not null;default:''"           json:"vehicle_type"`
	DriverName      string        `gorm:"type:varchar(100);not null;default:''"          json:"driver_name"`
	DriverContact   string        `gorm:"type:varchar(50);not null;default:''"           json:"driver_contact"`
	Capacity        float64       `gorm:"type:numeric(10,2);not null;default:0"          json:"capacity"`
	Status          VehicleStatus `gorm:"type:varchar(20);not null;default:'available'"  json:"status"`
	CurrentLocation string        `gorm:"type:varchar(200);not null;default:''"          json:"current_location"`
	Notes           string        `gorm:"type:text;not null;default:''"                  json:"notes"`
	BaseModel
}

// TableName 指定表名
func (Vehicle) TableName() string { return "vehicles" }
