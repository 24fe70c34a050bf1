package model

// Employee 员工表 — 对应 employees（由人事模块维护，此处只读用于身份解析）
type Employee struct {
	EmployeeID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"employee_id"`
	EmployeeCode string  `gorm:"type:varchar(30);not null;uniqueIndex"          json:"employee_code"`
	Name         string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Phone        *string `gorm:"type:varchar(20);uniqueIndex"                   json:"phone,omitempty"`
	BadgeNo      *string `gorm:"type:varchar(50);uniqueIndex"                   json:"badge_no,omitempty"`
	FaceID       *string `gorm:"type:varchar(100);uniqueIndex"                  json:"face_id,omitempty"` // 人脸比对服务返回的主体 ID
	Department   string  `gorm:"type:varchar(50);not null;default:''"           json:"department"`
	IsActive     bool    `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Employee) TableName() string { return "employees" }

// SalesOrder 销售订单 — 对应 sales_orders（销售模块所有，此处只读）
type SalesOrder struct {
	SalesOrderID    string       `gorm:"type:uuid;primaryKey" json:"sales_order_id"`
	OrderNumber     string       `gorm:"type:varchar(50)"     json:"order_number"`
	CustomerName    string       `gorm:"type:varchar(200)"    json:"customer_name"`
	CustomerContact string       `gorm:"type:varchar(50)"     json:"customer_contact"`
	CustomerAddress string       `gorm:"type:text"            json:"customer_address"`
	CustomerEmail   string       `gorm:"type:varchar(255)"    json:"customer_email"`
	DeliveryType    DeliveryType `gorm:"type:varchar(20)"     json:"delivery_type"`
	Quantity        int          `json:"quantity"`
}

// TableName 指定表名
func (SalesOrder) TableName() string { return "sales_orders" }

// Identity 门禁事件携带的身份凭据，三选一（按 手机号 → 工牌号 → 人脸 ID 的顺序取第一个非空值）
type Identity struct {
	Phone   string `json:"phone,omitempty"`
	BadgeNo string `json:"badge_no,omitempty"`
	FaceID  string `json:"face_id,omitempty"`
}

// Key 返回用于查询的列名与值；全部为空时 ok 为 false
func (i Identity) Key() (column, value string, ok bool) {
	switch {
	case i.Phone != "":
		return "phone", i.Phone, true
	case i.BadgeNo != "":
		return "badge_no", i.BadgeNo, true
	case i.FaceID != "":
		return "face_id", i.FaceID, true
	default:
		return "", "", false
	}
}

// String 日志输出用，不含完整手机号
func (i Identity) String() string {
	col, val, ok := i.Key()
	if !ok {
		return "<empty>"
	}
	if col == "phone" && len(val) > 4 {
		val = "***" + val[len(val)-4:]
	}
	return col + "=" + val
}
