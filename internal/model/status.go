package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnum 枚举值不在允许集合内
var ErrInvalidEnum = errors.New("invalid enum value")

// parseEnum 统一的枚举解析：先按表约定折叠大小写，再与闭集比对，未知值一律拒绝。
func parseEnum[T ~string](kind, raw string, fold func(string) string, allowed ...T) (T, error) {
	v := T(fold(strings.TrimSpace(raw)))
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s=%q", ErrInvalidEnum, kind, raw)
}

// scanEnum 供 Scanner 实现复用
func scanEnum(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("enum scan: unsupported type %T", src)
	}
}

// ════════════════════════════════════════════════════════════
// 发货方式
// ════════════════════════════════════════════════════════════

// DeliveryType 发货方式（小写存储）
type DeliveryType string

const (
	DeliverySelf      DeliveryType = "self"
	DeliveryTransport DeliveryType = "transport"
)

// ParseDeliveryType 解析发货方式
func ParseDeliveryType(s string) (DeliveryType, error) {
	return parseEnum("delivery_type", s, strings.ToLower, DeliverySelf, DeliveryTransport)
}

// Value 入库前再次规范化
func (d DeliveryType) Value() (driver.Value, error) {
	v, err := ParseDeliveryType(string(d))
	if err != nil {
		return nil, err
	}
	return string(v), nil
}

// Scan 出库时规范化
func (d *DeliveryType) Scan(src interface{}) error {
	s, err := scanEnum(src)
	if err != nil {
		return err
	}
	v, err := ParseDeliveryType(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ════════════════════════════════════════════════════════════
// 发货申请状态机
// ════════════════════════════════════════════════════════════

// DispatchStatus 发货申请状态（小写存储）
type DispatchStatus string

const (
	DispatchPending           DispatchStatus = "pending"
	DispatchReadyForPickup    DispatchStatus = "ready_for_pickup"
	DispatchAssignedTransport DispatchStatus = "assigned_transport"
	DispatchDispatched        DispatchStatus = "dispatched"
	DispatchInTransit         DispatchStatus = "in_transit"
	DispatchDelivered         DispatchStatus = "delivered"
	DispatchCancelled         DispatchStatus = "cancelled"
	DispatchFailed            DispatchStatus = "failed"
)

// dispatchTransitions 允许的状态迁移（cancelled / failed 由 IsTerminal 统一处理）
var dispatchTransitions = map[DispatchStatus][]DispatchStatus{
	DispatchPending:           {DispatchReadyForPickup, DispatchAssignedTransport},
	DispatchReadyForPickup:    {DispatchDispatched},
	DispatchAssignedTransport: {DispatchInTransit},
	DispatchDispatched:        {DispatchDelivered},
	DispatchInTransit:         {DispatchDelivered},
}

// ParseDispatchStatus 解析发货申请状态
func ParseDispatchStatus(s string) (DispatchStatus, error) {
	return parseEnum("dispatch_status", s, strings.ToLower,
		DispatchPending, DispatchReadyForPickup, DispatchAssignedTransport, DispatchDispatched,
		DispatchInTransit, DispatchDelivered, DispatchCancelled, DispatchFailed)
}

// IsTerminal 是否终态
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchDelivered || s == DispatchCancelled || s == DispatchFailed
}

// CanTransitionTo 判断迁移是否合法；任何非终态都可进入 cancelled / failed
func (s DispatchStatus) CanTransitionTo(next DispatchStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == DispatchCancelled || next == DispatchFailed {
		return true
	}
	for _, n := range dispatchTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Value 入库前再次规范化
func (s DispatchStatus) Value() (driver.Value, error) {
	v, err := ParseDispatchStatus(string(s))
	if err != nil {
		return nil, err
	}
	return string(v), nil
}

// Scan 出库时规范化
func (s *DispatchStatus) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	v, err := ParseDispatchStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ════════════════════════════════════════════════════════════
// 出门证
// ════════════════════════════════════════════════════════════

// GatePassStatus 出门证状态（小写存储）
type GatePassStatus string

const (
	GatePassPending  GatePassStatus = "pending"
	GatePassVerified GatePassStatus = "verified"
	GatePassRejected GatePassStatus = "rejected"
)

// ParseGatePassStatus 解析出门证状态
func ParseGatePassStatus(s string) (GatePassStatus, error) {
	return parseEnum("gate_pass_status", s, strings.ToLower, GatePassPending, GatePassVerified, GatePassRejected)
}

// Value 入库前再次规范化
func (s GatePassStatus) Value() (driver.Value, error) {
	v, err := ParseGatePassStatus(string(s))
	if err != nil {
		return nil, err
	}
	return string(v), nil
}

// Scan 出库时规范化
func (s *GatePassStatus) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	v, err := ParseGatePassStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ════════════════════════════════════════════════════════════
// 运输任务
// ════════════════════════════════════════════════════════════

// TransportJobStatus 运输任务状态（小写存储）
type TransportJobStatus string

const (
	TransportPending   TransportJobStatus = "pending"
	TransportInTransit TransportJobStatus = "in_transit"
	TransportDelivered TransportJobStatus = "delivered"
	TransportFailed    TransportJobStatus = "failed"
	TransportCancelled TransportJobStatus = "cancelled"
)

var transportTransitions = map[TransportJobStatus][]TransportJobStatus{
	TransportPending:   {TransportInTransit, TransportCancelled},
	TransportInTransit: {TransportDelivered, TransportFailed, TransportCancelled},
}

// ParseTransportJobStatus 解析运输任务状态
func ParseTransportJobStatus(s string) (TransportJobStatus, error) {
	return parseEnum("transport_job_status", s, strings.ToLower,
		TransportPending, TransportInTransit, TransportDelivered, TransportFailed, TransportCancelled)
}

// IsTerminal 是否终态
func (s TransportJobStatus) IsTerminal() bool {
	return s == TransportDelivered || s == TransportFailed || s == TransportCancelled
}

// CanTransitionTo 判断迁移是否合法
func (s TransportJobStatus) CanTransitionTo(next TransportJobStatus) bool {
	for _, n := range transportTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// DispatchStatus 运输任务状态在发货申请上的映射
func (s TransportJobStatus) DispatchStatus() DispatchStatus {
	switch s {
	case TransportInTransit:
		return DispatchInTransit
	case TransportDelivered:
		return DispatchDelivered
	case TransportFailed:
		return DispatchFailed
	case TransportCancelled:
		return DispatchCancelled
	default:
		return DispatchAssignedTransport
	}
}

// Value 入库前再次规范化
func (s TransportJobStatus) Value() (driver.Value, error) {
	v, err := ParseTransportJobStatus(string(s))
	if err != nil {
		return nil, err
	}
	return string(v), nil
}

// Scan 出库时规范化
func (s *TransportJobStatus) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	v, err := ParseTransportJobStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ════════════════════════════════════════════════════════════
// 车辆
// ════════════════════════════════════════════════════════════

// VehicleStatus 车辆状态（小写存储）
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleAssigned    VehicleStatus = "assigned"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// ParseVehicleStatus 解析车辆状态
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	return parseEnum("vehicle_status", s, strings.ToLower, VehicleAvailable, VehicleAssigned, VehicleMaintenance)
}

// Value 入库前再次规范化
func (s VehicleStatus) Value() (driver.Value, error) {
	v, err := ParseVehicleStatus(string(s))
	if err != nil {
		return nil, err
	}
	return string(v), nil
}

// Scan 出库时规范化
func (s *VehicleStatus) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	v, err := ParseVehicleStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ════════════════════════════════════════════════════════════
// 考勤
// ════════════════════════════════════════════════════════════

// AttendanceStatus 考勤状态（大写存储，兼容既有报表查询）
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceHalfDay AttendanceStatus = "HALF_DAY"
)

// ParseAttendanceStatus 解析考勤状态，大小写不敏感，统一输出大写
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	return parseEnum("attendance_status", s, strings.ToUpper,
		AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceHalfDay)
}

// Value 入库前再次规范化
func (s AttendanceStatus) Value() (driver.Value, error) {
	v, err := ParseAttendanceStatus(string(s))
	if err != nil {
		return nil, err
	}
	return string(v), nil
}

// Scan 出库时规范化，历史小写数据在此统一为大写
func (s *AttendanceStatus) Scan(src interface{}) error {
	raw, err := scanEnum(src)
	if err != nil {
		return err
	}
	v, err := ParseAttendanceStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
