package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Dispatch     DispatchRepository
	GatePass     GatePassRepository
	TransportJob TransportJobRepository
	Vehicle      VehicleRepository
	Attendance   AttendanceRepository
	Employee     EmployeeRepository
	SalesOrder   SalesOrderRepository
	SystemConfig SystemConfigRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Dispatch:     NewDispatchRepo(db),
		GatePass:     NewGatePassRepo(db),
		TransportJob: NewTransportJobRepo(db),
		Vehicle:      NewVehicleRepo(db),
		Attendance:   NewAttendanceRepo(db),
		Employee:     NewEmployeeRepo(db),
		SalesOrder:   NewSalesOrderRepo(db),
		SystemConfig: NewSystemConfigRepo(db),
		db:           db,
	}
}

// Transaction 在同一数据库事务内执行 fn，fn 收到绑定到事务的 Repository。
// fn 返回错误或 panic 时回滚。
// 未绑定数据库（单元测试中手工组装的 Repository）时直接执行 fn。
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// Ping 数据库健康检查
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Page 分页参数
type Page struct {
	Offset int
	Limit  int
}
