package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
)

// EmployeeRepository 员工数据访问接口（只读，员工档案由人事模块维护）
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*model.Employee, error)
	// GetByIdentity 按门禁凭据查找员工，不过滤在职状态
	GetByIdentity(ctx context.Context, identity model.Identity) (*model.Employee, error)
	ListActive(ctx context.Context) ([]model.Employee, error)
}

// SalesOrderRepository 销售订单只读接口
type SalesOrderRepository interface {
	GetByID(ctx context.Context, id string) (*model.SalesOrder, error)
}

// ── Employee Repository 实现 ──

type employeeRepo struct {
	db *gorm.DB
}

// NewEmployeeRepo 创建 EmployeeRepository 实例
func NewEmployeeRepo(db *gorm.DB) EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*model.Employee, error) {
	var emp model.Employee
	if err := r.db.WithContext(ctx).Where("employee_id = ?", id).First(&emp).Error; err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepo) GetByIdentity(ctx context.Context, identity model.Identity) (*model.Employee, error) {
	column, value, ok := identity.Key()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	var emp model.Employee
	// column 只可能是 Identity.Key 返回的固定列名
	err := r.db.WithContext(ctx).
		Where(column+" = ?", value).
		First(&emp).Error
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *employeeRepo) ListActive(ctx context.Context) ([]model.Employee, error) {
	var items []model.Employee
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("employee_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ── SalesOrder Repository 实现 ──

type salesOrderRepo struct {
	db *gorm.DB
}

// NewSalesOrderRepo 创建 SalesOrderRepository 实例
func NewSalesOrderRepo(db *gorm.DB) SalesOrderRepository {
	return &salesOrderRepo{db: db}
}

func (r *salesOrderRepo) GetByID(ctx context.Context, id string) (*model.SalesOrder, error) {
	var so model.SalesOrder
	if err := r.db.WithContext(ctx).Where("sales_order_id = ?", id).First(&so).Error; err != nil {
		return nil, err
	}
	return &so, nil
}
