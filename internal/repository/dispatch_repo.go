package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

// DispatchFilter 发货申请列表筛选条件
type DispatchFilter struct {
	Status       model.DispatchStatus
	DeliveryType model.DeliveryType
	SalesOrderID string
	Page
}

// DispatchRepository 发货申请数据访问接口
type DispatchRepository interface {
	Create(ctx context.Context, dr *model.DispatchRequest) error
	GetByID(ctx context.Context, id string) (*model.DispatchRequest, error)
	// GetForUpdate 在事务内以 SELECT ... FOR UPDATE 读取（不加载关联）
	GetForUpdate(ctx context.Context, id string) (*model.DispatchRequest, error)
	List(ctx context.Context, filter DispatchFilter) ([]model.DispatchRequest, int64, error)
	// UpdateDetails 更新联系方式、地址、发货方式与备注，不触碰 status / original_delivery_type。
	// 仅 pending 状态可改，否则返回 ErrOptimisticLock
	UpdateDetails(ctx context.Context, dr *model.DispatchRequest) error
	// TransitionStatus 状态比较并交换：仅当当前状态为 from 时改为 to，返回写入的 updated_at；
	// 状态已变化时返回 ErrOptimisticLock
	TransitionStatus(ctx context.Context, id string, from, to model.DispatchStatus) (time.Time, error)
}

type dispatchRepo struct {
	db *gorm.DB
}

// NewDispatchRepo 创建 DispatchRepository 实例
func NewDispatchRepo(db *gorm.DB) DispatchRepository {
	return &dispatchRepo{db: db}
}

func (r *dispatchRepo) Create(ctx context.Context, dr *model.DispatchRequest) error {
	return r.db.WithContext(ctx).Omit("GatePass", "TransportJob").Create(dr).Error
}

func (r *dispatchRepo) GetByID(ctx context.Context, id string) (*model.DispatchRequest, error) {
	var dr model.DispatchRequest
	err := r.db.WithContext(ctx).
		Preload("GatePass").
		Preload("TransportJob").
		Where("dispatch_request_id = ?", id).
		First(&dr).Error
	if err != nil {
		return nil, err
	}
	return &dr, nil
}

func (r *dispatchRepo) GetForUpdate(ctx context.Context, id string) (*model.DispatchRequest, error) {
	var dr model.DispatchRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("dispatch_request_id = ?", id).
		First(&dr).Error
	if err != nil {
		return nil, err
	}
	return &dr, nil
}

func (r *dispatchRepo) List(ctx context.Context, filter DispatchFilter) ([]model.DispatchRequest, int64, error) {
	var items []model.DispatchRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.DispatchRequest{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.DeliveryType != "" {
		db = db.Where("delivery_type = ?", filter.DeliveryType)
	}
	if filter.SalesOrderID != "" {
		db = db.Where("sales_order_id = ?", filter.SalesOrderID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("GatePass").Preload("TransportJob").
		Offset(filter.Offset).Limit(filter.Limit).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *dispatchRepo) UpdateDetails(ctx context.Context, dr *model.DispatchRequest) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.DispatchRequest{}).
		Where("dispatch_request_id = ? AND status = ?", dr.DispatchRequestID, model.DispatchPending).
		Updates(map[string]interface{}{
			"party_contact":  dr.PartyContact,
			"party_address":  dr.PartyAddress,
			"delivery_type":  dr.DeliveryType,
			"dispatch_notes": dr.DispatchNotes,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	dr.UpdatedAt = now
	return nil
}

func (r *dispatchRepo) TransitionStatus(ctx context.Context, id string, from, to model.DispatchStatus) (time.Time, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.DispatchRequest{}).
		Where("dispatch_request_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": now,
		})
	if result.Error != nil {
		return time.Time{}, result.Error
	}
	if result.RowsAffected == 0 {
		return time.Time{}, pkgerrors.ErrOptimisticLock
	}
	return now, nil
}
