package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
)

// VehicleRepository 车辆数据访问接口
type VehicleRepository interface {
	Create(ctx context.Context, v *model.Vehicle) error
	GetByID(ctx context.Context, id string) (*model.Vehicle, error)
	GetByNumber(ctx context.Context, number string) (*model.Vehicle, error)
	List(ctx context.Context, status model.VehicleStatus, page Page) ([]model.Vehicle, int64, error)
	Update(ctx context.Context, v *model.Vehicle) error
	// SetStatus 按车牌号无条件写入状态；车牌不存在时返回 false
	SetStatus(ctx context.Context, number string, status model.VehicleStatus) (bool, error)
}

type vehicleRepo struct {
	db *gorm.DB
}

// NewVehicleRepo 创建 VehicleRepository 实例
func NewVehicleRepo(db *gorm.DB) VehicleRepository {
	return &vehicleRepo{db: db}
}

func (r *vehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *vehicleRepo) GetByID(ctx context.Context, id string) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := r.db.WithContext(ctx).Where("vehicle_id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vehicleRepo) GetByNumber(ctx context.Context, number string) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := r.db.WithContext(ctx).Where("vehicle_number = ?", number).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vehicleRepo) List(ctx context.Context, status model.VehicleStatus, page Page) ([]model.Vehicle, int64, error) {
	var items []model.Vehicle
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Vehicle{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(page.Offset).Limit(page.Limit).
		Order("vehicle_number ASC").
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *vehicleRepo) Update(ctx context.Context, v *model.Vehicle) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *vehicleRepo) SetStatus(ctx context.Context, number string, status model.VehicleStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Vehicle{}).
		Where("vehicle_number = ?", number).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
