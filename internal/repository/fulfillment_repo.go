package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

// GatePassRepository 出门证数据访问接口
type GatePassRepository interface {
	Create(ctx context.Context, gp *model.GatePass) error
	GetByID(ctx context.Context, id string) (*model.GatePass, error)
	GetByDispatchID(ctx context.Context, dispatchID string) (*model.GatePass, error)
	// UpdateStatus 仅当当前状态为 from 时写入 gp 的状态、核验时间与备注
	UpdateStatus(ctx context.Context, gp *model.GatePass, from model.GatePassStatus) error
}

// TransportJobRepository 运输任务数据访问接口
type TransportJobRepository interface {
	Create(ctx context.Context, job *model.TransportJob) error
	GetByID(ctx context.Context, id string) (*model.TransportJob, error)
	GetByDispatchID(ctx context.Context, dispatchID string) (*model.TransportJob, error)
	// UpdateStatus 仅当当前状态为 from 时写入 job 的状态、时间戳与备注
	UpdateStatus(ctx context.Context, job *model.TransportJob, from model.TransportJobStatus) error
}

// ── GatePass Repository 实现 ──

type gatePassRepo struct {
	db *gorm.DB
}

// NewGatePassRepo 创建 GatePassRepository 实例
func NewGatePassRepo(db *gorm.DB) GatePassRepository {
	return &gatePassRepo{db: db}
}

func (r *gatePassRepo) Create(ctx context.Context, gp *model.GatePass) error {
	return r.db.WithContext(ctx).Create(gp).Error
}

func (r *gatePassRepo) GetByID(ctx context.Context, id string) (*model.GatePass, error) {
	var gp model.GatePass
	if err := r.db.WithContext(ctx).Where("gate_pass_id = ?", id).First(&gp).Error; err != nil {
		return nil, err
	}
	return &gp, nil
}

func (r *gatePassRepo) GetByDispatchID(ctx context.Context, dispatchID string) (*model.GatePass, error) {
	var gp model.GatePass
	if err := r.db.WithContext(ctx).Where("dispatch_request_id = ?", dispatchID).First(&gp).Error; err != nil {
		return nil, err
	}
	return &gp, nil
}

func (r *gatePassRepo) UpdateStatus(ctx context.Context, gp *model.GatePass, from model.GatePassStatus) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.GatePass{}).
		Where("gate_pass_id = ? AND status = ?", gp.GatePassID, from).
		Updates(map[string]interface{}{
			"status":      gp.Status,
			"verified_at": gp.VerifiedAt,
			"remarks":     gp.Remarks,
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	gp.UpdatedAt = now
	return nil
}

// ── TransportJob Repository 实现 ──

type transportJobRepo struct {
	db *gorm.DB
}

// NewTransportJobRepo 创建 TransportJobRepository 实例
func NewTransportJobRepo(db *gorm.DB) TransportJobRepository {
	return &transportJobRepo{db: db}
}

func (r *transportJobRepo) Create(ctx context.Context, job *model.TransportJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *transportJobRepo) GetByID(ctx context.Context, id string) (*model.TransportJob, error) {
	var job model.TransportJob
	if err := r.db.WithContext(ctx).Where("transport_job_id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *transportJobRepo) GetByDispatchID(ctx context.Context, dispatchID string) (*model.TransportJob, error) {
	var job model.TransportJob
	if err := r.db.WithContext(ctx).Where("dispatch_request_id = ?", dispatchID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *transportJobRepo) UpdateStatus(ctx context.Context, job *model.TransportJob, from model.TransportJobStatus) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.TransportJob{}).
		Where("transport_job_id = ? AND status = ?", job.TransportJobID, from).
		Updates(map[string]interface{}{
			"status":        job.Status,
			"dispatched_at": job.DispatchedAt,
			"delivered_at":  job.DeliveredAt,
			"remarks":       job.Remarks,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	job.UpdatedAt = now
	return nil
}
