package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

const entitySystemConfig = "system_config"

// ── 系统配置模块业务错误 ──

var (
	ErrSystemConfigNotFound = pkgerrors.New(pkgerrors.ErrNotFound, entitySystemConfig, "", "系统配置未初始化")
)

// SystemConfigService 系统配置业务接口（考勤判定口径，运行时可调）
type SystemConfigService interface {
	Get(ctx context.Context) (*dto.SystemConfigResponse, error)
	Update(ctx context.Context, req *dto.UpdateSystemConfigRequest) (*dto.SystemConfigResponse, error)
}

type systemConfigService struct {
	repo   *repository.Repository
	dep    dependencyPolicy
	logger *zap.Logger
}

// NewSystemConfigService 创建 SystemConfigService 实例
func NewSystemConfigService(repo *repository.Repository, depCfg config.DependencyConfig, logger *zap.Logger) SystemConfigService {
	return &systemConfigService{repo: repo, dep: newDependencyPolicy(depCfg), logger: logger}
}

// ────────────────────── Get ──────────────────────

func (s *systemConfigService) Get(ctx context.Context) (*dto.SystemConfigResponse, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return toSystemConfigResponse(cfg), nil
}

// ────────────────────── Update ──────────────────────

func (s *systemConfigService) Update(ctx context.Context, req *dto.UpdateSystemConfigRequest) (*dto.SystemConfigResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entitySystemConfig, "", err.Error())
	}

	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if req.OnTimeCutoff != nil {
		cutoff, err := model.ParseTimeOfDay(*req.OnTimeCutoff)
		if err != nil {
			return nil, pkgerrors.Validation(entitySystemConfig, "", err.Error())
		}
		cfg.OnTimeCutoff = cutoff
	}
	if req.HalfDayHours != nil {
		cfg.HalfDayHours = *req.HalfDayHours
	}

	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	if err := s.repo.SystemConfig.Update(cctx, cfg); err != nil {
		err = classifyErr(err, entitySystemConfig, "")
		s.logger.Error("更新系统配置失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("考勤口径已更新",
		zap.String("on_time_cutoff", cfg.OnTimeCutoff.String()),
		zap.Float64("half_day_hours", cfg.HalfDayHours),
	)
	return toSystemConfigResponse(cfg), nil
}

func (s *systemConfigService) load(ctx context.Context) (*model.SystemConfig, error) {
	cfg, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.SystemConfig, error) {
		return s.repo.SystemConfig.Get(ctx)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSystemConfigNotFound
		}
		err = classifyErr(err, entitySystemConfig, "")
		s.logger.Error("查询系统配置失败", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

func toSystemConfigResponse(cfg *model.SystemConfig) *dto.SystemConfigResponse {
	return &dto.SystemConfigResponse{
		OnTimeCutoff: cfg.OnTimeCutoff.String(),
		HalfDayHours: cfg.HalfDayHours,
		UpdatedAt:    formatTime(cfg.UpdatedAt),
	}
}
