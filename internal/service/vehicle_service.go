package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

const entityVehicle = "vehicle"

// VehicleService 车辆登记业务接口
//
// Mark* 为无条件写入，不校验原状态；车牌未登记时为空操作（返回 false, nil），
// 因为发货可能使用登记表之外的临时车辆。
type VehicleService interface {
	MarkAssigned(ctx context.Context, vehicleNo string) (bool, error)
	MarkAvailable(ctx context.Context, vehicleNo string) (bool, error)
	MarkMaintenance(ctx context.Context, vehicleNo string) (bool, error)
	SetStatus(ctx context.Context, vehicleNo string, req *dto.SetVehicleStatusRequest) (*dto.VehicleStatusResponse, error)

	Create(ctx context.Context, req *dto.CreateVehicleRequest) (*dto.VehicleResponse, error)
	Get(ctx context.Context, id string) (*dto.VehicleResponse, error)
	List(ctx context.Context, req *dto.VehicleListRequest) (*dto.ListResponse[dto.VehicleResponse], error)
	Update(ctx context.Context, id string, req *dto.UpdateVehicleRequest) (*dto.VehicleResponse, error)
}

type vehicleService struct {
	repo   *repository.Repository
	dep    dependencyPolicy
	logger *zap.Logger
}

// NewVehicleService 创建 VehicleService 实例
func NewVehicleService(repo *repository.Repository, depCfg config.DependencyConfig, logger *zap.Logger) VehicleService {
	return &vehicleService{repo: repo, dep: newDependencyPolicy(depCfg), logger: logger}
}

// normalizeVehicleNo 车牌号统一去空白并转大写
func normalizeVehicleNo(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// markVehicle 车辆状态写入，调度引擎在自身事务内复用
func markVehicle(ctx context.Context, vehicles repository.VehicleRepository, logger *zap.Logger, vehicleNo string, status model.VehicleStatus) (bool, error) {
	vehicleNo = normalizeVehicleNo(vehicleNo)
	if vehicleNo == "" {
		return false, nil
	}
	ok, err := vehicles.SetStatus(ctx, vehicleNo, status)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Debug("车辆未登记，跳过状态更新", zap.String("vehicle_no", vehicleNo), zap.String("status", string(status)))
	}
	return ok, nil
}

// ────────────────────── Mark* ──────────────────────

func (s *vehicleService) MarkAssigned(ctx context.Context, vehicleNo string) (bool, error) {
	return s.mark(ctx, vehicleNo, model.VehicleAssigned)
}

func (s *vehicleService) MarkAvailable(ctx context.Context, vehicleNo string) (bool, error) {
	return s.mark(ctx, vehicleNo, model.VehicleAvailable)
}

func (s *vehicleService) MarkMaintenance(ctx context.Context, vehicleNo string) (bool, error) {
	return s.mark(ctx, vehicleNo, model.VehicleMaintenance)
}

func (s *vehicleService) mark(ctx context.Context, vehicleNo string, status model.VehicleStatus) (bool, error) {
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()

	ok, err := markVehicle(cctx, s.repo.Vehicle, s.logger, vehicleNo, status)
	if err != nil {
		err = classifyErr(err, entityVehicle, vehicleNo)
		s.logger.Error("更新车辆状态失败", zap.String("vehicle_no", vehicleNo), zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (s *vehicleService) SetStatus(ctx context.Context, vehicleNo string, req *dto.SetVehicleStatusRequest) (*dto.VehicleStatusResponse, error) {
	status, err := model.ParseVehicleStatus(req.Status)
	if err != nil {
		return nil, pkgerrors.Validation(entityVehicle, vehicleNo, err.Error())
	}
	ok, err := s.mark(ctx, vehicleNo, status)
	if err != nil {
		return nil, err
	}
	return &dto.VehicleStatusResponse{VehicleNumber: normalizeVehicleNo(vehicleNo), Status: string(status), Tracked: ok}, nil
}

// ────────────────────── CRUD ──────────────────────

func (s *vehicleService) Create(ctx context.Context, req *dto.CreateVehicleRequest) (*dto.VehicleResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityVehicle, "", err.Error())
	}

	v := &model.Vehicle{
		VehicleNumber:   normalizeVehicleNo(req.VehicleNumber),
		VehicleType:     req.VehicleType,
		DriverName:      req.DriverName,
		DriverContact:   req.DriverContact,
		Capacity:        req.Capacity,
		Status:          model.VehicleAvailable,
		CurrentLocation: req.CurrentLocation,
		Notes:           req.Notes,
	}

	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Vehicle.Create(cctx, v); err != nil {
		err = classifyErr(err, entityVehicle, v.VehicleNumber)
		if isDependencyErr(err) {
			s.logger.Error("登记车辆失败", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("车辆已登记", zap.String("vehicle_id", v.VehicleID), zap.String("vehicle_no", v.VehicleNumber))
	return toVehicleResponse(v), nil
}

func (s *vehicleService) Get(ctx context.Context, id string) (*dto.VehicleResponse, error) {
	v, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.Vehicle, error) {
		return s.repo.Vehicle.GetByID(ctx, id)
	})
	if err != nil {
		return nil, s.readErr("查询车辆失败", err, id)
	}
	return toVehicleResponse(v), nil
}

func (s *vehicleService) List(ctx context.Context, req *dto.VehicleListRequest) (*dto.ListResponse[dto.VehicleResponse], error) {
	var status model.VehicleStatus
	if req.Status != "" {
		st, err := model.ParseVehicleStatus(req.Status)
		if err != nil {
			return nil, pkgerrors.Validation(entityVehicle, "", err.Error())
		}
		status = st
	}

	type page struct {
		items []model.Vehicle
		total int64
	}
	res, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (page, error) {
		items, total, err := s.repo.Vehicle.List(ctx, status, repository.Page{
			Offset: req.GetOffset(),
			Limit:  req.GetPageSize(),
		})
		return page{items: items, total: total}, err
	})
	if err != nil {
		return nil, s.readErr("查询车辆列表失败", err, "")
	}

	out := make([]dto.VehicleResponse, 0, len(res.items))
	for i := range res.items {
		out = append(out, *toVehicleResponse(&res.items[i]))
	}
	return dto.NewListResponse(out, res.total, req.PaginationRequest), nil
}

func (s *vehicleService) Update(ctx context.Context, id string, req *dto.UpdateVehicleRequest) (*dto.VehicleResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityVehicle, id, err.Error())
	}

	v, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.Vehicle, error) {
		return s.repo.Vehicle.GetByID(ctx, id)
	})
	if err != nil {
		return nil, s.readErr("查询车辆失败", err, id)
	}

	if req.VehicleType != nil {
		v.VehicleType = *req.VehicleType
	}
	if req.DriverName != nil {
		v.DriverName = *req.DriverName
	}
	if req.DriverContact != nil {
		v.DriverContact = *req.DriverContact
	}
	if req.Capacity != nil {
		v.Capacity = *req.Capacity
	}
	if req.CurrentLocation != nil {
		v.CurrentLocation = *req.CurrentLocation
	}
	if req.Notes != nil {
		v.Notes = *req.Notes
	}

	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Vehicle.Update(cctx, v); err != nil {
		err = classifyErr(err, entityVehicle, id)
		s.logger.Error("更新车辆失败", zap.String("vehicle_id", id), zap.Error(err))
		return nil, err
	}
	return toVehicleResponse(v), nil
}

func (s *vehicleService) readErr(msg string, err error, id string) error {
	err = classifyErr(err, entityVehicle, id)
	if isDependencyErr(err) {
		s.logger.Error(msg, zap.String("vehicle_id", id), zap.Error(err))
	}
	return err
}

func toVehicleResponse(v *model.Vehicle) *dto.VehicleResponse {
	return &dto.VehicleResponse{
		ID:              v.VehicleID,
		VehicleNumber:   v.VehicleNumber,
		VehicleType:     v.VehicleType,
		DriverName:      v.DriverName,
		DriverContact:   v.DriverContact,
		Capacity:        v.Capacity,
		Status:          string(v.Status),
		CurrentLocation: v.CurrentLocation,
		Notes:           v.Notes,
		CreatedAt:       formatTime(v.CreatedAt),
		UpdatedAt:       formatTime(v.UpdatedAt),
	}
}
