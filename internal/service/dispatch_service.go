package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/clock"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

const (
	entityDispatch     = "dispatch_request"
	entityGatePass     = "gate_pass"
	entityTransportJob = "transport_job"
	entitySalesOrder   = "sales_order"
)

// DispatchService 发货状态机业务接口
//
// 状态流转：
//
//	pending → ready_for_pickup（自提，生成出门证）→ dispatched → delivered
//	pending → assigned_transport（公司运输，生成运输任务）→ in_transit → delivered
//	任一非终态 → cancelled / failed
//
// 每个发货申请最多一张出门证或一个运输任务：状态比较并交换与子表唯一索引共同保证。
// 通知均在事务提交后发布。
type DispatchService interface {
	Create(ctx context.Context, req *dto.CreateDispatchRequest) (*dto.DispatchResponse, error)
	OverrideDeliveryType(ctx context.Context, id string, req *dto.OverrideDeliveryTypeRequest) (*dto.DispatchResponse, error)
	Process(ctx context.Context, id string, req *dto.ProcessDispatchRequest) (*dto.DispatchResponse, error)
	VerifyGatePass(ctx context.Context, gatePassID string, req *dto.VerifyGatePassRequest) (*dto.GatePassResponse, error)
	UpdateTransportJob(ctx context.Context, jobID string, req *dto.UpdateTransportJobRequest) (*dto.TransportJobResponse, error)
	Cancel(ctx context.Context, id string, req *dto.CancelDispatchRequest) (*dto.DispatchResponse, error)

	Get(ctx context.Context, id string) (*dto.DispatchResponse, error)
	List(ctx context.Context, req *dto.DispatchListRequest) (*dto.ListResponse[dto.DispatchResponse], error)
	GetGatePass(ctx context.Context, id string) (*dto.GatePassResponse, error)
	GetTransportJob(ctx context.Context, id string) (*dto.TransportJobResponse, error)
}

type dispatchService struct {
	repo          *repository.Repository
	cfg           config.DispatchConfig
	dep           dependencyPolicy
	notifications NotificationService
	metrics       *metrics.Metrics
	clock         clock.Clock
	logger        *zap.Logger
}

// NewDispatchService 创建 DispatchService 实例
func NewDispatchService(
	cfg *config.Config,
	repo *repository.Repository,
	notifications NotificationService,
	m *metrics.Metrics,
	clk clock.Clock,
	logger *zap.Logger,
) DispatchService {
	if clk == nil {
		clk = clock.System()
	}
	return &dispatchService{
		repo:          repo,
		cfg:           cfg.Dispatch,
		dep:           newDependencyPolicy(cfg.Dependency),
		notifications: notifications,
		metrics:       m,
		clock:         clk,
		logger:        logger,
	}
}

// ════════════════════════════════════════════════════════════
// Create — 创建发货申请
// ════════════════════════════════════════════════════════════

func (s *dispatchService) Create(ctx context.Context, req *dto.CreateDispatchRequest) (*dto.DispatchResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityDispatch, "", err.Error())
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		return nil, pkgerrors.Validation(entityDispatch, "", fmt.Sprintf("quantity 必须 ≥ 1，实际 %d", quantity))
	}

	dr := &model.DispatchRequest{
		OrderNumber:   strings.TrimSpace(req.OrderNumber),
		PartyName:     strings.TrimSpace(req.PartyName),
		PartyContact:  strings.TrimSpace(req.PartyContact),
		PartyAddress:  strings.TrimSpace(req.PartyAddress),
		PartyEmail:    strings.TrimSpace(req.PartyEmail),
		Quantity:      quantity,
		Status:        model.DispatchPending,
		DispatchNotes: req.DispatchNotes,
	}
	rawType := req.DeliveryType

	// 关联销售订单：补齐未填写的客户信息
	if req.SalesOrderID != "" {
		so, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.SalesOrder, error) {
			return s.repo.SalesOrder.GetByID(ctx, req.SalesOrderID)
		})
		if err != nil {
			err = classifyErr(err, entitySalesOrder, req.SalesOrderID)
			if isDependencyErr(err) {
				s.logger.Error("查询销售订单失败", zap.String("sales_order_id", req.SalesOrderID), zap.Error(err))
			}
			return nil, err
		}
		soID := so.SalesOrderID
		dr.SalesOrderID = &soID
		fillFromSalesOrder(dr, so)
		if strings.TrimSpace(rawType) == "" {
			rawType = string(so.DeliveryType)
		}
	}

	deliveryType, err := model.ParseDeliveryType(rawType)
	if err != nil {
		return nil, pkgerrors.Validation(entityDispatch, "", err.Error())
	}
	if dr.PartyName == "" {
		return nil, pkgerrors.Validation(entityDispatch, "", "party_name 不能为空")
	}
	dr.DeliveryType = deliveryType
	dr.OriginalDeliveryType = deliveryType

	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Dispatch.Create(cctx, dr); err != nil {
		err = classifyErr(err, entityDispatch, "")
		s.logger.Error("创建发货申请失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("发货申请已创建",
		zap.String("dispatch_request_id", dr.DispatchRequestID),
		zap.String("delivery_type", string(dr.DeliveryType)),
	)
	return toDispatchResponse(dr), nil
}

func fillFromSalesOrder(dr *model.DispatchRequest, so *model.SalesOrder) {
	if dr.OrderNumber == "" {
		dr.OrderNumber = so.OrderNumber
	}
	if dr.PartyName == "" {
		dr.PartyName = strings.TrimSpace(so.CustomerName)
	}
	if dr.PartyContact == "" {
		dr.PartyContact = strings.TrimSpace(so.CustomerContact)
	}
	if dr.PartyAddress == "" {
		dr.PartyAddress = strings.TrimSpace(so.CustomerAddress)
	}
	if dr.PartyEmail == "" {
		dr.PartyEmail = strings.TrimSpace(so.CustomerEmail)
	}
}

// ════════════════════════════════════════════════════════════
// OverrideDeliveryType — 发货员变更发货方式（仅 pending）
// ════════════════════════════════════════════════════════════

func (s *dispatchService) OverrideDeliveryType(ctx context.Context, id string, req *dto.OverrideDeliveryTypeRequest) (*dto.DispatchResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityDispatch, id, err.Error())
	}
	deliveryType, err := model.ParseDeliveryType(req.DeliveryType)
	if err != nil {
		return nil, pkgerrors.Validation(entityDispatch, id, err.Error())
	}

	var result *model.DispatchRequest
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	err = s.repo.Transaction(cctx, func(tx *repository.Repository) error {
		dr, err := tx.Dispatch.GetForUpdate(cctx, id)
		if err != nil {
			return classifyErr(err, entityDispatch, id)
		}
		if dr.Status != model.DispatchPending {
			return pkgerrors.InvalidTransition(entityDispatch, id, dr.Status, "override_delivery_type")
		}
		dr.DeliveryType = deliveryType
		if req.Notes != "" {
			dr.DispatchNotes = appendNote(dr.DispatchNotes, req.Notes)
		}
		if err := tx.Dispatch.UpdateDetails(cctx, dr); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return pkgerrors.InvalidTransition(entityDispatch, id, dr.Status, "override_delivery_type")
			}
			return classifyErr(err, entityDispatch, id)
		}
		result = dr
		return nil
	})
	if err != nil {
		return nil, s.fail("变更发货方式失败", id, err)
	}

	s.logger.Info("发货方式已变更",
		zap.String("dispatch_request_id", id),
		zap.String("original", string(result.OriginalDeliveryType)),
		zap.String("delivery_type", string(result.DeliveryType)),
	)
	return toDispatchResponse(result), nil
}

// ════════════════════════════════════════════════════════════
// Process — 处理发货申请
// ════════════════════════════════════════════════════════════
//
// 同一事务内：行锁读取 → 校验 pending → applyDispatchDefaults →
// 状态比较并交换 → 创建唯一的出门证或运输任务 → （运输）车辆置为 assigned。
// 第二次调用因状态已离开 pending 返回 ErrInvalidStateTransition，不会产生第二条子记录。

func (s *dispatchService) Process(ctx context.Context, id string, req *dto.ProcessDispatchRequest) (*dto.DispatchResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityDispatch, id, err.Error())
	}

	var (
		result  *model.DispatchRequest
		pending []Notification
	)
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	err := s.repo.Transaction(cctx, func(tx *repository.Repository) error {
		pending = nil

		dr, err := tx.Dispatch.GetForUpdate(cctx, id)
		if err != nil {
			return classifyErr(err, entityDispatch, id)
		}
		if dr.Status != model.DispatchPending {
			return pkgerrors.InvalidTransition(entityDispatch, id, dr.Status, "process")
		}

		target := model.DispatchReadyForPickup
		vehicleNo := normalizeVehicleNo(req.VehicleNo)
		if dr.DeliveryType == model.DeliveryTransport {
			target = model.DispatchAssignedTransport
			if vehicleNo == "" {
				return pkgerrors.Validation(entityDispatch, id, "公司运输必须指定 vehicle_no")
			}
		}

		filled, err := applyDispatchDefaults(dr, s.cfg)
		if err != nil {
			return err
		}
		if filled {
			if err := tx.Dispatch.UpdateDetails(cctx, dr); err != nil {
				if errors.Is(err, pkgerrors.ErrOptimisticLock) {
					return pkgerrors.InvalidTransition(entityDispatch, id, dr.Status, target)
				}
				return classifyErr(err, entityDispatch, id)
			}
			s.logger.Info("发货申请缺失联系方式，已按占位值补齐", zap.String("dispatch_request_id", id))
		}

		updatedAt, err := tx.Dispatch.TransitionStatus(cctx, id, model.DispatchPending, target)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return pkgerrors.InvalidTransition(entityDispatch, id, dr.Status, target)
			}
			return classifyErr(err, entityDispatch, id)
		}
		dr.Status = target
		dr.UpdatedAt = updatedAt

		switch dr.DeliveryType {
		case model.DeliverySelf:
			if vehicleNo == "" {
				vehicleNo = selfPickupVehicleNo(dr)
			}
			gp := &model.GatePass{
				DispatchRequestID: dr.DispatchRequestID,
				PartyName:         dr.PartyName,
				VehicleNo:         vehicleNo,
				Status:            model.GatePassPending,
			}
			if err := tx.GatePass.Create(cctx, gp); err != nil {
				return childCreateErr(err, entityGatePass, id, dr.Status, target)
			}
			dr.GatePass = gp
			pending = append(pending, dispatchReadyNotification(dr, gp))

		case model.DeliveryTransport:
			driver := strings.TrimSpace(req.DriverName)
			if driver == "" {
				// 未指定司机时取登记车辆的默认司机
				if v, err := tx.Vehicle.GetByNumber(cctx, vehicleNo); err == nil {
					driver = v.DriverName
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return classifyErr(err, entityVehicle, vehicleNo)
				}
			}
			job := &model.TransportJob{
				DispatchRequestID: dr.DispatchRequestID,
				TransporterName:   strings.TrimSpace(req.TransporterName),
				DriverName:        driver,
				VehicleNo:         vehicleNo,
				Status:            model.TransportPending,
			}
			if err := tx.TransportJob.Create(cctx, job); err != nil {
				return childCreateErr(err, entityTransportJob, id, dr.Status, target)
			}
			if _, err := markVehicle(cctx, tx.Vehicle, s.logger, vehicleNo, model.VehicleAssigned); err != nil {
				return classifyErr(err, entityVehicle, vehicleNo)
			}
			dr.TransportJob = job
			pending = append(pending, driverAssignedNotification(dr, job))
		}

		result = dr
		return nil
	})
	if err != nil {
		return nil, s.fail("处理发货申请失败", id, err)
	}

	s.metrics.ObserveDispatch(string(model.DispatchPending), string(result.Status))
	publishAll(s.notifications, pending)
	s.logger.Info("发货申请已处理",
		zap.String("dispatch_request_id", id),
		zap.String("status", string(result.Status)),
	)
	return toDispatchResponse(result), nil
}

// applyDispatchDefaults 补齐发货所需的联系方式与地址。
// dispatch.fill_missing_contact 开启时以占位值补齐并返回 true；关闭时缺失即校验失败。
func applyDispatchDefaults(dr *model.DispatchRequest, cfg config.DispatchConfig) (bool, error) {
	missingContact := strings.TrimSpace(dr.PartyContact) == ""
	missingAddress := strings.TrimSpace(dr.PartyAddress) == ""
	if !missingContact && !missingAddress {
		return false, nil
	}
	if !cfg.FillMissingContact {
		return false, pkgerrors.Validation(entityDispatch, dr.DispatchRequestID, "缺少联系方式或地址")
	}
	if missingContact {
		dr.PartyContact = cfg.PlaceholderContact
	}
	if missingAddress {
		dr.PartyAddress = cfg.PlaceholderAddress
	}
	return true, nil
}

// selfPickupVehicleNo 自提未登记车辆时生成的车牌占位 SELF-<订单号>。
// 超出车牌列长度时截断订单号并追加其 FNV 摘要，不同订单号仍可区分。
func selfPickupVehicleNo(dr *model.DispatchRequest) string {
	const prefix = "SELF-"
	ref := strings.ToUpper(strings.TrimSpace(dr.OrderNumber))
	if ref == "" {
		ref = strings.ToUpper(dr.DispatchRequestID)
		if len(ref) > 8 {
			ref = ref[:8]
		}
	}

	room := model.VehicleNoMaxLen - len(prefix)
	runes := []rune(ref)
	if len(runes) <= room {
		return prefix + ref
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(ref))
	sum := fmt.Sprintf("%08X", h.Sum32())
	return prefix + string(runes[:room-len(sum)-1]) + "-" + sum
}

// childCreateErr 子记录唯一索引冲突说明已被并发处理
func childCreateErr(err error, entity, dispatchID string, from, to model.DispatchStatus) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.InvalidTransition(entityDispatch, dispatchID, from, to)
	}
	return classifyErr(err, entity, dispatchID)
}

// ════════════════════════════════════════════════════════════
// VerifyGatePass — 门卫核验出门证
// ════════════════════════════════════════════════════════════

func (s *dispatchService) VerifyGatePass(ctx context.Context, gatePassID string, req *dto.VerifyGatePassRequest) (*dto.GatePassResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityGatePass, gatePassID, err.Error())
	}
	decision, err := model.ParseGatePassStatus(req.Decision)
	if err != nil || decision == model.GatePassPending {
		return nil, pkgerrors.Validation(entityGatePass, gatePassID, "decision 只能是 verified 或 rejected")
	}

	var (
		result  *model.GatePass
		from    model.DispatchStatus
		to      model.DispatchStatus
		pending []Notification
	)
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	err = s.repo.Transaction(cctx, func(tx *repository.Repository) error {
		pending = nil

		gp, err := tx.GatePass.GetByID(cctx, gatePassID)
		if err != nil {
			return classifyErr(err, entityGatePass, gatePassID)
		}
		if gp.Status != model.GatePassPending {
			return pkgerrors.InvalidTransition(entityGatePass, gatePassID, gp.Status, decision)
		}

		dr, err := tx.Dispatch.GetForUpdate(cctx, gp.DispatchRequestID)
		if err != nil {
			return classifyErr(err, entityDispatch, gp.DispatchRequestID)
		}
		to = model.DispatchDispatched
		if decision == model.GatePassRejected {
			to = model.DispatchFailed
		}
		if !dr.Status.CanTransitionTo(to) {
			return pkgerrors.InvalidTransition(entityDispatch, dr.DispatchRequestID, dr.Status, to)
		}
		from = dr.Status

		gp.Status = decision
		if req.Remarks != "" {
			gp.Remarks = req.Remarks
		}
		if decision == model.GatePassVerified {
			now := s.clock.Now()
			gp.VerifiedAt = &now
		}
		if err := tx.GatePass.UpdateStatus(cctx, gp, model.GatePassPending); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return pkgerrors.InvalidTransition(entityGatePass, gatePassID, model.GatePassPending, decision)
			}
			return classifyErr(err, entityGatePass, gatePassID)
		}

		updatedAt, err := tx.Dispatch.TransitionStatus(cctx, dr.DispatchRequestID, from, to)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return pkgerrors.InvalidTransition(entityDispatch, dr.DispatchRequestID, from, to)
			}
			return classifyErr(err, entityDispatch, dr.DispatchRequestID)
		}
		dr.Status = to
		dr.UpdatedAt = updatedAt

		if decision == model.GatePassVerified {
			if _, err := markVehicle(cctx, tx.Vehicle, s.logger, gp.VehicleNo, model.VehicleAvailable); err != nil {
				return classifyErr(err, entityVehicle, gp.VehicleNo)
			}
		}

		pending = gatePassDecisionNotifications(dr, gp)
		result = gp
		return nil
	})
	if err != nil {
		return nil, s.fail("核验出门证失败", gatePassID, err)
	}

	s.metrics.ObserveDispatch(string(from), string(to))
	publishAll(s.notifications, pending)
	s.logger.Info("出门证已核验",
		zap.String("gate_pass_id", gatePassID),
		zap.String("decision", string(decision)),
	)
	return toGatePassResponse(result), nil
}

// ════════════════════════════════════════════════════════════
// UpdateTransportJob — 更新运输任务状态
// ════════════════════════════════════════════════════════════

func (s *dispatchService) UpdateTransportJob(ctx context.Context, jobID string, req *dto.UpdateTransportJobRequest) (*dto.TransportJobResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityTransportJob, jobID, err.Error())
	}
	next, err := model.ParseTransportJobStatus(req.Status)
	if err != nil {
		return nil, pkgerrors.Validation(entityTransportJob, jobID, err.Error())
	}

	var (
		result  *model.TransportJob
		from    model.DispatchStatus
		to      model.DispatchStatus
		pending []Notification
	)
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	err = s.repo.Transaction(cctx, func(tx *repository.Repository) error {
		pending = nil

		job, err := tx.TransportJob.GetByID(cctx, jobID)
		if err != nil {
			return classifyErr(err, entityTransportJob, jobID)
		}
		prev := job.Status
		if !prev.CanTransitionTo(next) {
			return pkgerrors.InvalidTransition(entityTransportJob, jobID, prev, next)
		}

		dr, err := tx.Dispatch.GetForUpdate(cctx, job.DispatchRequestID)
		if err != nil {
			return classifyErr(err, entityDispatch, job.DispatchRequestID)
		}
		from, to = dr.Status, next.DispatchStatus()
		if from != to && !from.CanTransitionTo(to) {
			return pkgerrors.InvalidTransition(entityDispatch, dr.DispatchRequestID, from, to)
		}

		now := s.clock.Now()
		job.Status = next
		switch next {
		case model.TransportInTransit:
			job.DispatchedAt = &now
		case model.TransportDelivered:
			job.DeliveredAt = &now
		}
		if req.Remarks != "" {
			job.Remarks = req.Remarks
		}
		if err := tx.TransportJob.UpdateStatus(cctx, job, prev); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return pkgerrors.InvalidTransition(entityTransportJob, jobID, prev, next)
			}
			return classifyErr(err, entityTransportJob, jobID)
		}

		if from != to {
			updatedAt, err := tx.Dispatch.TransitionStatus(cctx, dr.DispatchRequestID, from, to)
			if err != nil {
				if errors.Is(err, pkgerrors.ErrOptimisticLock) {
					return pkgerrors.InvalidTransition(entityDispatch, dr.DispatchRequestID, from, to)
				}
				return classifyErr(err, entityDispatch, dr.DispatchRequestID)
			}
			dr.Status = to
			dr.UpdatedAt = updatedAt
		}

		pending = append(pending, deliveryStatusNotification(dr, job))
		if next.IsTerminal() {
			if _, err := markVehicle(cctx, tx.Vehicle, s.logger, job.VehicleNo, model.VehicleAvailable); err != nil {
				return classifyErr(err, entityVehicle, job.VehicleNo)
			}
			pending = append(pending, driverAvailableNotification(dr, job))
		}

		result = job
		return nil
	})
	if err != nil {
		return nil, s.fail("更新运输任务失败", jobID, err)
	}

	if from != to {
		s.metrics.ObserveDispatch(string(from), string(to))
	}
	publishAll(s.notifications, pending)
	s.logger.Info("运输任务状态已更新",
		zap.String("transport_job_id", jobID),
		zap.String("status", string(next)),
	)
	return toTransportJobResponse(result), nil
}

// ════════════════════════════════════════════════════════════
// Cancel — 取消发货申请
// ════════════════════════════════════════════════════════════

func (s *dispatchService) Cancel(ctx context.Context, id string, req *dto.CancelDispatchRequest) (*dto.DispatchResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityDispatch, id, err.Error())
	}

	var (
		result  *model.DispatchRequest
		from    model.DispatchStatus
		pending []Notification
	)
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	err := s.repo.Transaction(cctx, func(tx *repository.Repository) error {
		pending = nil

		dr, err := tx.Dispatch.GetForUpdate(cctx, id)
		if err != nil {
			return classifyErr(err, entityDispatch, id)
		}
		if !dr.Status.CanTransitionTo(model.DispatchCancelled) {
			return pkgerrors.InvalidTransition(entityDispatch, id, dr.Status, model.DispatchCancelled)
		}
		from = dr.Status
		updatedAt, err := tx.Dispatch.TransitionStatus(cctx, id, from, model.DispatchCancelled)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return pkgerrors.InvalidTransition(entityDispatch, id, from, model.DispatchCancelled)
			}
			return classifyErr(err, entityDispatch, id)
		}
		dr.Status = model.DispatchCancelled
		dr.UpdatedAt = updatedAt

		// 未核验的出门证作废
		gp, err := tx.GatePass.GetByDispatchID(cctx, id)
		switch {
		case err == nil && gp.Status == model.GatePassPending:
			gp.Status = model.GatePassRejected
			gp.Remarks = appendNote(gp.Remarks, "发货取消: "+req.Reason)
			if err := tx.GatePass.UpdateStatus(cctx, gp, model.GatePassPending); err != nil {
				return classifyErr(err, entityGatePass, gp.GatePassID)
			}
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return classifyErr(err, entityGatePass, id)
		}
		dr.GatePass = gp

		// 未完成的运输任务取消，车辆释放
		job, err := tx.TransportJob.GetByDispatchID(cctx, id)
		switch {
		case err == nil && job.Status.CanTransitionTo(model.TransportCancelled):
			prev := job.Status
			job.Status = model.TransportCancelled
			job.Remarks = appendNote(job.Remarks, "发货取消: "+req.Reason)
			if err := tx.TransportJob.UpdateStatus(cctx, job, prev); err != nil {
				return classifyErr(err, entityTransportJob, job.TransportJobID)
			}
			if _, err := markVehicle(cctx, tx.Vehicle, s.logger, job.VehicleNo, model.VehicleAvailable); err != nil {
				return classifyErr(err, entityVehicle, job.VehicleNo)
			}
			pending = append(pending, driverAvailableNotification(dr, job))
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return classifyErr(err, entityTransportJob, id)
		}
		dr.TransportJob = job

		pending = append(pending, dispatchCancelledNotification(dr, req.Reason))
		result = dr
		return nil
	})
	if err != nil {
		return nil, s.fail("取消发货申请失败", id, err)
	}

	s.metrics.ObserveDispatch(string(from), string(model.DispatchCancelled))
	publishAll(s.notifications, pending)
	s.logger.Info("发货申请已取消", zap.String("dispatch_request_id", id), zap.String("from", string(from)))
	return toDispatchResponse(result), nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *dispatchService) Get(ctx context.Context, id string) (*dto.DispatchResponse, error) {
	dr, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.DispatchRequest, error) {
		return s.repo.Dispatch.GetByID(ctx, id)
	})
	if err != nil {
		return nil, s.fail("查询发货申请失败", id, classifyErr(err, entityDispatch, id))
	}
	return toDispatchResponse(dr), nil
}

func (s *dispatchService) List(ctx context.Context, req *dto.DispatchListRequest) (*dto.ListResponse[dto.DispatchResponse], error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityDispatch, "", err.Error())
	}
	filter := repository.DispatchFilter{
		SalesOrderID: req.SalesOrderID,
		Page:         repository.Page{Offset: req.GetOffset(), Limit: req.GetPageSize()},
	}
	if req.Status != "" {
		st, err := model.ParseDispatchStatus(req.Status)
		if err != nil {
			return nil, pkgerrors.Validation(entityDispatch, "", err.Error())
		}
		filter.Status = st
	}
	if req.DeliveryType != "" {
		dt, err := model.ParseDeliveryType(req.DeliveryType)
		if err != nil {
			return nil, pkgerrors.Validation(entityDispatch, "", err.Error())
		}
		filter.DeliveryType = dt
	}

	type page struct {
		items []model.DispatchRequest
		total int64
	}
	res, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (page, error) {
		items, total, err := s.repo.Dispatch.List(ctx, filter)
		return page{items: items, total: total}, err
	})
	if err != nil {
		return nil, s.fail("查询发货申请列表失败", "", classifyErr(err, entityDispatch, ""))
	}

	out := make([]dto.DispatchResponse, 0, len(res.items))
	for i := range res.items {
		out = append(out, *toDispatchResponse(&res.items[i]))
	}
	return dto.NewListResponse(out, res.total, req.PaginationRequest), nil
}

func (s *dispatchService) GetGatePass(ctx context.Context, id string) (*dto.GatePassResponse, error) {
	gp, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.GatePass, error) {
		return s.repo.GatePass.GetByID(ctx, id)
	})
	if err != nil {
		return nil, s.fail("查询出门证失败", id, classifyErr(err, entityGatePass, id))
	}
	return toGatePassResponse(gp), nil
}

func (s *dispatchService) GetTransportJob(ctx context.Context, id string) (*dto.TransportJobResponse, error) {
	job, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.TransportJob, error) {
		return s.repo.TransportJob.GetByID(ctx, id)
	})
	if err != nil {
		return nil, s.fail("查询运输任务失败", id, classifyErr(err, entityTransportJob, id))
	}
	return toTransportJobResponse(job), nil
}

// fail 依赖故障记 Error，业务拒绝记 Warn
func (s *dispatchService) fail(msg, id string, err error) error {
	err = classifyErr(err, entityDispatch, id)
	if isDependencyErr(err) {
		s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	} else {
		s.logger.Warn(msg, zap.String("id", id), zap.Error(err))
	}
	return err
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

// ── 通知构造 ──

func dispatchReadyNotification(dr *model.DispatchRequest, gp *model.GatePass) Notification {
	return Notification{
		Type:    NotifyDispatchReady,
		Title:   "自提货物待放行",
		Message: fmt.Sprintf("订单 %s（%s）已备货，车辆 %s 待出门核验", dr.OrderNumber, dr.PartyName, gp.VehicleNo),
		Data: map[string]any{
			"dispatch_request_id": dr.DispatchRequestID,
			"gate_pass_id":        gp.GatePassID,
			"order_number":        dr.OrderNumber,
			"party_name":          dr.PartyName,
			"vehicle_number":      gp.VehicleNo,
		},
		Department: notify.DeptWatchman,
		Priority:   notify.PriorityNormal,
	}
}

func driverAssignedNotification(dr *model.DispatchRequest, job *model.TransportJob) Notification {
	return Notification{
		Type:    NotifyDriverAssigned,
		Title:   "运输任务已派车",
		Message: fmt.Sprintf("订单 %s 由司机 %s 驾驶 %s 送往 %s", dr.OrderNumber, job.DriverName, job.VehicleNo, dr.PartyName),
		Data: map[string]any{
			"dispatch_request_id": dr.DispatchRequestID,
			"transport_job_id":    job.TransportJobID,
			"driver_name":         job.DriverName,
			"vehicle_number":      job.VehicleNo,
			"order_number":        dr.OrderNumber,
			"customer_name":       dr.PartyName,
		},
		Department: notify.DeptTransport,
		Priority:   notify.PriorityNormal,
	}
}

func gatePassDecisionNotifications(dr *model.DispatchRequest, gp *model.GatePass) []Notification {
	typ, title, prio := NotifyGatePassVerified, "出门证已核验放行", notify.PriorityNormal
	if gp.Status == model.GatePassRejected {
		typ, title, prio = NotifyGatePassRejected, "出门证被拒绝", notify.PriorityHigh
	}
	data := map[string]any{
		"dispatch_request_id": dr.DispatchRequestID,
		"gate_pass_id":        gp.GatePassID,
		"order_number":        dr.OrderNumber,
		"party_name":          dr.PartyName,
		"vehicle_number":      gp.VehicleNo,
		"status":              string(gp.Status),
	}
	msg := fmt.Sprintf("订单 %s 车辆 %s：%s", dr.OrderNumber, gp.VehicleNo, title)
	return []Notification{
		{Type: typ, Title: title, Message: msg, Data: data, Department: notify.DeptWatchman, Priority: prio},
		{Type: typ, Title: title, Message: msg, Data: data, Department: notify.DeptSales, Priority: prio},
	}
}

func deliveryStatusNotification(dr *model.DispatchRequest, job *model.TransportJob) Notification {
	prio := notify.PriorityNormal
	if job.Status == model.TransportDelivered || job.Status == model.TransportFailed {
		prio = notify.PriorityHigh
	}
	return Notification{
		Type:    NotifyDeliveryStatusChange,
		Title:   "配送状态更新",
		Message: fmt.Sprintf("订单 %s 配送状态：%s", dr.OrderNumber, job.Status),
		Data: map[string]any{
			"dispatch_request_id": dr.DispatchRequestID,
			"transport_job_id":    job.TransportJobID,
			"order_number":        dr.OrderNumber,
			"customer_name":       dr.PartyName,
			"status":              string(job.Status),
		},
		Department: notify.DeptSales,
		Priority:   prio,
	}
}

func driverAvailableNotification(dr *model.DispatchRequest, job *model.TransportJob) Notification {
	return Notification{
		Type:    NotifyDriverAvailable,
		Title:   "司机已空闲",
		Message: fmt.Sprintf("司机 %s（%s）已完成订单 %s", job.DriverName, job.VehicleNo, dr.OrderNumber),
		Data: map[string]any{
			"transport_job_id": job.TransportJobID,
			"driver_name":      job.DriverName,
			"vehicle_number":   job.VehicleNo,
			"order_number":     dr.OrderNumber,
		},
		Department: notify.DeptTransport,
		Priority:   notify.PriorityNormal,
	}
}

func dispatchCancelledNotification(dr *model.DispatchRequest, reason string) Notification {
	return Notification{
		Type:    NotifyDispatchCancelled,
		Title:   "发货申请已取消",
		Message: fmt.Sprintf("订单 %s（%s）的发货申请已取消", dr.OrderNumber, dr.PartyName),
		Data: map[string]any{
			"dispatch_request_id": dr.DispatchRequestID,
			"order_number":        dr.OrderNumber,
			"reason":              reason,
		},
		Department: notify.DeptSales,
		Priority:   notify.PriorityNormal,
	}
}

// ── 响应转换 ──

func toDispatchResponse(dr *model.DispatchRequest) *dto.DispatchResponse {
	resp := &dto.DispatchResponse{
		ID:                   dr.DispatchRequestID,
		SalesOrderID:         dr.SalesOrderID,
		OrderNumber:          dr.OrderNumber,
		PartyName:            dr.PartyName,
		PartyContact:         dr.PartyContact,
		PartyAddress:         dr.PartyAddress,
		PartyEmail:           dr.PartyEmail,
		DeliveryType:         string(dr.DeliveryType),
		OriginalDeliveryType: string(dr.OriginalDeliveryType),
		Quantity:             dr.Quantity,
		Status:               string(dr.Status),
		DispatchNotes:        dr.DispatchNotes,
		CreatedAt:            formatTime(dr.CreatedAt),
		UpdatedAt:            formatTime(dr.UpdatedAt),
	}
	if dr.GatePass != nil {
		resp.GatePass = toGatePassResponse(dr.GatePass)
	}
	if dr.TransportJob != nil {
		resp.TransportJob = toTransportJobResponse(dr.TransportJob)
	}
	return resp
}

func toGatePassResponse(gp *model.GatePass) *dto.GatePassResponse {
	return &dto.GatePassResponse{
		ID:                gp.GatePassID,
		DispatchRequestID: gp.DispatchRequestID,
		PartyName:         gp.PartyName,
		VehicleNo:         gp.VehicleNo,
		Status:            string(gp.Status),
		VerifiedAt:        formatTimePtr(gp.VerifiedAt),
		Remarks:           gp.Remarks,
		CreatedAt:         formatTime(gp.CreatedAt),
		UpdatedAt:         formatTime(gp.UpdatedAt),
	}
}

func toTransportJobResponse(job *model.TransportJob) *dto.TransportJobResponse {
	return &dto.TransportJobResponse{
		ID:                job.TransportJobID,
		DispatchRequestID: job.DispatchRequestID,
		TransporterName:   job.TransporterName,
		DriverName:        job.DriverName,
		VehicleNo:         job.VehicleNo,
		Status:            string(job.Status),
		DispatchedAt:      formatTimePtr(job.DispatchedAt),
		DeliveredAt:       formatTimePtr(job.DeliveredAt),
		Remarks:           job.Remarks,
		CreatedAt:         formatTime(job.CreatedAt),
		UpdatedAt:         formatTime(job.UpdatedAt),
	}
}
