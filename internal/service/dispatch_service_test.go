package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

func createDispatch(t *testing.T, env *testEnv, deliveryType string) *dto.DispatchResponse {
	t.Helper()
	resp, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{
		OrderNumber:  "SO-1001",
		PartyName:    "Sharma Traders",
		PartyContact: "9800000001",
		PartyAddress: "Plot 7, MIDC Bhosari",
		DeliveryType: deliveryType,
	})
	if err != nil {
		t.Fatalf("创建发货申请失败: %v", err)
	}
	return resp
}

// ── Create 测试 ──

func TestDispatchService_Create_Defaults(t *testing.T) {
	env := setupTestEnv(t)

	resp := createDispatch(t, env, "Self")

	if resp.Status != string(model.DispatchPending) {
		t.Errorf("期望 status=pending，实际 %s", resp.Status)
	}
	if resp.Quantity != 1 {
		t.Errorf("期望默认 quantity=1，实际 %d", resp.Quantity)
	}
	if resp.DeliveryType != "self" || resp.OriginalDeliveryType != "self" {
		t.Errorf("发货方式应规范为小写 self，实际 %s / %s", resp.DeliveryType, resp.OriginalDeliveryType)
	}
}

func TestDispatchService_Create_InvalidQuantity(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{
		PartyName:    "Sharma Traders",
		DeliveryType: "self",
		Quantity:     intPtr(0),
	})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
}

func TestDispatchService_Create_UnknownDeliveryType(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{
		PartyName:    "Sharma Traders",
		DeliveryType: "courier",
	})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
}

func TestDispatchService_Create_FromSalesOrder(t *testing.T) {
	env := setupTestEnv(t)
	soID := uuid.NewString()
	env.store.orders[soID] = &model.SalesOrder{
		SalesOrderID:    soID,
		OrderNumber:     "SO-2002",
		CustomerName:    "Patil Hardware",
		CustomerContact: "9800000002",
		CustomerAddress: "Shop 3, Market Yard",
		DeliveryType:    model.DeliveryTransport,
	}

	resp, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{SalesOrderID: soID})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.OrderNumber != "SO-2002" || resp.PartyName != "Patil Hardware" {
		t.Errorf("应由销售订单补齐客户信息，实际 %+v", resp)
	}
	if resp.DeliveryType != "transport" {
		t.Errorf("期望发货方式取自销售订单 transport，实际 %s", resp.DeliveryType)
	}
}

func TestDispatchService_Create_SalesOrderNotFound(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{SalesOrderID: uuid.NewString()})
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("期望 ErrNotFound，实际: %v", err)
	}
}

// ── Process 测试 ──

func TestDispatchService_Process_SelfPickup(t *testing.T) {
	env := setupTestEnv(t)
	dr := createDispatch(t, env, "self")

	resp, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
	if err != nil {
		t.Fatalf("Process 应成功: %v", err)
	}
	if resp.Status != string(model.DispatchReadyForPickup) {
		t.Errorf("期望 ready_for_pickup，实际 %s", resp.Status)
	}
	if resp.GatePass == nil || resp.GatePass.Status != "pending" {
		t.Fatalf("应生成 pending 出门证，实际 %+v", resp.GatePass)
	}
	if resp.GatePass.VehicleNo != "SELF-SO-1001" {
		t.Errorf("期望占位车牌 SELF-SO-1001，实际 %s", resp.GatePass.VehicleNo)
	}

	gps, jobs := env.store.countChildren(dr.ID)
	if gps != 1 || jobs != 0 {
		t.Errorf("期望 1 张出门证 0 个运输任务，实际 %d / %d", gps, jobs)
	}

	ready := env.eventsOf(NotifyDispatchReady)
	if len(ready) != 1 || ready[0].Department != notify.DeptWatchman {
		t.Errorf("期望向门卫发布 1 条 dispatch_ready，实际 %+v", ready)
	}
}

func TestDispatchService_Process_SelfPickupLongOrderNumber(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	process := func(orderNumber string) string {
		t.Helper()
		dr, err := env.svc.Dispatch.Create(ctx, &dto.CreateDispatchRequest{
			OrderNumber:  orderNumber,
			PartyName:    "Sharma Traders",
			PartyContact: "9800000001",
			PartyAddress: "Plot 7, MIDC Bhosari",
			DeliveryType: "self",
		})
		if err != nil {
			t.Fatalf("创建发货申请失败: %v", err)
		}
		resp, err := env.svc.Dispatch.Process(ctx, dr.ID, &dto.ProcessDispatchRequest{})
		if err != nil {
			t.Fatalf("长订单号自提 Process 应成功: %v", err)
		}
		if resp.GatePass == nil {
			t.Fatal("应生成出门证")
		}
		return resp.GatePass.VehicleNo
	}

	a := process(strings.Repeat("A", 30) + "-0000000000000000042")
	b := process(strings.Repeat("A", 30) + "-0000000000000000043")

	for _, no := range []string{a, b} {
		if len(no) > model.VehicleNoMaxLen {
			t.Errorf("占位车牌超过 %d 字符: %q (%d)", model.VehicleNoMaxLen, no, len(no))
		}
		if !strings.HasPrefix(no, "SELF-") {
			t.Errorf("占位车牌应以 SELF- 开头，实际 %q", no)
		}
	}
	if a == b {
		t.Errorf("不同订单号的占位车牌应不同，实际均为 %q", a)
	}

	// 长度恰好可容纳时不截断
	if got := process("SO-2025-00000000000000042"); got != "SELF-SO-2025-00000000000000042" {
		t.Errorf("期望 SELF-SO-2025-00000000000000042，实际 %q", got)
	}
}

func TestDispatchService_Process_Transport(t *testing.T) {
	env := setupTestEnv(t)
	env.store.addVehicle(&model.Vehicle{VehicleNumber: "MH12AB1234", DriverName: "Ramesh", Status: model.VehicleAvailable})
	dr := createDispatch(t, env, "transport")

	resp, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{VehicleNo: "mh12ab1234"})
	if err != nil {
		t.Fatalf("Process 应成功: %v", err)
	}
	if resp.Status != string(model.DispatchAssignedTransport) {
		t.Errorf("期望 assigned_transport，实际 %s", resp.Status)
	}
	if resp.TransportJob == nil {
		t.Fatal("应生成运输任务")
	}
	if resp.TransportJob.DriverName != "Ramesh" {
		t.Errorf("未指定司机时应取登记司机 Ramesh，实际 %s", resp.TransportJob.DriverName)
	}
	if got := env.store.vehicleStatus("MH12AB1234"); got != model.VehicleAssigned {
		t.Errorf("车辆应置为 assigned，实际 %s", got)
	}

	gps, jobs := env.store.countChildren(dr.ID)
	if gps != 0 || jobs != 1 {
		t.Errorf("期望 0 张出门证 1 个运输任务，实际 %d / %d", gps, jobs)
	}
	if n := len(env.eventsOf(NotifyDriverAssigned)); n != 1 {
		t.Errorf("期望 1 条 driver_assigned，实际 %d", n)
	}
}

func TestDispatchService_Process_TransportRequiresVehicle(t *testing.T) {
	env := setupTestEnv(t)
	dr := createDispatch(t, env, "transport")

	_, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
	got, _ := env.svc.Dispatch.Get(context.Background(), dr.ID)
	if got.Status != string(model.DispatchPending) {
		t.Errorf("校验失败后状态应保持 pending，实际 %s", got.Status)
	}
}

func TestDispatchService_Process_Twice(t *testing.T) {
	env := setupTestEnv(t)
	dr := createDispatch(t, env, "self")

	if _, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{}); err != nil {
		t.Fatalf("首次 Process 应成功: %v", err)
	}
	_, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
	if !errors.Is(err, pkgerrors.ErrInvalidStateTransition) {
		t.Errorf("期望 ErrInvalidStateTransition，实际: %v", err)
	}

	gps, _ := env.store.countChildren(dr.ID)
	if gps != 1 {
		t.Errorf("重复处理不应生成第二张出门证，实际 %d", gps)
	}
	if n := len(env.eventsOf(NotifyDispatchReady)); n != 1 {
		t.Errorf("期望只发布 1 条 dispatch_ready，实际 %d", n)
	}
}

func TestDispatchService_Process_Concurrent(t *testing.T) {
	env := setupTestEnv(t)
	dr := createDispatch(t, env, "self")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, pkgerrors.ErrInvalidStateTransition):
				rejected++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != workers-1 {
		t.Errorf("期望 1 次成功 %d 次拒绝，实际 %d / %d", workers-1, succeeded, rejected)
	}
	if gps, _ := env.store.countChildren(dr.ID); gps != 1 {
		t.Errorf("并发处理后应只有 1 张出门证，实际 %d", gps)
	}
}

func TestDispatchService_Process_MissingContactRejected(t *testing.T) {
	cfg := newTestConfig()
	cfg.Dispatch.FillMissingContact = false
	env := setupTestEnvWithConfig(t, cfg)

	dr, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{
		PartyName:    "Walk-in",
		DeliveryType: "self",
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	_, err = env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
	if gps, _ := env.store.countChildren(dr.ID); gps != 0 {
		t.Errorf("拒绝后不应生成出门证，实际 %d", gps)
	}
}

func TestDispatchService_Process_FillsPlaceholders(t *testing.T) {
	env := setupTestEnv(t)

	dr, err := env.svc.Dispatch.Create(context.Background(), &dto.CreateDispatchRequest{
		PartyName:    "Walk-in",
		DeliveryType: "self",
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	resp, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
	if err != nil {
		t.Fatalf("Process 应成功: %v", err)
	}
	if resp.PartyContact != "N/A" || resp.PartyAddress != "Address not provided" {
		t.Errorf("应以占位值补齐，实际 %q / %q", resp.PartyContact, resp.PartyAddress)
	}
}

// ── OverrideDeliveryType 测试 ──

func TestDispatchService_OverrideDeliveryType(t *testing.T) {
	env := setupTestEnv(t)
	dr := createDispatch(t, env, "self")

	resp, err := env.svc.Dispatch.OverrideDeliveryType(context.Background(), dr.ID, &dto.OverrideDeliveryTypeRequest{
		DeliveryType: "TRANSPORT",
		Notes:        "客户要求送货",
	})
	if err != nil {
		t.Fatalf("OverrideDeliveryType 应成功: %v", err)
	}
	if resp.DeliveryType != "transport" {
		t.Errorf("期望 transport，实际 %s", resp.DeliveryType)
	}
	if resp.OriginalDeliveryType != "self" {
		t.Errorf("original_delivery_type 不应变化，实际 %s", resp.OriginalDeliveryType)
	}

	env.store.addVehicle(&model.Vehicle{VehicleNumber: "MH14XY0001", Status: model.VehicleAvailable})
	if _, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{VehicleNo: "MH14XY0001"}); err != nil {
		t.Fatalf("Process 应成功: %v", err)
	}
	_, err = env.svc.Dispatch.OverrideDeliveryType(context.Background(), dr.ID, &dto.OverrideDeliveryTypeRequest{DeliveryType: "self"})
	if !errors.Is(err, pkgerrors.ErrInvalidStateTransition) {
		t.Errorf("处理后不允许变更发货方式，实际: %v", err)
	}
}

// ── VerifyGatePass 测试 ──

func processSelf(t *testing.T, env *testEnv) *dto.DispatchResponse {
	t.Helper()
	dr := createDispatch(t, env, "self")
	resp, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{VehicleNo: "MH12CD5678"})
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}
	return resp
}

func TestDispatchService_VerifyGatePass_Verified(t *testing.T) {
	env := setupTestEnv(t)
	dr := processSelf(t, env)

	gp, err := env.svc.Dispatch.VerifyGatePass(context.Background(), dr.GatePass.ID, &dto.VerifyGatePassRequest{Decision: "verified"})
	if err != nil {
		t.Fatalf("VerifyGatePass 应成功: %v", err)
	}
	if gp.Status != "verified" || gp.VerifiedAt == "" {
		t.Errorf("出门证应为 verified 且有核验时间，实际 %+v", gp)
	}

	got, _ := env.svc.Dispatch.Get(context.Background(), dr.ID)
	if got.Status != string(model.DispatchDispatched) {
		t.Errorf("期望发货申请 dispatched，实际 %s", got.Status)
	}
	if n := len(env.eventsOf(NotifyGatePassVerified)); n != 2 {
		t.Errorf("期望门卫与销售各 1 条 gate_pass_verified，实际 %d", n)
	}
}

func TestDispatchService_VerifyGatePass_Rejected(t *testing.T) {
	env := setupTestEnv(t)
	dr := processSelf(t, env)

	_, err := env.svc.Dispatch.VerifyGatePass(context.Background(), dr.GatePass.ID, &dto.VerifyGatePassRequest{
		Decision: "rejected",
		Remarks:  "车牌不符",
	})
	if err != nil {
		t.Fatalf("VerifyGatePass 应成功: %v", err)
	}

	got, _ := env.svc.Dispatch.Get(context.Background(), dr.ID)
	if got.Status != string(model.DispatchFailed) {
		t.Errorf("期望发货申请 failed，实际 %s", got.Status)
	}
	rejected := env.eventsOf(NotifyGatePassRejected)
	if len(rejected) != 2 || rejected[0].Priority != notify.PriorityHigh {
		t.Errorf("期望 2 条高优先级 gate_pass_rejected，实际 %+v", rejected)
	}
}

func TestDispatchService_VerifyGatePass_Twice(t *testing.T) {
	env := setupTestEnv(t)
	dr := processSelf(t, env)

	if _, err := env.svc.Dispatch.VerifyGatePass(context.Background(), dr.GatePass.ID, &dto.VerifyGatePassRequest{Decision: "verified"}); err != nil {
		t.Fatalf("首次核验应成功: %v", err)
	}
	_, err := env.svc.Dispatch.VerifyGatePass(context.Background(), dr.GatePass.ID, &dto.VerifyGatePassRequest{Decision: "rejected"})
	if !errors.Is(err, pkgerrors.ErrInvalidStateTransition) {
		t.Errorf("期望 ErrInvalidStateTransition，实际: %v", err)
	}
}

func TestDispatchService_VerifyGatePass_InvalidDecision(t *testing.T) {
	env := setupTestEnv(t)
	dr := processSelf(t, env)

	_, err := env.svc.Dispatch.VerifyGatePass(context.Background(), dr.GatePass.ID, &dto.VerifyGatePassRequest{Decision: "pending"})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
}

// ── UpdateTransportJob 测试 ──

func processTransport(t *testing.T, env *testEnv) *dto.DispatchResponse {
	t.Helper()
	env.store.addVehicle(&model.Vehicle{VehicleNumber: "MH12AB1234", DriverName: "Ramesh", Status: model.VehicleAvailable})
	dr := createDispatch(t, env, "transport")
	resp, err := env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{VehicleNo: "MH12AB1234"})
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}
	return resp
}

func TestDispatchService_UpdateTransportJob_Lifecycle(t *testing.T) {
	env := setupTestEnv(t)
	dr := processTransport(t, env)
	jobID := dr.TransportJob.ID

	job, err := env.svc.Dispatch.UpdateTransportJob(context.Background(), jobID, &dto.UpdateTransportJobRequest{Status: "in_transit"})
	if err != nil {
		t.Fatalf("in_transit 应成功: %v", err)
	}
	if job.DispatchedAt == "" {
		t.Error("in_transit 应记录发车时间")
	}
	got, _ := env.svc.Dispatch.Get(context.Background(), dr.ID)
	if got.Status != string(model.DispatchInTransit) {
		t.Errorf("期望发货申请 in_transit，实际 %s", got.Status)
	}

	env.clock.Advance(3 * time.Hour)
	job, err = env.svc.Dispatch.UpdateTransportJob(context.Background(), jobID, &dto.UpdateTransportJobRequest{Status: "delivered"})
	if err != nil {
		t.Fatalf("delivered 应成功: %v", err)
	}
	if job.DeliveredAt == "" {
		t.Error("delivered 应记录送达时间")
	}
	got, _ = env.svc.Dispatch.Get(context.Background(), dr.ID)
	if got.Status != string(model.DispatchDelivered) {
		t.Errorf("期望发货申请 delivered，实际 %s", got.Status)
	}
	if st := env.store.vehicleStatus("MH12AB1234"); st != model.VehicleAvailable {
		t.Errorf("送达后车辆应释放为 available，实际 %s", st)
	}
	if n := len(env.eventsOf(NotifyDeliveryStatusChange)); n != 2 {
		t.Errorf("期望 2 条 delivery_status_change，实际 %d", n)
	}
	if n := len(env.eventsOf(NotifyDriverAvailable)); n != 1 {
		t.Errorf("期望 1 条 driver_available，实际 %d", n)
	}
}

func TestDispatchService_UpdateTransportJob_SkipState(t *testing.T) {
	env := setupTestEnv(t)
	dr := processTransport(t, env)

	_, err := env.svc.Dispatch.UpdateTransportJob(context.Background(), dr.TransportJob.ID, &dto.UpdateTransportJobRequest{Status: "delivered"})
	if !errors.Is(err, pkgerrors.ErrInvalidStateTransition) {
		t.Errorf("pending → delivered 应被拒绝，实际: %v", err)
	}
}

func TestDispatchService_UpdateTransportJob_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.Dispatch.UpdateTransportJob(context.Background(), "missing", &dto.UpdateTransportJobRequest{Status: "in_transit"})
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("期望 ErrNotFound，实际: %v", err)
	}
}

// ── Cancel 测试 ──

func TestDispatchService_Cancel_ReleasesVehicle(t *testing.T) {
	env := setupTestEnv(t)
	dr := processTransport(t, env)

	resp, err := env.svc.Dispatch.Cancel(context.Background(), dr.ID, &dto.CancelDispatchRequest{Reason: "客户撤单"})
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if resp.Status != string(model.DispatchCancelled) {
		t.Errorf("期望 cancelled，实际 %s", resp.Status)
	}
	if resp.TransportJob == nil || resp.TransportJob.Status != "cancelled" {
		t.Errorf("运输任务应同步取消，实际 %+v", resp.TransportJob)
	}
	if !strings.Contains(resp.TransportJob.Remarks, "客户撤单") {
		t.Errorf("取消原因应写入备注，实际 %q", resp.TransportJob.Remarks)
	}
	if st := env.store.vehicleStatus("MH12AB1234"); st != model.VehicleAvailable {
		t.Errorf("取消后车辆应释放，实际 %s", st)
	}
	if n := len(env.eventsOf(NotifyDispatchCancelled)); n != 1 {
		t.Errorf("期望 1 条 dispatch_cancelled，实际 %d", n)
	}
}

func TestDispatchService_TransitionRefreshesUpdatedAt(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	stale := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	age := func(id string) {
		env.store.mu.Lock()
		env.store.dispatches[id].UpdatedAt = stale
		env.store.mu.Unlock()
	}

	dr := createDispatch(t, env, "self")
	age(dr.ID)
	processed, err := env.svc.Dispatch.Process(ctx, dr.ID, &dto.ProcessDispatchRequest{})
	if err != nil {
		t.Fatalf("Process 应成功: %v", err)
	}
	if processed.UpdatedAt == formatTime(stale) {
		t.Errorf("Process 响应的 updated_at 应为状态变更时间，实际仍为 %s", processed.UpdatedAt)
	}

	age(dr.ID)
	cancelled, err := env.svc.Dispatch.Cancel(ctx, dr.ID, &dto.CancelDispatchRequest{Reason: "客户撤单"})
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if cancelled.UpdatedAt == formatTime(stale) {
		t.Errorf("Cancel 响应的 updated_at 应为状态变更时间，实际仍为 %s", cancelled.UpdatedAt)
	}
}

func TestDispatchService_Cancel_Terminal(t *testing.T) {
	env := setupTestEnv(t)
	dr := processSelf(t, env)
	if _, err := env.svc.Dispatch.VerifyGatePass(context.Background(), dr.GatePass.ID, &dto.VerifyGatePassRequest{Decision: "rejected"}); err != nil {
		t.Fatalf("核验失败: %v", err)
	}

	_, err := env.svc.Dispatch.Cancel(context.Background(), dr.ID, &dto.CancelDispatchRequest{})
	if !errors.Is(err, pkgerrors.ErrInvalidStateTransition) {
		t.Errorf("终态不可取消，实际: %v", err)
	}
}

// ── 查询 / 依赖故障 ──

func TestDispatchService_List_Filter(t *testing.T) {
	env := setupTestEnv(t)
	createDispatch(t, env, "self")
	createDispatch(t, env, "transport")
	createDispatch(t, env, "self")

	resp, err := env.svc.Dispatch.List(context.Background(), &dto.DispatchListRequest{DeliveryType: "self"})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Errorf("期望 2 条自提申请，实际 total=%d items=%d", resp.Total, len(resp.Items))
	}

	_, err = env.svc.Dispatch.List(context.Background(), &dto.DispatchListRequest{Status: "shipped"})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("未知状态应返回 ErrValidation，实际: %v", err)
	}
}

func TestDispatchService_Get_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.Dispatch.Get(context.Background(), "missing")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("期望 ErrNotFound，实际: %v", err)
	}
}

func TestDispatchService_DependencyFailure(t *testing.T) {
	env := setupTestEnv(t)
	dr := createDispatch(t, env, "self")

	env.store.setFail(errors.New("connection refused"))
	_, err := env.svc.Dispatch.Get(context.Background(), dr.ID)
	if !errors.Is(err, pkgerrors.ErrDependencyUnavailable) {
		t.Errorf("期望 ErrDependencyUnavailable，实际: %v", err)
	}

	env.store.setFail(context.DeadlineExceeded)
	_, err = env.svc.Dispatch.Process(context.Background(), dr.ID, &dto.ProcessDispatchRequest{})
	if !errors.Is(err, pkgerrors.ErrDependencyTimeout) {
		t.Errorf("期望 ErrDependencyTimeout，实际: %v", err)
	}

	env.store.setFail(nil)
	got, err := env.svc.Dispatch.Get(context.Background(), dr.ID)
	if err != nil {
		t.Fatalf("恢复后 Get 应成功: %v", err)
	}
	if got.Status != string(model.DispatchPending) {
		t.Errorf("依赖故障不应改变状态，实际 %s", got.Status)
	}
}
