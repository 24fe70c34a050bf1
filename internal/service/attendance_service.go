package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

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
	entityAttendance = "attendance"
	entityEmployee   = "employee"

	absentNote = "系统自动标记缺勤"
)

// GateDirection 门禁事件方向
type GateDirection string

const (
	GateEntry GateDirection = "entry"
	GateExit  GateDirection = "exit"
)

// AttendanceService 门禁考勤业务接口
//
// 设计说明：
//   - 同一员工同一天最多一条考勤记录：员工+日期 粒度加锁，事务内 SELECT ... FOR UPDATE，唯一索引兜底
//   - 进场：首次进场生效，状态按准点线判定 PRESENT / LATE
//   - 出场：最后一次出场生效，工时 = 出场 - 进场（负数按 0 处理并告警）
//   - 工时不足半天阈值时 PRESENT → HALF_DAY；LATE 不参与降级
//   - 日期与时刻按 attendance.timezone 计算
type AttendanceService interface {
	Entry(ctx context.Context, identity model.Identity, ts time.Time) (*dto.AttendanceResponse, error)
	Exit(ctx context.Context, identity model.Identity, ts time.Time) (*dto.AttendanceResponse, error)
	// RecordGateEvent HTTP 回调与消息队列的统一入口
	RecordGateEvent(ctx context.Context, direction GateDirection, req *dto.GateEventRequest) (*dto.AttendanceResponse, error)

	MarkAbsent(ctx context.Context, req *dto.MarkAbsentRequest) (*dto.MarkAbsentResponse, error)
	List(ctx context.Context, req *dto.AttendanceListRequest) (*dto.ListResponse[dto.AttendanceResponse], error)
	MonthlySummary(ctx context.Context, req *dto.AttendanceMonthRequest) (*dto.AttendanceSummaryResponse, error)
}

// attendancePolicy 考勤判定口径
type attendancePolicy struct {
	cutoff       model.TimeOfDay
	halfDayHours float64
}

type attendanceService struct {
	repo          *repository.Repository
	cfg           config.AttendanceConfig
	loc           *time.Location
	fallback      attendancePolicy
	dep           dependencyPolicy
	locker        Locker
	notifications NotificationService
	metrics       *metrics.Metrics
	clock         clock.Clock
	logger        *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
// 配置已由 config.Validate 校验，解析失败时退回默认口径
func NewAttendanceService(
	cfg *config.Config,
	repo *repository.Repository,
	locker Locker,
	notifications NotificationService,
	m *metrics.Metrics,
	clk clock.Clock,
	logger *zap.Logger,
) AttendanceService {
	if clk == nil {
		clk = clock.System()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		logger.Warn("考勤时区无效，使用系统时区", zap.String("timezone", cfg.Attendance.Timezone), zap.Error(err))
		loc = time.Local
	}
	cutoff, err := model.ParseTimeOfDay(cfg.Attendance.OnTimeCutoff)
	if err != nil {
		cutoff = model.TimeOfDay(9*3600 + 30*60)
	}
	halfDay := cfg.Attendance.HalfDayHours
	if halfDay <= 0 {
		halfDay = 4.5
	}
	return &attendanceService{
		repo:          repo,
		cfg:           cfg.Attendance,
		loc:           loc,
		fallback:      attendancePolicy{cutoff: cutoff, halfDayHours: halfDay},
		dep:           newDependencyPolicy(cfg.Dependency),
		locker:        locker,
		notifications: notifications,
		metrics:       m,
		clock:         clk,
		logger:        logger,
	}
}

// ════════════════════════════════════════════════════════════
// RecordGateEvent — 门禁事件入口
// ════════════════════════════════════════════════════════════

func (s *attendanceService) RecordGateEvent(ctx context.Context, direction GateDirection, req *dto.GateEventRequest) (*dto.AttendanceResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityAttendance, "", err.Error())
	}
	identity := model.Identity{Phone: req.Phone, BadgeNo: req.BadgeNo, FaceID: req.FaceID}
	ts := s.clock.Now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = *req.Timestamp
	}

	switch direction {
	case GateEntry:
		return s.Entry(ctx, identity, ts)
	case GateExit:
		return s.Exit(ctx, identity, ts)
	default:
		return nil, pkgerrors.Validation(entityAttendance, "", fmt.Sprintf("未知门禁方向 %q", direction))
	}
}

// ════════════════════════════════════════════════════════════
// Entry — 进场
// ════════════════════════════════════════════════════════════

func (s *attendanceService) Entry(ctx context.Context, identity model.Identity, ts time.Time) (*dto.AttendanceResponse, error) {
	emp, err := s.resolve(ctx, identity, GateEntry)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy(ctx)
	if err != nil {
		s.metrics.ObserveAttendance(string(GateEntry), "error")
		return nil, err
	}

	date := model.DateOf(ts, s.loc)
	tod := model.NewTimeOfDay(ts.In(s.loc))

	var (
		rec     *model.AttendanceRecord
		outcome string
	)
	err = s.withRecordLock(ctx, emp.EmployeeID, date, func(cctx context.Context) error {
		return s.repo.Transaction(cctx, func(tx *repository.Repository) error {
			existing, err := tx.Attendance.GetForUpdate(cctx, emp.EmployeeID, date)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				in := tod
				rec = &model.AttendanceRecord{
					EmployeeID:     emp.EmployeeID,
					AttendanceDate: date,
					CheckInTime:    &in,
					Status:         classifyArrival(tod, policy.cutoff),
				}
				if err := tx.Attendance.Create(cctx, rec); err != nil {
					return err
				}
				outcome = "created"
			case err != nil:
				return err
			case existing.CheckInTime != nil:
				// 同日再次进场：保留首次进场时间与状态
				rec = existing
				outcome = "repeat"
			default:
				// 已存在无进场时间的记录（如自动补写的 ABSENT）
				in := tod
				existing.CheckInTime = &in
				existing.Status = classifyArrival(tod, policy.cutoff)
				if err := tx.Attendance.Update(cctx, existing); err != nil {
					return err
				}
				rec = existing
				outcome = "checked_in"
			}
			return nil
		})
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 其他实例抢先写入，按首次进场生效处理
		rec, err = readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.AttendanceRecord, error) {
			return s.repo.Attendance.GetForUpdate(ctx, emp.EmployeeID, date)
		})
		outcome = "repeat"
	}
	if err != nil {
		err = classifyErr(err, entityAttendance, emp.EmployeeID)
		s.metrics.ObserveAttendance(string(GateEntry), "error")
		s.logger.Error("记录进场失败", zap.String("employee_id", emp.EmployeeID), zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveAttendance(string(GateEntry), outcome)
	if outcome != "repeat" {
		publishAll(s.notifications, s.entryNotifications(emp, rec))
	}
	s.logger.Info("进场已记录",
		zap.String("employee_id", emp.EmployeeID),
		zap.String("date", date.Format(model.DateLayout)),
		zap.String("time", tod.String()),
		zap.String("status", string(rec.Status)),
		zap.String("outcome", outcome),
	)
	rec.Employee = emp
	return toAttendanceResponse(rec), nil
}

// classifyArrival 准点线（含）之前为 PRESENT，之后为 LATE
func classifyArrival(checkIn, cutoff model.TimeOfDay) model.AttendanceStatus {
	if checkIn <= cutoff {
		return model.AttendancePresent
	}
	return model.AttendanceLate
}

func (s *attendanceService) entryNotifications(emp *model.Employee, rec *model.AttendanceRecord) []Notification {
	data := map[string]any{
		"employee_id":   emp.EmployeeID,
		"employee_code": emp.EmployeeCode,
		"employee_name": emp.Name,
		"date":          rec.AttendanceDate.Format(model.DateLayout),
		"check_in_time": rec.CheckInTime.String(),
	}
	if rec.Status == model.AttendanceLate {
		return []Notification{{
			Type:       NotifyEmployeeLate,
			Title:      "员工迟到",
			Message:    fmt.Sprintf("%s（%s）%s 进场，已迟到", emp.Name, emp.EmployeeCode, rec.CheckInTime.String()),
			Data:       data,
			Department: notify.DeptHR,
			Priority:   notify.PriorityNormal,
		}}
	}
	if !s.cfg.NotifyOnEntry {
		return nil
	}
	return []Notification{{
		Type:       NotifyEmployeeCheckedIn,
		Title:      "员工进场",
		Message:    fmt.Sprintf("%s（%s）%s 进场", emp.Name, emp.EmployeeCode, rec.CheckInTime.String()),
		Data:       data,
		Department: notify.DeptHR,
		Priority:   notify.PriorityLow,
	}}
}

// ════════════════════════════════════════════════════════════
// Exit — 出场
// ════════════════════════════════════════════════════════════

func (s *attendanceService) Exit(ctx context.Context, identity model.Identity, ts time.Time) (*dto.AttendanceResponse, error) {
	emp, err := s.resolve(ctx, identity, GateExit)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy(ctx)
	if err != nil {
		s.metrics.ObserveAttendance(string(GateExit), "error")
		return nil, err
	}

	date := model.DateOf(ts, s.loc)
	tod := model.NewTimeOfDay(ts.In(s.loc))

	var (
		rec        *model.AttendanceRecord
		downgraded bool
	)
	err = s.withRecordLock(ctx, emp.EmployeeID, date, func(cctx context.Context) error {
		return s.repo.Transaction(cctx, func(tx *repository.Repository) error {
			existing, err := tx.Attendance.GetForUpdate(cctx, emp.EmployeeID, date)
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && existing.CheckInTime == nil) {
				return pkgerrors.New(pkgerrors.ErrNoOpenCheckIn, entityAttendance, emp.EmployeeID, date.Format(model.DateLayout))
			}
			if err != nil {
				return err
			}

			out := tod
			existing.CheckOutTime = &out
			hours := workedHours(*existing.CheckInTime, out)
			if hours < 0 {
				s.logger.Warn("出场早于进场，工时按 0 计",
					zap.String("attendance_id", existing.AttendanceID),
					zap.String("check_in", existing.CheckInTime.String()),
					zap.String("check_out", out.String()),
				)
				hours = 0
			}
			// 按未取整的工时判定，入库值保留两位小数
			stored := roundHours(hours)
			existing.HoursWorked = &stored

			prev := existing.Status
			existing.Status = classifyDeparture(prev, hours, policy.halfDayHours)
			downgraded = prev == model.AttendancePresent && existing.Status == model.AttendanceHalfDay

			if err := tx.Attendance.Update(cctx, existing); err != nil {
				return err
			}
			rec = existing
			return nil
		})
	})
	if err != nil {
		err = classifyErr(err, entityAttendance, emp.EmployeeID)
		if errors.Is(err, pkgerrors.ErrNoOpenCheckIn) {
			s.metrics.ObserveAttendance(string(GateExit), "no_open_check_in")
			s.logger.Warn("出场无对应进场记录", zap.String("employee_id", emp.EmployeeID), zap.Time("timestamp", ts))
		} else {
			s.metrics.ObserveAttendance(string(GateExit), "error")
			s.logger.Error("记录出场失败", zap.String("employee_id", emp.EmployeeID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.ObserveAttendance(string(GateExit), "updated")
	if downgraded {
		publishAll(s.notifications, []Notification{{
			Type:    NotifyAttendanceHalfDay,
			Title:   "员工半天出勤",
			Message: fmt.Sprintf("%s（%s）当日工时 %.2f 小时，记为半天", emp.Name, emp.EmployeeCode, *rec.HoursWorked),
			Data: map[string]any{
				"employee_id":  emp.EmployeeID,
				"date":         rec.AttendanceDate.Format(model.DateLayout),
				"hours_worked": *rec.HoursWorked,
			},
			Department: notify.DeptHR,
			Priority:   notify.PriorityNormal,
		}})
	}
	s.logger.Info("出场已记录",
		zap.String("employee_id", emp.EmployeeID),
		zap.String("date", date.Format(model.DateLayout)),
		zap.String("time", tod.String()),
		zap.Float64("hours", *rec.HoursWorked),
		zap.String("status", string(rec.Status)),
	)
	rec.Employee = emp
	return toAttendanceResponse(rec), nil
}

// workedHours 出场减进场的小时数（可能为负）
func workedHours(in, out model.TimeOfDay) float64 {
	return float64(out-in) / 3600
}

// roundHours 保留两位小数
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// classifyDeparture 按工时重新判定：PRESENT / HALF_DAY 之间随最后一次出场变化，
// LATE 与 ABSENT 保持不变
func classifyDeparture(current model.AttendanceStatus, hours, halfDayHours float64) model.AttendanceStatus {
	switch current {
	case model.AttendancePresent, model.AttendanceHalfDay:
		if hours < halfDayHours {
			return model.AttendanceHalfDay
		}
		return model.AttendancePresent
	default:
		return current
	}
}

// ════════════════════════════════════════════════════════════
// 身份解析 / 口径 / 加锁
// ════════════════════════════════════════════════════════════

// resolve 门禁凭据 → 在职员工；未匹配或已离职返回 ErrIdentityNotFound
func (s *attendanceService) resolve(ctx context.Context, identity model.Identity, direction GateDirection) (*model.Employee, error) {
	if _, _, ok := identity.Key(); !ok {
		return nil, pkgerrors.Validation(entityAttendance, "", "缺少身份凭据（phone / badge_no / face_id）")
	}
	emp, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.Employee, error) {
		return s.repo.Employee.GetByIdentity(ctx, identity)
	})
	if err == nil && !emp.IsActive {
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.ObserveAttendance(string(direction), "identity_not_found")
			s.logger.Warn("门禁身份未匹配在职员工", zap.String("identity", identity.String()), zap.String("direction", string(direction)))
			return nil, pkgerrors.New(pkgerrors.ErrIdentityNotFound, entityEmployee, identity.String(), "")
		}
		err = classifyErr(err, entityEmployee, identity.String())
		s.metrics.ObserveAttendance(string(direction), "error")
		s.logger.Error("身份解析失败", zap.String("identity", identity.String()), zap.Error(err))
		return nil, err
	}
	return emp, nil
}

// policy 读取运行时口径，system_config 未初始化时使用配置文件
func (s *attendanceService) policy(ctx context.Context) (attendancePolicy, error) {
	cfg, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (*model.SystemConfig, error) {
		return s.repo.SystemConfig.Get(ctx)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		err = classifyErr(err, entitySystemConfig, "")
		s.logger.Error("读取考勤口径失败", zap.Error(err))
		return attendancePolicy{}, err
	}
	p := attendancePolicy{cutoff: cfg.OnTimeCutoff, halfDayHours: cfg.HalfDayHours}
	if p.halfDayHours <= 0 {
		p.halfDayHours = s.fallback.halfDayHours
	}
	return p, nil
}

// withRecordLock 员工+日期 粒度互斥后执行 fn，加锁与事务共用同一超时
func (s *attendanceService) withRecordLock(ctx context.Context, employeeID string, date time.Time, fn func(ctx context.Context) error) error {
	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()

	unlock, err := s.locker.Lock(cctx, "attendance:"+employeeID+":"+date.Format(model.DateLayout))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.ErrDependencyTimeout, entityAttendance, employeeID, err)
		}
		return pkgerrors.Wrap(pkgerrors.ErrDependencyUnavailable, entityAttendance, employeeID, err)
	}
	defer unlock()
	return fn(cctx)
}

// ════════════════════════════════════════════════════════════
// MarkAbsent — 补写缺勤
// ════════════════════════════════════════════════════════════

func (s *attendanceService) MarkAbsent(ctx context.Context, req *dto.MarkAbsentRequest) (*dto.MarkAbsentResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityAttendance, "", err.Error())
	}
	date := model.DateOf(s.clock.Now(), s.loc)
	if req.Date != "" {
		d, err := time.Parse(model.DateLayout, req.Date)
		if err != nil {
			return nil, pkgerrors.Validation(entityAttendance, "", err.Error())
		}
		date = d
	}

	cctx, cancel := s.dep.withTimeout(ctx)
	defer cancel()
	n, err := s.repo.Attendance.CreateAbsentForMissing(cctx, date, absentNote)
	if err != nil {
		err = classifyErr(err, entityAttendance, "")
		s.logger.Error("补写缺勤失败", zap.String("date", date.Format(model.DateLayout)), zap.Error(err))
		return nil, err
	}

	day := date.Format(model.DateLayout)
	if n > 0 {
		publishAll(s.notifications, []Notification{{
			Type:       NotifyAbsentMarked,
			Title:      "缺勤已登记",
			Message:    fmt.Sprintf("%s 共 %d 名员工无进场记录，已标记缺勤", day, n),
			Data:       map[string]any{"date": day, "count": n},
			Department: notify.DeptHR,
			Priority:   notify.PriorityLow,
		}})
	}
	s.logger.Info("缺勤补写完成", zap.String("date", day), zap.Int64("created", n))
	return &dto.MarkAbsentResponse{Date: day, Created: n}, nil
}

// ════════════════════════════════════════════════════════════
// 查询 / 汇总
// ════════════════════════════════════════════════════════════

func (s *attendanceService) List(ctx context.Context, req *dto.AttendanceListRequest) (*dto.ListResponse[dto.AttendanceResponse], error) {
	if err := dto.Validate(req); err != nil {
		return nil, pkgerrors.Validation(entityAttendance, "", err.Error())
	}
	filter := repository.AttendanceFilter{
		EmployeeID: req.EmployeeID,
		Page:       repository.Page{Offset: req.GetOffset(), Limit: req.GetPageSize()},
	}
	if req.From != "" {
		filter.From, _ = time.Parse(model.DateLayout, req.From)
	}
	if req.To != "" {
		filter.To, _ = time.Parse(model.DateLayout, req.To)
	}
	if req.Status != "" {
		st, err := model.ParseAttendanceStatus(req.Status)
		if err != nil {
			return nil, pkgerrors.Validation(entityAttendance, "", err.Error())
		}
		filter.Status = st
	}

	type page struct {
		items []model.AttendanceRecord
		total int64
	}
	res, err := readWithRetry(ctx, s.dep, func(ctx context.Context) (page, error) {
		items, total, err := s.repo.Attendance.List(ctx, filter)
		return page{items: items, total: total}, err
	})
	if err != nil {
		err = classifyErr(err, entityAttendance, "")
		s.logger.Error("查询考勤列表失败", zap.Error(err))
		return nil, err
	}

	out := make([]dto.AttendanceResponse, 0, len(res.items))
	for i := range res.items {
		out = append(out, *toAttendanceResponse(&res.items[i]))
	}
	return dto.NewListResponse(out, res.total, req.PaginationRequest), nil
}

func (s *attendanceService) MonthlySummary(ctx context.Context, req *dto.AttendanceMonthRequest) (*dto.AttendanceSummaryResponse, error) {
	from, to, err := monthRange(req)
	if err != nil {
		return nil, err
	}
	records, err := readWithRetry(ctx, s.dep, func(ctx context.Context) ([]model.AttendanceRecord, error) {
		return s.repo.Attendance.ListRange(ctx, from, to)
	})
	if err != nil {
		err = classifyErr(err, entityAttendance, "")
		s.logger.Error("查询月度考勤失败", zap.String("month", req.Month), zap.Error(err))
		return nil, err
	}
	return &dto.AttendanceSummaryResponse{Month: req.Month, Items: summarizeAttendance(records)}, nil
}

// monthRange 解析 YYYY-MM，返回该月首日与末日
func monthRange(req *dto.AttendanceMonthRequest) (time.Time, time.Time, error) {
	if err := dto.Validate(req); err != nil {
		return time.Time{}, time.Time{}, pkgerrors.Validation(entityAttendance, "", err.Error())
	}
	first, err := time.Parse("2006-01", req.Month)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.Validation(entityAttendance, "", err.Error())
	}
	return first, first.AddDate(0, 1, -1), nil
}

// summarizeAttendance 按员工聚合，按工号排序
func summarizeAttendance(records []model.AttendanceRecord) []dto.AttendanceSummaryItem {
	byEmployee := make(map[string]*dto.AttendanceSummaryItem)
	for i := range records {
		rec := &records[i]
		item, ok := byEmployee[rec.EmployeeID]
		if !ok {
			item = &dto.AttendanceSummaryItem{EmployeeID: rec.EmployeeID}
			if rec.Employee != nil {
				item.EmployeeCode = rec.Employee.EmployeeCode
				item.EmployeeName = rec.Employee.Name
			}
			byEmployee[rec.EmployeeID] = item
		}
		switch rec.Status {
		case model.AttendancePresent:
			item.Present++
		case model.AttendanceLate:
			item.Late++
		case model.AttendanceHalfDay:
			item.HalfDay++
		case model.AttendanceAbsent:
			item.Absent++
		}
		if rec.HoursWorked != nil {
			item.TotalHours += *rec.HoursWorked
		}
	}

	out := make([]dto.AttendanceSummaryItem, 0, len(byEmployee))
	for _, item := range byEmployee {
		item.TotalHours = math.Round(item.TotalHours*100) / 100
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeCode != out[j].EmployeeCode {
			return out[i].EmployeeCode < out[j].EmployeeCode
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

func toAttendanceResponse(rec *model.AttendanceRecord) *dto.AttendanceResponse {
	resp := &dto.AttendanceResponse{
		ID:             rec.AttendanceID,
		EmployeeID:     rec.EmployeeID,
		AttendanceDate: rec.AttendanceDate.Format(model.DateLayout),
		Status:         string(rec.Status),
		HoursWorked:    rec.HoursWorked,
		Notes:          rec.Notes,
		UpdatedAt:      formatTime(rec.UpdatedAt),
	}
	if rec.CheckInTime != nil {
		resp.CheckInTime = rec.CheckInTime.String()
	}
	if rec.CheckOutTime != nil {
		resp.CheckOutTime = rec.CheckOutTime.String()
	}
	if rec.Employee != nil {
		resp.EmployeeCode = rec.Employee.EmployeeCode
		resp.EmployeeName = rec.Employee.Name
	}
	return resp
}
