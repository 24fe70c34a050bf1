package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	pkgerrors "github.com/sohamsontakkespotify-afk/erp--sub001/pkg/errors"
)

// mockStore 内存版数据库：所有 mock 仓储共享一把锁，
// 读取返回副本，唯一约束与状态比较并交换与 PostgreSQL 行为一致。
type mockStore struct {
	mu  sync.Mutex
	seq int

	dispatches map[string]*model.DispatchRequest
	gatePasses map[string]*model.GatePass
	jobs       map[string]*model.TransportJob
	vehicles   map[string]*model.Vehicle
	attendance map[string]*model.AttendanceRecord // key: employeeID|date
	employees  map[string]*model.Employee
	orders     map[string]*model.SalesOrder
	sysCfg     *model.SystemConfig

	// failWith 非空时所有调用直接返回该错误（模拟依赖故障）
	failWith error
	// beforeAttendanceCreate 在下一次考勤插入前执行一次（持有 mu），模拟另一实例抢先写入
	beforeAttendanceCreate func(rec *model.AttendanceRecord)
}

func newMockStore() *mockStore {
	return &mockStore{
		dispatches: make(map[string]*model.DispatchRequest),
		gatePasses: make(map[string]*model.GatePass),
		jobs:       make(map[string]*model.TransportJob),
		vehicles:   make(map[string]*model.Vehicle),
		attendance: make(map[string]*model.AttendanceRecord),
		employees:  make(map[string]*model.Employee),
		orders:     make(map[string]*model.SalesOrder),
		sysCfg: &model.SystemConfig{
			Singleton:    true,
			OnTimeCutoff: model.TimeOfDay(9*3600 + 30*60),
			HalfDayHours: 4.5,
		},
	}
}

func (s *mockStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *mockStore) repository() *repository.Repository {
	return &repository.Repository{
		Dispatch:     &mockDispatchRepo{s},
		GatePass:     &mockGatePassRepo{s},
		TransportJob: &mockTransportJobRepo{s},
		Vehicle:      &mockVehicleRepo{s},
		Attendance:   &mockAttendanceRepo{s},
		Employee:     &mockEmployeeRepo{s},
		SalesOrder:   &mockSalesOrderRepo{s},
		SystemConfig: &mockSystemConfigRepo{s},
	}
}

func (s *mockStore) setFail(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *mockStore) addEmployee(e *model.Employee) *model.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.EmployeeID == "" {
		e.EmployeeID = s.nextID("emp")
	}
	s.employees[e.EmployeeID] = e
	return e
}

func (s *mockStore) addVehicle(v *model.Vehicle) *model.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.VehicleID == "" {
		v.VehicleID = s.nextID("veh")
	}
	s.vehicles[v.VehicleID] = v
	return v
}

func (s *mockStore) vehicleStatus(number string) model.VehicleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.VehicleNumber == number {
			return v.Status
		}
	}
	return ""
}

func (s *mockStore) countChildren(dispatchID string) (gatePasses, jobs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, gp := range s.gatePasses {
		if gp.DispatchRequestID == dispatchID {
			gatePasses++
		}
	}
	for _, j := range s.jobs {
		if j.DispatchRequestID == dispatchID {
			jobs++
		}
	}
	return
}

func (s *mockStore) attendanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attendance)
}

func attendanceKey(employeeID string, date time.Time) string {
	return employeeID + "|" + date.Format(model.DateLayout)
}

// ── Mock DispatchRepository ──

type mockDispatchRepo struct{ s *mockStore }

func (m *mockDispatchRepo) Create(_ context.Context, dr *model.DispatchRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	if dr.DispatchRequestID == "" {
		dr.DispatchRequestID = m.s.nextID("dr")
	}
	now := time.Now()
	dr.CreatedAt, dr.UpdatedAt = now, now
	cp := *dr
	cp.GatePass, cp.TransportJob = nil, nil
	m.s.dispatches[dr.DispatchRequestID] = &cp
	return nil
}

func (m *mockDispatchRepo) GetByID(_ context.Context, id string) (*model.DispatchRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	dr, ok := m.s.dispatches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *dr
	m.s.preload(&cp)
	return &cp, nil
}

func (m *mockDispatchRepo) GetForUpdate(_ context.Context, id string) (*model.DispatchRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	dr, ok := m.s.dispatches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *dr
	return &cp, nil
}

func (s *mockStore) preload(dr *model.DispatchRequest) {
	for _, gp := range s.gatePasses {
		if gp.DispatchRequestID == dr.DispatchRequestID {
			cp := *gp
			dr.GatePass = &cp
		}
	}
	for _, j := range s.jobs {
		if j.DispatchRequestID == dr.DispatchRequestID {
			cp := *j
			dr.TransportJob = &cp
		}
	}
}

func (m *mockDispatchRepo) List(_ context.Context, filter repository.DispatchFilter) ([]model.DispatchRequest, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, 0, m.s.failWith
	}
	var all []model.DispatchRequest
	for _, dr := range m.s.dispatches {
		if filter.Status != "" && dr.Status != filter.Status {
			continue
		}
		if filter.DeliveryType != "" && dr.DeliveryType != filter.DeliveryType {
			continue
		}
		if filter.SalesOrderID != "" && (dr.SalesOrderID == nil || *dr.SalesOrderID != filter.SalesOrderID) {
			continue
		}
		cp := *dr
		m.s.preload(&cp)
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DispatchRequestID < all[j].DispatchRequestID })
	return paginate(all, filter.Page), int64(len(all)), nil
}

func (m *mockDispatchRepo) UpdateDetails(_ context.Context, dr *model.DispatchRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	cur, ok := m.s.dispatches[dr.DispatchRequestID]
	if !ok || cur.Status != model.DispatchPending {
		return pkgerrors.ErrOptimisticLock
	}
	cur.PartyContact = dr.PartyContact
	cur.PartyAddress = dr.PartyAddress
	cur.DeliveryType = dr.DeliveryType
	cur.DispatchNotes = dr.DispatchNotes
	cur.UpdatedAt = time.Now()
	return nil
}

func (m *mockDispatchRepo) TransitionStatus(_ context.Context, id string, from, to model.DispatchStatus) (time.Time, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return time.Time{}, m.s.failWith
	}
	cur, ok := m.s.dispatches[id]
	if !ok || cur.Status != from {
		return time.Time{}, pkgerrors.ErrOptimisticLock
	}
	cur.Status = to
	cur.UpdatedAt = time.Now()
	return cur.UpdatedAt, nil
}

// ── Mock GatePassRepository ──

type mockGatePassRepo struct{ s *mockStore }

func (m *mockGatePassRepo) Create(_ context.Context, gp *model.GatePass) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	if utf8.RuneCountInString(gp.VehicleNo) > model.VehicleNoMaxLen {
		return fmt.Errorf("value too long for type character varying(%d)", model.VehicleNoMaxLen)
	}
	for _, existing := range m.s.gatePasses {
		if existing.DispatchRequestID == gp.DispatchRequestID {
			return gorm.ErrDuplicatedKey
		}
	}
	gp.GatePassID = m.s.nextID("gp")
	cp := *gp
	m.s.gatePasses[gp.GatePassID] = &cp
	return nil
}

func (m *mockGatePassRepo) GetByID(_ context.Context, id string) (*model.GatePass, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	gp, ok := m.s.gatePasses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *gp
	return &cp, nil
}

func (m *mockGatePassRepo) GetByDispatchID(_ context.Context, dispatchID string) (*model.GatePass, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	for _, gp := range m.s.gatePasses {
		if gp.DispatchRequestID == dispatchID {
			cp := *gp
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGatePassRepo) UpdateStatus(_ context.Context, gp *model.GatePass, from model.GatePassStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	cur, ok := m.s.gatePasses[gp.GatePassID]
	if !ok || cur.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	cur.Status, cur.VerifiedAt, cur.Remarks = gp.Status, gp.VerifiedAt, gp.Remarks
	return nil
}

// ── Mock TransportJobRepository ──

type mockTransportJobRepo struct{ s *mockStore }

func (m *mockTransportJobRepo) Create(_ context.Context, job *model.TransportJob) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	for _, existing := range m.s.jobs {
		if existing.DispatchRequestID == job.DispatchRequestID {
			return gorm.ErrDuplicatedKey
		}
	}
	job.TransportJobID = m.s.nextID("job")
	cp := *job
	m.s.jobs[job.TransportJobID] = &cp
	return nil
}

func (m *mockTransportJobRepo) GetByID(_ context.Context, id string) (*model.TransportJob, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	job, ok := m.s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockTransportJobRepo) GetByDispatchID(_ context.Context, dispatchID string) (*model.TransportJob, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	for _, job := range m.s.jobs {
		if job.DispatchRequestID == dispatchID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTransportJobRepo) UpdateStatus(_ context.Context, job *model.TransportJob, from model.TransportJobStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	cur, ok := m.s.jobs[job.TransportJobID]
	if !ok || cur.Status != from {
		return pkgerrors.ErrOptimisticLock
	}
	cur.Status, cur.DispatchedAt, cur.DeliveredAt, cur.Remarks = job.Status, job.DispatchedAt, job.DeliveredAt, job.Remarks
	return nil
}

// ── Mock VehicleRepository ──

type mockVehicleRepo struct{ s *mockStore }

func (m *mockVehicleRepo) Create(_ context.Context, v *model.Vehicle) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	for _, existing := range m.s.vehicles {
		if existing.VehicleNumber == v.VehicleNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	v.VehicleID = m.s.nextID("veh")
	cp := *v
	m.s.vehicles[v.VehicleID] = &cp
	return nil
}

func (m *mockVehicleRepo) GetByID(_ context.Context, id string) (*model.Vehicle, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	v, ok := m.s.vehicles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVehicleRepo) GetByNumber(_ context.Context, number string) (*model.Vehicle, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	for _, v := range m.s.vehicles {
		if v.VehicleNumber == number {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVehicleRepo) List(_ context.Context, status model.VehicleStatus, page repository.Page) ([]model.Vehicle, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, 0, m.s.failWith
	}
	var all []model.Vehicle
	for _, v := range m.s.vehicles {
		if status != "" && v.Status != status {
			continue
		}
		all = append(all, *v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].VehicleNumber < all[j].VehicleNumber })
	return paginate(all, page), int64(len(all)), nil
}

func (m *mockVehicleRepo) Update(_ context.Context, v *model.Vehicle) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	cp := *v
	m.s.vehicles[v.VehicleID] = &cp
	return nil
}

func (m *mockVehicleRepo) SetStatus(_ context.Context, number string, status model.VehicleStatus) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return false, m.s.failWith
	}
	for _, v := range m.s.vehicles {
		if v.VehicleNumber == number {
			v.Status = status
			return true, nil
		}
	}
	return false, nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct{ s *mockStore }

func (m *mockAttendanceRepo) GetForUpdate(_ context.Context, employeeID string, date time.Time) (*model.AttendanceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	rec, ok := m.s.attendance[attendanceKey(employeeID, date)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockAttendanceRepo) Create(_ context.Context, rec *model.AttendanceRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	if hook := m.s.beforeAttendanceCreate; hook != nil {
		m.s.beforeAttendanceCreate = nil
		hook(rec)
	}
	key := attendanceKey(rec.EmployeeID, rec.AttendanceDate)
	if _, exists := m.s.attendance[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	rec.AttendanceID = m.s.nextID("att")
	cp := *rec
	cp.Employee = nil
	m.s.attendance[key] = &cp
	return nil
}

func (m *mockAttendanceRepo) Update(_ context.Context, rec *model.AttendanceRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	key := attendanceKey(rec.EmployeeID, rec.AttendanceDate)
	if _, ok := m.s.attendance[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *rec
	cp.Employee = nil
	m.s.attendance[key] = &cp
	return nil
}

func (m *mockAttendanceRepo) CreateAbsentForMissing(_ context.Context, date time.Time, notes string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return 0, m.s.failWith
	}
	var n int64
	for _, e := range m.s.employees {
		if !e.IsActive {
			continue
		}
		key := attendanceKey(e.EmployeeID, date)
		if _, exists := m.s.attendance[key]; exists {
			continue
		}
		m.s.attendance[key] = &model.AttendanceRecord{
			AttendanceID:   m.s.nextID("att"),
			EmployeeID:     e.EmployeeID,
			AttendanceDate: date,
			Status:         model.AttendanceAbsent,
			Notes:          notes,
		}
		n++
	}
	return n, nil
}

func (m *mockAttendanceRepo) List(_ context.Context, filter repository.AttendanceFilter) ([]model.AttendanceRecord, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, 0, m.s.failWith
	}
	var all []model.AttendanceRecord
	for _, rec := range m.s.attendance {
		if filter.EmployeeID != "" && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if !filter.From.IsZero() && rec.AttendanceDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && rec.AttendanceDate.After(filter.To) {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		all = append(all, m.s.withEmployee(rec))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AttendanceDate.After(all[j].AttendanceDate) })
	return paginate(all, filter.Page), int64(len(all)), nil
}

func (m *mockAttendanceRepo) ListRange(_ context.Context, from, to time.Time) ([]model.AttendanceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	var all []model.AttendanceRecord
	for _, rec := range m.s.attendance {
		if rec.AttendanceDate.Before(from) || rec.AttendanceDate.After(to) {
			continue
		}
		all = append(all, m.s.withEmployee(rec))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AttendanceDate.Before(all[j].AttendanceDate) })
	return all, nil
}

func (s *mockStore) withEmployee(rec *model.AttendanceRecord) model.AttendanceRecord {
	cp := *rec
	if e, ok := s.employees[rec.EmployeeID]; ok {
		ec := *e
		cp.Employee = &ec
	}
	return cp
}

// ── Mock EmployeeRepository ──

type mockEmployeeRepo struct{ s *mockStore }

func (m *mockEmployeeRepo) GetByID(_ context.Context, id string) (*model.Employee, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	e, ok := m.s.employees[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockEmployeeRepo) GetByIdentity(_ context.Context, identity model.Identity) (*model.Employee, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	column, value, ok := identity.Key()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for _, e := range m.s.employees {
		var field *string
		switch column {
		case "phone":
			field = e.Phone
		case "badge_no":
			field = e.BadgeNo
		case "face_id":
			field = e.FaceID
		}
		if field != nil && *field == value {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEmployeeRepo) ListActive(_ context.Context) ([]model.Employee, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Employee
	for _, e := range m.s.employees {
		if e.IsActive {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return out, nil
}

// ── Mock SalesOrderRepository ──

type mockSalesOrderRepo struct{ s *mockStore }

func (m *mockSalesOrderRepo) GetByID(_ context.Context, id string) (*model.SalesOrder, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	so, ok := m.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *so
	return &cp, nil
}

// ── Mock SystemConfigRepository ──

type mockSystemConfigRepo struct{ s *mockStore }

func (m *mockSystemConfigRepo) Get(_ context.Context) (*model.SystemConfig, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return nil, m.s.failWith
	}
	if m.s.sysCfg == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.s.sysCfg
	return &cp, nil
}

func (m *mockSystemConfigRepo) Update(_ context.Context, cfg *model.SystemConfig) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failWith != nil {
		return m.s.failWith
	}
	cfg.UpdatedAt = time.Now()
	cp := *cfg
	m.s.sysCfg = &cp
	return nil
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}
