package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
)

// AttendanceFilter 考勤列表筛选条件，日期为闭区间
type AttendanceFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time
	Status     model.AttendanceStatus
	Page
}

// AttendanceRepository 考勤记录数据访问接口
type AttendanceRepository interface {
	// GetForUpdate 在事务内以 SELECT ... FOR UPDATE 读取员工当日记录
	GetForUpdate(ctx context.Context, employeeID string, date time.Time) (*model.AttendanceRecord, error)
	Create(ctx context.Context, rec *model.AttendanceRecord) error
	Update(ctx context.Context, rec *model.AttendanceRecord) error
	// CreateAbsentForMissing 为当日无记录的在职员工补写 ABSENT，返回新增条数
	CreateAbsentForMissing(ctx context.Context, date time.Time, notes string) (int64, error)
	List(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, int64, error)
	// ListRange 返回区间内全部记录（含员工信息），用于月度汇总与导出
	ListRange(ctx context.Context, from, to time.Time) ([]model.AttendanceRecord, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) GetForUpdate(ctx context.Context, employeeID string, date time.Time) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("employee_id = ? AND attendance_date = ?", employeeID, date.Format(model.DateLayout)).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) Create(ctx context.Context, rec *model.AttendanceRecord) error {
	return r.db.WithContext(ctx).Omit("Employee").Create(rec).Error
}

func (r *attendanceRepo) Update(ctx context.Context, rec *model.AttendanceRecord) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("attendance_id = ?", rec.AttendanceID).
		Updates(map[string]interface{}{
			"check_in_time":  rec.CheckInTime,
			"check_out_time": rec.CheckOutTime,
			"status":         rec.Status,
			"hours_worked":   rec.HoursWorked,
			"notes":          rec.Notes,
			"updated_at":     now,
		}).Error
	if err != nil {
		return err
	}
	rec.UpdatedAt = now
	return nil
}

func (r *attendanceRepo) CreateAbsentForMissing(ctx context.Context, date time.Time, notes string) (int64, error) {
	day := date.Format(model.DateLayout)
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO attendance_records (employee_id, attendance_date, status, notes)
		SELECT e.employee_id, ?::date, ?, ?
		FROM employees e
		WHERE e.is_active
		  AND NOT EXISTS (
		      SELECT 1 FROM attendance_records a
		      WHERE a.employee_id = e.employee_id AND a.attendance_date = ?::date)
		ON CONFLICT (employee_id, attendance_date) DO NOTHING`,
		day, model.AttendanceAbsent, notes, day)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *attendanceRepo) List(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, int64, error) {
	var items []model.AttendanceRecord
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AttendanceRecord{})
	if filter.EmployeeID != "" {
		db = db.Where("employee_id = ?", filter.EmployeeID)
	}
	if !filter.From.IsZero() {
		db = db.Where("attendance_date >= ?", filter.From.Format(model.DateLayout))
	}
	if !filter.To.IsZero() {
		db = db.Where("attendance_date <= ?", filter.To.Format(model.DateLayout))
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Preload("Employee").
		Offset(filter.Offset).Limit(filter.Limit).
		Order("attendance_date DESC, check_in_time ASC").
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *attendanceRepo) ListRange(ctx context.Context, from, to time.Time) ([]model.AttendanceRecord, error) {
	var items []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Employee").
		Where("attendance_date BETWEEN ? AND ?", from.Format(model.DateLayout), to.Format(model.DateLayout)).
		Order("attendance_date ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
