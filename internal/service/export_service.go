package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/config"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 月度考勤导出为 Excel (.xlsx)，导出以 bytes.Buffer 返回，由 Handler 层设置响应头
//   - Sheet "汇总"：每名员工一行（出勤 / 迟到 / 半天 / 缺勤 / 总工时）
//   - Sheet "明细"：每条考勤记录一行，按日期、工号排序
type ExportService interface {
	ExportAttendance(ctx context.Context, req *dto.AttendanceMonthRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	dep    dependencyPolicy
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, depCfg config.DependencyConfig, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, dep: newDependencyPolicy(depCfg), logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportAttendance — 导出月度考勤
// ═══════════════════════════════════════════════════════════
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportAttendance(ctx context.Context, req *dto.AttendanceMonthRequest) (*bytes.Buffer, string, error) {
	from, to, err := monthRange(req)
	if err != nil {
		return nil, "", err
	}

	records, err := readWithRetry(ctx, s.dep, func(ctx context.Context) ([]model.AttendanceRecord, error) {
		return s.repo.Attendance.ListRange(ctx, from, to)
	})
	if err != nil {
		err = classifyErr(err, entityAttendance, "")
		s.logger.Error("查询月度考勤失败", zap.String("month", req.Month), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── 汇总 ──
	summarySheet := "汇总"
	idx, _ := f.NewSheet(summarySheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(summarySheet, "A", "A", 14)
	f.SetColWidth(summarySheet, "B", "B", 16)
	f.SetColWidth(summarySheet, "C", "G", 10)

	f.SetCellValue(summarySheet, "A1", fmt.Sprintf("%s 考勤汇总", req.Month))
	f.MergeCell(summarySheet, "A1", "G1")
	f.SetCellStyle(summarySheet, "A1", "A1", headerStyle)

	writeRow(f, summarySheet, 2, "工号", "姓名", "出勤", "迟到", "半天", "缺勤", "总工时")
	f.SetCellStyle(summarySheet, "A2", "G2", headerStyle)
	row := 3
	for _, item := range summarizeAttendance(records) {
		writeRow(f, summarySheet, row,
			item.EmployeeCode, item.EmployeeName,
			item.Present, item.Late, item.HalfDay, item.Absent, item.TotalHours)
		row++
	}

	// ── 明细 ──
	detailSheet := "明细"
	f.NewSheet(detailSheet)
	f.SetColWidth(detailSheet, "A", "A", 12)
	f.SetColWidth(detailSheet, "B", "B", 14)
	f.SetColWidth(detailSheet, "C", "C", 16)
	f.SetColWidth(detailSheet, "D", "G", 11)
	f.SetColWidth(detailSheet, "H", "H", 24)

	writeRow(f, detailSheet, 1, "日期", "工号", "姓名", "进场", "出场", "状态", "工时", "备注")
	f.SetCellStyle(detailSheet, "A1", "H1", headerStyle)
	row = 2
	for i := range records {
		rec := toAttendanceResponse(&records[i])
		hours := "-"
		if rec.HoursWorked != nil {
			hours = fmt.Sprintf("%.2f", *rec.HoursWorked)
		}
		writeRow(f, detailSheet, row,
			rec.AttendanceDate, rec.EmployeeCode, rec.EmployeeName,
			orDash(rec.CheckInTime), orDash(rec.CheckOutTime), rec.Status, hours, rec.Notes)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("考勤导出完成", zap.String("month", req.Month), zap.Int("records", len(records)))
	return buf, fmt.Sprintf("考勤_%s.xlsx", req.Month), nil
}

// ── 辅助函数 ──

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		f.SetCellValue(sheet, cell(colName(i), row), v)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
