package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ward-monitor/internal/models"
	"ward-monitor/internal/repository"
)

// AlarmExportHeader 报警审计导出表头
var AlarmExportHeader = []string{
	"Event ID",
	"Patient ID",
	"Alarm Status",
	"HR",
	"SpO2",
	"Temp",
	"BP Systolic",
	"BP Diastolic",
	"Resp Rate",
	"Glucose",
	"Proximity Alert Sent",
	"Nurse In Proximity",
	"Timestamp",
}

// AlarmExportHandler 报警审计 Excel 导出接口
type AlarmExportHandler struct {
	alarms repository.AlarmEventsRepository
	logger *zap.Logger
}

// NewAlarmExportHandler 创建导出接口处理器
func NewAlarmExportHandler(alarms repository.AlarmEventsRepository, logger *zap.Logger) *AlarmExportHandler {
	return &AlarmExportHandler{alarms: alarms, logger: logger}
}

// Export GET /api/alarms/export?from=2025-06-01&to=2025-06-02
// 缺省导出最近 24 小时
func (h *AlarmExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("from must be YYYY-MM-DD"))
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("to must be YYYY-MM-DD"))
			return
		}
		// 区间右开，包含 to 当天
		to = t.Add(24 * time.Hour)
	}
	if !from.Before(to) {
		writeJSON(w, http.StatusBadRequest, Fail("from must be before to"))
		return
	}

	events, err := h.alarms.ListBetween(r.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to load alarm events for export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export alarm events"))
		return
	}

	data, err := GenerateAlarmExport(events)
	if err != nil {
		h.logger.Error("failed to generate alarm export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export alarm events"))
		return
	}

	filename := fmt.Sprintf("alarm_events_%s_%s.xlsx",
		from.Format("20060102"), to.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

// GenerateAlarmExport 生成报警审计 Excel 文件
func GenerateAlarmExport(events []*models.AlarmEvent) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Alarm Events"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range AlarmExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for rowIdx, event := range events {
		row := rowIdx + 2
		values := []any{
			event.ID,
			event.PatientID,
			string(event.AlarmStatus),
			optionalCell(event.Vitals.HeartRate),
			optionalCell(event.Vitals.SpO2),
			optionalCell(event.Vitals.Temperature),
			optionalCell(event.Vitals.BPSystolic),
			optionalCell(event.Vitals.BPDiastolic),
			optionalCell(event.Vitals.RespRate),
			optionalCell(event.Vitals.Glucose),
			event.ProximityAlertSent,
			event.NurseInProximity,
			event.Timestamp.UTC().Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
