package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
	"ward-monitor/internal/repository"
	"ward-monitor/internal/simulator"
)

// ReadingProcessor 读数决策管线
type ReadingProcessor interface {
	Process(ctx context.Context, patient *models.Patient, vitals models.VitalsSample) (*models.AlarmDecision, error)
}

// SensorHandler 真实手环数据接入接口
// 与 MQTT 接入共用同一条决策管线
type SensorHandler struct {
	cfg      *config.Config
	patients repository.PatientsRepository
	pipeline ReadingProcessor
	logger   *zap.Logger
}

// NewSensorHandler 创建传感器接口处理器
func NewSensorHandler(
	cfg *config.Config,
	patients repository.PatientsRepository,
	pipeline ReadingProcessor,
	logger *zap.Logger,
) *SensorHandler {
	return &SensorHandler{
		cfg:      cfg,
		patients: patients,
		pipeline: pipeline,
		logger:   logger,
	}
}

// SensorDataRequest 手环上报载荷，体征字段与采样格式一致
type SensorDataRequest struct {
	BandID string `json:"band_id,omitempty"`
	models.VitalsSample
}

// Receive POST /api/sensor-data
// 手环未绑定患者时返回 400，分类服务不可用时返回 503
func (h *SensorHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req SensorDataRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	bandID := req.BandID
	if bandID == "" {
		bandID = h.cfg.Monitor.DefaultBandID
	}

	patient, err := h.patients.GetActiveByBand(r.Context(), bandID)
	if errors.Is(err, repository.ErrPatientNotFound) {
		writeJSON(w, http.StatusBadRequest, Fail("band is not assigned to an active patient"))
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve band assignment",
			zap.String("band_id", bandID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to resolve band assignment"))
		return
	}

	decision, err := h.pipeline.Process(r.Context(), patient, req.VitalsSample)
	if err != nil {
		h.logger.Error("failed to process sensor reading",
			zap.String("band_id", bandID),
			zap.Int("patient_id", patient.ID),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("failed to classify sensor reading"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"patient_id":   patient.ID,
		"band_id":      bandID,
		"alarm_status": decision.Action,
		"alarm_active": decision.AlarmActive,
		"message":      decision.Message,
	}))
}

// Simulate POST /api/patient/{id}/vitals/simulate?scenario=
// 手动触发一次指定场景的模拟读数，走完整决策管线
func (h *SensorHandler) Simulate(w http.ResponseWriter, r *http.Request, patientID int) {
	scenario := r.URL.Query().Get("scenario")
	if scenario == "" {
		scenario = simulator.ScenarioNormal
	}
	if !simulator.ValidScenario(scenario) {
		writeJSON(w, http.StatusBadRequest, Fail("unknown demo scenario"))
		return
	}

	patient, err := h.patients.GetByID(r.Context(), patientID)
	if errors.Is(err, repository.ErrPatientNotFound) {
		writeJSON(w, http.StatusNotFound, Fail("patient not found"))
		return
	}
	if err != nil {
		h.logger.Error("failed to query patient", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query patient"))
		return
	}
	if patient.Status != models.PatientStatusActive {
		writeJSON(w, http.StatusBadRequest, Fail("can only simulate vitals for active patients"))
		return
	}

	sample := simulator.New(patient.ID, patient.WardType, scenario, time.Now().UnixNano()).Next()

	decision, err := h.pipeline.Process(r.Context(), patient, sample)
	if err != nil {
		h.logger.Error("failed to process simulated reading",
			zap.Int("patient_id", patient.ID),
			zap.String("scenario", scenario),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("failed to classify simulated reading"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"patient_id":   patient.ID,
		"scenario":     scenario,
		"vitals":       sample,
		"alarm_status": decision.Action,
		"alarm_active": decision.AlarmActive,
		"message":      decision.Message,
	}))
}
