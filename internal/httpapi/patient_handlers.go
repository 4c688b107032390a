package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
	"ward-monitor/internal/monitor"
	"ward-monitor/internal/repository"
	"ward-monitor/internal/simulator"
)

// PatientHandler 患者入出院与历史查询接口
type PatientHandler struct {
	cfg      *config.Config
	patients repository.PatientsRepository
	vitals   repository.VitalsRepository
	alarms   repository.AlarmEventsRepository
	cache    *monitor.CacheManager
	logger   *zap.Logger
}

// NewPatientHandler 创建患者接口处理器
func NewPatientHandler(
	cfg *config.Config,
	patients repository.PatientsRepository,
	vitals repository.VitalsRepository,
	alarms repository.AlarmEventsRepository,
	cache *monitor.CacheManager,
	logger *zap.Logger,
) *PatientHandler {
	return &PatientHandler{
		cfg:      cfg,
		patients: patients,
		vitals:   vitals,
		alarms:   alarms,
		cache:    cache,
		logger:   logger,
	}
}

// AdmitRequest 入院请求
type AdmitRequest struct {
	Name         string  `json:"name"`
	Age          int     `json:"age"`
	Gender       *string `json:"gender,omitempty"`
	Problem      string  `json:"problem"`
	PatientType  string  `json:"patient_type"`
	DemoMode     bool    `json:"demo_mode"`
	DemoScenario *string `json:"demo_scenario,omitempty"`
	BandID       string  `json:"band_id,omitempty"`
}

// Admit POST /api/patient/admit
// 入院并绑定手环，手环被占用时返回 409
func (h *PatientHandler) Admit(w http.ResponseWriter, r *http.Request) {
	var req AdmitRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if req.Name == "" || req.Age <= 0 || req.Problem == "" {
		writeJSON(w, http.StatusBadRequest, Fail("name, age and problem are required"))
		return
	}
	ward := models.ParseWardType(req.PatientType)
	if !ward.Known() {
		writeJSON(w, http.StatusBadRequest, Fail("patient_type must be GENERAL or CRITICAL"))
		return
	}
	if req.DemoScenario != nil && !simulator.ValidScenario(*req.DemoScenario) {
		writeJSON(w, http.StatusBadRequest, Fail("unknown demo scenario"))
		return
	}

	bandID := req.BandID
	if bandID == "" {
		bandID = h.cfg.Monitor.DefaultBandID
	}

	patient, err := h.patients.Create(r.Context(), repository.CreatePatientRequest{
		Name:         req.Name,
		Age:          req.Age,
		Gender:       req.Gender,
		Problem:      req.Problem,
		WardType:     ward,
		DemoMode:     req.DemoMode,
		DemoScenario: req.DemoScenario,
		BandID:       bandID,
	})
	if errors.Is(err, repository.ErrBandOccupied) {
		writeJSON(w, http.StatusConflict, Fail("band is already assigned to an active patient"))
		return
	}
	if err != nil {
		h.logger.Error("failed to admit patient", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to admit patient"))
		return
	}

	h.logger.Info("patient admitted",
		zap.Int("patient_id", patient.ID),
		zap.String("ward_type", string(patient.WardType)),
		zap.String("band_id", bandID))
	writeJSON(w, http.StatusOK, Ok(patient))
}

// Discharge POST /api/patient/discharge/{id}
// 出院、释放手环并清理缓存
func (h *PatientHandler) Discharge(w http.ResponseWriter, r *http.Request, patientID int) {
	patient, err := h.patients.GetByID(r.Context(), patientID)
	if errors.Is(err, repository.ErrPatientNotFound) {
		writeJSON(w, http.StatusNotFound, Fail("patient not found"))
		return
	}
	if err != nil {
		h.logger.Error("failed to load patient", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to discharge patient"))
		return
	}

	if err := h.patients.Discharge(r.Context(), patientID); err != nil {
		if errors.Is(err, repository.ErrPatientNotFound) {
			writeJSON(w, http.StatusConflict, Fail("patient is not active"))
			return
		}
		h.logger.Error("failed to discharge patient",
			zap.Int("patient_id", patientID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to discharge patient"))
		return
	}

	if band := patient.Band(); band != "" {
		if err := h.cache.ClearBand(r.Context(), band); err != nil {
			h.logger.Warn("failed to clear band cache",
				zap.String("band_id", band), zap.Error(err))
		}
	}

	h.logger.Info("patient discharged", zap.Int("patient_id", patientID))
	writeJSON(w, http.StatusOK, Ok(map[string]any{"patient_id": patientID, "status": models.PatientStatusDischarged}))
}

// GetActive GET /api/patient/active
func (h *PatientHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	patients, err := h.patients.GetActive(r.Context())
	if err != nil {
		h.logger.Error("failed to query active patients", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query active patients"))
		return
	}
	if patients == nil {
		patients = []*models.Patient{}
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// GetByID GET /api/patient/{id}
func (h *PatientHandler) GetByID(w http.ResponseWriter, r *http.Request, patientID int) {
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
	writeJSON(w, http.StatusOK, Ok(patient))
}

// AlarmHistory GET /api/patient/{id}/alarm-history?limit=50
func (h *PatientHandler) AlarmHistory(w http.ResponseWriter, r *http.Request, patientID int) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	events, err := h.alarms.History(r.Context(), patientID, limit)
	if err != nil {
		h.logger.Error("failed to query alarm history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query alarm history"))
		return
	}
	if events == nil {
		events = []*models.AlarmEvent{}
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// Vitals GET /api/patient/{id}/vitals?limit=100
func (h *PatientHandler) Vitals(w http.ResponseWriter, r *http.Request, patientID int) {
	limit := parseInt(r.URL.Query().Get("limit"), 100)
	logs, err := h.vitals.History(r.Context(), patientID, limit)
	if err != nil {
		h.logger.Error("failed to query vitals history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query vitals history"))
		return
	}
	if logs == nil {
		logs = []*models.VitalLog{}
	}
	writeJSON(w, http.StatusOK, Ok(logs))
}

// LatestVitals GET /api/patient/{id}/vitals/latest
// 优先读实时缓存，未命中回退数据库
func (h *PatientHandler) LatestVitals(w http.ResponseWriter, r *http.Request, patientID int) {
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

	if band := patient.Band(); band != "" {
		snapshot, err := h.cache.GetRealtime(r.Context(), band)
		if err != nil {
			h.logger.Warn("realtime cache read failed, falling back to database",
				zap.String("band_id", band), zap.Error(err))
		} else if snapshot != nil && snapshot.PatientID == patientID {
			writeJSON(w, http.StatusOK, Ok(snapshot))
			return
		}
	}

	log, err := h.vitals.Latest(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to query latest vitals", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query latest vitals"))
		return
	}
	if log == nil {
		writeJSON(w, http.StatusNotFound, Fail("no vitals recorded for patient"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(log))
}

// Discharged GET /api/patients/discharged?limit=
func (h *PatientHandler) Discharged(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 0)
	patients, err := h.patients.GetDischarged(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to query discharged patients", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query discharged patients"))
		return
	}
	if patients == nil {
		patients = []*models.Patient{}
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// Statistics GET /api/patients/statistics
func (h *PatientHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.patients.Statistics(r.Context())
	if err != nil {
		h.logger.Error("failed to query patient statistics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query patient statistics"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
