package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"ward-monitor/internal/proximity"
)

// NurseHandler 护士会话注册与临近上报接口
type NurseHandler struct {
	tracker *proximity.Tracker
	logger  *zap.Logger
}

// NewNurseHandler 创建护士接口处理器
func NewNurseHandler(tracker *proximity.Tracker, logger *zap.Logger) *NurseHandler {
	return &NurseHandler{tracker: tracker, logger: logger}
}

// RegisterRequest 会话注册请求
type RegisterRequest struct {
	SessionID  string `json:"session_id"`
	DeviceInfo string `json:"device_info"`
}

// Register POST /api/nurse/register
func (h *NurseHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("session_id is required"))
		return
	}

	session := h.tracker.Register(req.SessionID, req.DeviceInfo)
	writeJSON(w, http.StatusOK, Ok(session))
}

// ProximityRequest 临近上报请求
type ProximityRequest struct {
	SessionID  string   `json:"session_id"`
	BLEDevices []string `json:"ble_devices"`
}

// Proximity POST /api/nurse/proximity
// 上报当前扫描到的手环集合，未注册的会话自动注册
func (h *NurseHandler) Proximity(w http.ResponseWriter, r *http.Request) {
	var req ProximityRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("session_id is required"))
		return
	}

	h.tracker.Report(req.SessionID, req.BLEDevices)
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"session_id":  req.SessionID,
		"ble_devices": req.BLEDevices,
	}))
}

// Status GET /api/nurse/status/{session_id}
func (h *NurseHandler) Status(w http.ResponseWriter, r *http.Request, sessionID string) {
	session := h.tracker.Get(sessionID)
	if session == nil {
		writeJSON(w, http.StatusNotFound, Fail("nurse session not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(session))
}
