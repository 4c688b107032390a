package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handlers 路由注册所需的全部处理器
type Handlers struct {
	Patients *PatientHandler
	Nurses   *NurseHandler
	Sensors  *SensorHandler
	WS       *WSHandler
	Export   *AlarmExportHandler
	Health   http.HandlerFunc
}

// RegisterRoutes 注册全部路由
func (r *Router) RegisterRoutes(h *Handlers) {
	// 健康检查
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if h.Health != nil {
			h.Health(w, req)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "healthy"}))
	})

	// 患者入出院
	r.Handle("/api/patient/admit", methodOnly(http.MethodPost, h.Patients.Admit))
	r.Handle("/api/patient/discharge/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id, ok := trailingID(req.URL.Path, "/api/patient/discharge/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Patients.Discharge(w, req, id)
	})
	r.Handle("/api/patient/active", methodOnly(http.MethodGet, h.Patients.GetActive))
	r.Handle("/api/patients/discharged", methodOnly(http.MethodGet, h.Patients.Discharged))
	r.Handle("/api/patients/statistics", methodOnly(http.MethodGet, h.Patients.Statistics))

	// 患者详情与历史，/api/patient/{id}[/alarm-history|/vitals[/latest|/simulate]]
	r.Handle("/api/patient/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/patient/")
		parts := strings.Split(rest, "/")

		id := parseInt(parts[0], -1)
		if id < 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		// 模拟读数是唯一的 POST 子路由
		if len(parts) == 3 && parts[1] == "vitals" && parts[2] == "simulate" {
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Sensors.Simulate(w, req, id)
			return
		}

		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		switch {
		case len(parts) == 1:
			h.Patients.GetByID(w, req, id)
		case len(parts) == 2 && parts[1] == "alarm-history":
			h.Patients.AlarmHistory(w, req, id)
		case len(parts) == 2 && parts[1] == "vitals":
			h.Patients.Vitals(w, req, id)
		case len(parts) == 3 && parts[1] == "vitals" && parts[2] == "latest":
			h.Patients.LatestVitals(w, req, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// 护士会话
	r.Handle("/api/nurse/register", methodOnly(http.MethodPost, h.Nurses.Register))
	r.Handle("/api/nurse/proximity", methodOnly(http.MethodPost, h.Nurses.Proximity))
	r.Handle("/api/nurse/status/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sessionID := strings.TrimPrefix(req.URL.Path, "/api/nurse/status/")
		if sessionID == "" || strings.Contains(sessionID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Nurses.Status(w, req, sessionID)
	})

	// 传感器接入
	r.Handle("/api/sensor-data", methodOnly(http.MethodPost, h.Sensors.Receive))

	// 报警审计导出
	r.Handle("/api/alarms/export", methodOnly(http.MethodGet, h.Export.Export))

	// 实时推送
	r.Handle("/ws", h.WS.Dashboard)
	r.Handle("/ws/nurse/", func(w http.ResponseWriter, req *http.Request) {
		sessionID := strings.TrimPrefix(req.URL.Path, "/ws/nurse/")
		if sessionID == "" || strings.Contains(sessionID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.WS.Nurse(w, req, sessionID)
	})
}

func methodOnly(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next(w, req)
	}
}

func trailingID(path, prefix string) (int, bool) {
	s := strings.TrimPrefix(path, prefix)
	if s == "" || strings.Contains(s, "/") {
		return 0, false
	}
	id := parseInt(s, -1)
	if id < 0 {
		return 0, false
	}
	return id, true
}
