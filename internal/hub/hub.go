package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Conn 下行连接抽象
// 由 WebSocket 传输层实现，Send 必须可并发调用
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Hub 实时分发中枢：看板连接 + 护士终端连接两组注册表
// 推送为尽力而为，失败连接即刻摘除，不阻塞采样循环
type Hub struct {
	mu         sync.Mutex
	dashboards map[string]Conn
	observers  map[string]Conn
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		dashboards: make(map[string]Conn),
		observers:  make(map[string]Conn),
		logger:     logger,
	}
}

// RegisterDashboard 注册看板连接，connID 由调用方生成
func (h *Hub) RegisterDashboard(connID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.dashboards[connID]; ok {
		_ = old.Close()
	}
	h.dashboards[connID] = conn
	h.logger.Info("dashboard connected",
		zap.String("conn_id", connID),
		zap.Int("dashboard_count", len(h.dashboards)))
}

// UnregisterDashboard 摘除看板连接，重复调用安全
func (h *Hub) UnregisterDashboard(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.dashboards[connID]; !ok {
		return
	}
	delete(h.dashboards, connID)
	h.logger.Info("dashboard disconnected",
		zap.String("conn_id", connID),
		zap.Int("dashboard_count", len(h.dashboards)))
}

// RegisterObserver 注册护士终端连接，sessionID 与邻近会话一致
func (h *Hub) RegisterObserver(sessionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.observers[sessionID]; ok {
		_ = old.Close()
	}
	h.observers[sessionID] = conn
	h.logger.Info("observer connected",
		zap.String("session_id", sessionID),
		zap.Int("observer_count", len(h.observers)))
}

// UnregisterObserver 摘除护士终端连接，重复调用安全
func (h *Hub) UnregisterObserver(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.observers[sessionID]; !ok {
		return
	}
	delete(h.observers, sessionID)
	h.logger.Info("observer disconnected",
		zap.String("session_id", sessionID),
		zap.Int("observer_count", len(h.observers)))
}

// BroadcastDashboards 向全部看板推送事件，返回成功送达数
// 发送失败的连接摘除并关闭
func (h *Hub) BroadcastDashboards(event interface{}) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal dashboard event", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcastLocked(h.dashboards, data, "dashboard")
}

// BroadcastObservers 向全部护士终端推送事件，返回成功送达数
func (h *Hub) BroadcastObservers(event interface{}) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal observer event", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcastLocked(h.observers, data, "observer")
}

// SendObserver 向指定护士终端推送事件
// 会话未连接时为空操作，返回 false
func (h *Hub) SendObserver(sessionID string, event interface{}) bool {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal observer event",
			zap.String("session_id", sessionID), zap.Error(err))
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.observers[sessionID]
	if !ok {
		return false
	}
	if err := conn.Send(data); err != nil {
		h.logger.Warn("observer send failed, dropping connection",
			zap.String("session_id", sessionID), zap.Error(err))
		delete(h.observers, sessionID)
		_ = conn.Close()
		return false
	}
	return true
}

// DashboardCount 当前看板连接数
func (h *Hub) DashboardCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dashboards)
}

// ObserverCount 当前护士终端连接数
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) broadcastLocked(conns map[string]Conn, data []byte, kind string) int {
	delivered := 0
	for id, conn := range conns {
		if err := conn.Send(data); err != nil {
			h.logger.Warn("broadcast send failed, dropping connection",
				zap.String("kind", kind),
				zap.String("conn_id", id),
				zap.Error(err))
			delete(conns, id)
			_ = conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}
