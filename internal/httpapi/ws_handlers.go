package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ward-monitor/internal/hub"
	"ward-monitor/internal/proximity"
)

const (
	// 写超时
	writeWait = 10 * time.Second
	// 心跳间隔，必须小于 pongWait
	pingPeriod = 30 * time.Second
	pongWait   = 40 * time.Second
	// 下行队列长度，写满视为慢消费者直接断开
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 看板与护士终端来自不同源，交由部署层控制跨域
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn hub.Conn 的 WebSocket 实现
// Send 只投递到队列，写循环串行持有底层连接
type wsConn struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func newWSConn(conn *websocket.Conn, logger *zap.Logger) *wsConn {
	c := &wsConn{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.writePump()
	return c
}

// Send 实现 hub.Conn，队列满或连接已关闭时返回错误
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close 实现 hub.Conn，并发调用安全且幂等
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

var errSlowConsumer = &websocket.CloseError{Code: websocket.ClosePolicyViolation, Text: "send queue full"}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 丢弃入站消息，只用于感知断连和维持 pong 超时
func (c *wsConn) readPump(onClose func()) {
	defer func() {
		onClose()
		c.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WSHandler 实时推送接入点
type WSHandler struct {
	hub     *hub.Hub
	tracker *proximity.Tracker
	logger  *zap.Logger
}

// NewWSHandler 创建 WebSocket 处理器
func NewWSHandler(h *hub.Hub, tracker *proximity.Tracker, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: h, tracker: tracker, logger: logger}
}

// Dashboard GET /ws
// 看板连接，接收全部体征更新与报警事件
func (h *WSHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.New().String()
	c := newWSConn(conn, h.logger)
	h.hub.RegisterDashboard(connID, c)

	go c.readPump(func() {
		h.hub.UnregisterDashboard(connID)
	})
}

// Nurse GET /ws/nurse/{session_id}
// 护士终端连接，接收定向临近提醒与重症报警
func (h *WSHandler) Nurse(w http.ResponseWriter, r *http.Request, sessionID string) {
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("session_id is required"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	// 连接即注册会话，无需预先调用注册接口
	h.tracker.Register(sessionID, r.UserAgent())

	c := newWSConn(conn, h.logger)
	h.hub.RegisterObserver(sessionID, c)

	go c.readPump(func() {
		h.hub.UnregisterObserver(sessionID)
	})
}
