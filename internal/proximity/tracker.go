package proximity

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ward-monitor/internal/models"
)

// Tracker 维护护士终端的邻近状态
// 所有状态变更通过互斥锁串行化，读写安全
type Tracker struct {
	mu          sync.Mutex
	sessions    map[string]*models.ObserverSession
	staleWindow time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewTracker 创建邻近跟踪器
// staleWindow 为上报有效窗口，超过该窗口的上报视为过期
func NewTracker(staleWindow time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		sessions:    make(map[string]*models.ObserverSession),
		staleWindow: staleWindow,
		now:         time.Now,
		logger:      logger,
	}
}

// Register 注册护士终端会话
// 重复注册更新设备信息，保留原注册时间
func (t *Tracker) Register(sessionID, deviceInfo string) *models.ObserverSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if existing, ok := t.sessions[sessionID]; ok {
		existing.DeviceInfo = deviceInfo
		return existing.Clone()
	}

	session := &models.ObserverSession{
		SessionID:    sessionID,
		DeviceInfo:   deviceInfo,
		RegisteredAt: now,
	}
	t.sessions[sessionID] = session

	t.logger.Info("observer session registered",
		zap.String("session_id", sessionID),
		zap.String("device_info", deviceInfo))

	return session.Clone()
}

// Report 记录一次邻近上报：该会话当前靠近哪些床旁设备
// 未注册的会话在首次上报时自动注册
func (t *Tracker) Report(sessionID string, bandIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	session, ok := t.sessions[sessionID]
	if !ok {
		session = &models.ObserverSession{
			SessionID:    sessionID,
			RegisteredAt: now,
		}
		t.sessions[sessionID] = session
		t.logger.Info("observer session auto-registered on first report",
			zap.String("session_id", sessionID))
	}

	session.LastSeen = &now
	session.NearbyBands = append(session.NearbyBands[:0], bandIDs...)
}

// NearbyObservers 返回在有效窗口内上报过靠近指定设备的会话 ID
// 结果按会话 ID 排序，保证判定输入的确定性
func (t *Tracker) NearbyObservers(bandID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.staleWindow)
	var observers []string
	for _, session := range t.sessions {
		if session.LastSeen == nil || session.LastSeen.Before(cutoff) {
			continue
		}
		for _, band := range session.NearbyBands {
			if band == bandID {
				observers = append(observers, session.SessionID)
				break
			}
		}
	}

	sort.Strings(observers)
	return observers
}

// IsInRange 判断指定设备当前是否有护士在邻近范围内
func (t *Tracker) IsInRange(bandID string) bool {
	return len(t.NearbyObservers(bandID)) > 0
}

// Get 查询会话状态，不存在返回 nil
func (t *Tracker) Get(sessionID string) *models.ObserverSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionID]
	if !ok {
		return nil
	}
	return session.Clone()
}

// Sessions 返回全部会话快照
func (t *Tracker) Sessions() []*models.ObserverSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions := make([]*models.ObserverSession, 0, len(t.sessions))
	for _, session := range t.sessions {
		sessions = append(sessions, session.Clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions
}
