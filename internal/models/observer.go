package models

import (
	"time"
)

// ObserverSession 观察者（护士）会话
// 注册时创建，每次临近上报更新；不删除，超过过期窗口后视为 stale 被忽略
type ObserverSession struct {
	SessionID    string     `json:"session_id"`
	DeviceInfo   string     `json:"device_info"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastSeen     *time.Time `json:"last_proximity_update,omitempty"`
	NearbyBands  []string   `json:"ble_devices_nearby"`
}

// Clone 返回会话的深拷贝，供跟踪器对外暴露快照
func (s *ObserverSession) Clone() *ObserverSession {
	clone := *s
	if s.LastSeen != nil {
		seen := *s.LastSeen
		clone.LastSeen = &seen
	}
	if s.NearbyBands != nil {
		clone.NearbyBands = append([]string(nil), s.NearbyBands...)
	}
	return &clone
}
