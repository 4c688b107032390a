package models

import (
	"time"
)

// AlarmAction 报警决策动作
type AlarmAction string

const (
	// ActionSuppress 抑制：风险分类未达到升级条件，不打扰任何人
	ActionSuppress AlarmAction = "SUPPRESS"
	// ActionProximityAlert 临近提醒：定向推送到临近护士的移动设备（振动，不上大屏）
	ActionProximityAlert AlarmAction = "PROXIMITY_ALERT"
	// ActionDashboardAlert 大屏报警：升级到中央看板
	ActionDashboardAlert AlarmAction = "DASHBOARD_ALERT"
)

// AlarmDecision 一次策略评估的完整结果
// 每个评估周期创建一次，不可变，持久化为审计记录后发布并丢弃
type AlarmDecision struct {
	Action           AlarmAction `json:"action"`
	AlarmActive      bool        `json:"alarm_active"`
	Message          string      `json:"message"`
	RouteToNurse     bool        `json:"route_to_nurse"`
	RouteToDashboard bool        `json:"route_to_dashboard"`
	// NurseSessions 仅 PROXIMITY_ALERT 时非空，为需要通知的观察者会话集合
	NurseSessions []string `json:"nurse_sessions"`
}

// AlarmEvent 报警审计记录（对应 alarm_events 表）
// 保留决策时刻的完整体征快照与临近状态，用于事后回溯抑制阈值
type AlarmEvent struct {
	ID                 int64        `json:"id" db:"id"`
	PatientID          int          `json:"patient_id" db:"patient_id"`
	Vitals             VitalsSample `json:"vitals" db:"vitals"`
	AlarmStatus        AlarmAction  `json:"alarm_status" db:"alarm_status"`
	ProximityAlertSent bool         `json:"proximity_alert_sent" db:"proximity_alert_sent"`
	NurseInProximity   bool         `json:"nurse_in_proximity" db:"nurse_in_proximity"`
	Timestamp          time.Time    `json:"timestamp" db:"timestamp"`
}
