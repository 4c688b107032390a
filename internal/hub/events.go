package hub

import (
	"time"

	"ward-monitor/internal/models"
)

// 事件类型，与前端约定的消息协议保持一致
const (
	EventVitalSignsUpdate = "vital_signs_update"
	EventAlarmTriggered   = "alarm_triggered"
	EventProximityAlert   = "proximity_alert"
)

// VitalSignsUpdate 每个采样周期向看板推送的体征更新
type VitalSignsUpdate struct {
	Type        string              `json:"type"`
	PatientID   int                 `json:"patient_id"`
	PatientName string              `json:"patient_name"`
	WardType    string              `json:"ward_type"`
	BandID      string              `json:"band_id"`
	Vitals      models.VitalsSample `json:"vitals"`
	AlarmActive bool                `json:"alarm_active"`
	Timestamp   time.Time           `json:"timestamp"`
}

// AlarmTriggered 判定为告警时推送的事件
type AlarmTriggered struct {
	Type        string              `json:"type"`
	PatientID   int                 `json:"patient_id"`
	PatientName string              `json:"patient_name"`
	WardType    string              `json:"ward_type"`
	BandID      string              `json:"band_id"`
	Vitals      models.VitalsSample `json:"vitals"`
	Message     string              `json:"message"`
	Timestamp   time.Time           `json:"timestamp"`
}

// ProximityAlert 定向推送给邻近护士的就地提醒
type ProximityAlert struct {
	Type        string              `json:"type"`
	PatientID   int                 `json:"patient_id"`
	PatientName string              `json:"patient_name"`
	BandID      string              `json:"band_id"`
	Vitals      models.VitalsSample `json:"vitals"`
	Message     string              `json:"message"`
	Timestamp   time.Time           `json:"timestamp"`
}

// NewVitalSignsUpdate 构造体征更新事件
func NewVitalSignsUpdate(p *models.Patient, vitals models.VitalsSample, alarmActive bool, ts time.Time) VitalSignsUpdate {
	return VitalSignsUpdate{
		Type:        EventVitalSignsUpdate,
		PatientID:   p.ID,
		PatientName: p.Name,
		WardType:    string(p.WardType),
		BandID:      p.Band(),
		Vitals:      vitals,
		AlarmActive: alarmActive,
		Timestamp:   ts,
	}
}

// NewAlarmTriggered 构造告警事件
func NewAlarmTriggered(p *models.Patient, vitals models.VitalsSample, message string, ts time.Time) AlarmTriggered {
	return AlarmTriggered{
		Type:        EventAlarmTriggered,
		PatientID:   p.ID,
		PatientName: p.Name,
		WardType:    string(p.WardType),
		BandID:      p.Band(),
		Vitals:      vitals,
		Message:     message,
		Timestamp:   ts,
	}
}

// NewProximityAlert 构造邻近提醒事件
func NewProximityAlert(p *models.Patient, vitals models.VitalsSample, message string, ts time.Time) ProximityAlert {
	return ProximityAlert{
		Type:        EventProximityAlert,
		PatientID:   p.ID,
		PatientName: p.Name,
		BandID:      p.Band(),
		Vitals:      vitals,
		Message:     message,
		Timestamp:   ts,
	}
}
