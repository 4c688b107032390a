package models

import (
	"time"
)

// WardType 病区类型（封闭枚举，未知值交由策略引擎的默认分支处理）
type WardType string

const (
	WardGeneral  WardType = "GENERAL"
	WardCritical WardType = "CRITICAL"
)

// ParseWardType 解析病区类型字符串
// 未识别的值原样保留，策略引擎会走 fail-open 的默认分支
func ParseWardType(s string) WardType {
	switch s {
	case string(WardGeneral):
		return WardGeneral
	case string(WardCritical):
		return WardCritical
	default:
		return WardType(s)
	}
}

// Known 是否为已知病区类型
func (w WardType) Known() bool {
	return w == WardGeneral || w == WardCritical
}

// 患者状态
const (
	PatientStatusActive     = "ACTIVE"
	PatientStatusDischarged = "DISCHARGED"
)

// Patient 监护患者（对应 patients 表）
type Patient struct {
	ID            int        `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Age           int        `json:"age" db:"age"`
	Gender        *string    `json:"gender,omitempty" db:"gender"`
	Problem       string     `json:"problem" db:"problem"`
	WardType      WardType   `json:"patient_type" db:"patient_type"`
	Status        string     `json:"status" db:"status"`
	DemoMode      bool       `json:"demo_mode" db:"demo_mode"`
	DemoScenario  *string    `json:"demo_scenario,omitempty" db:"demo_scenario"`
	AdmissionTime time.Time  `json:"admission_time" db:"admission_time"`
	DischargeTime *time.Time `json:"discharge_time,omitempty" db:"discharge_time"`

	// 手环绑定信息（来自 band_assignment 表，ACTIVE 患者才有）
	BandID     *string    `json:"band_id,omitempty" db:"band_id"`
	AssignedAt *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
}

// Band 返回绑定的手环 ID，未绑定返回空串
func (p *Patient) Band() string {
	if p.BandID == nil {
		return ""
	}
	return *p.BandID
}

// PatientStatistics 患者入出院统计
type PatientStatistics struct {
	TotalPatients      int     `json:"total_patients"`
	ActivePatients     int     `json:"active_patients"`
	DischargedPatients int     `json:"discharged_patients"`
	GeneralWard        int     `json:"general_ward"`
	CriticalWard       int     `json:"critical_ward"`
	AvgStayHours       float64 `json:"avg_stay_hours"`
}
