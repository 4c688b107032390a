package models

import (
	"time"
)

// 缺失体征的默认值（与分类器训练时使用的填充值保持一致）
const (
	DefaultHeartRate   = 75.0
	DefaultSpO2        = 98.0
	DefaultTemperature = 36.5
	DefaultBPSystolic  = 120.0
	DefaultBPDiastolic = 80.0
	DefaultRespRate    = 16.0
	DefaultGlucose     = 100.0
)

// VitalsSample 一次体征采样（固定字段，缺失项为 nil 并按默认值参与特征构建）
// 创建后不再修改；由采样循环持久化后即丢弃
type VitalsSample struct {
	HeartRate   *float64  `json:"HR,omitempty"`
	SpO2        *float64  `json:"SpO2,omitempty"`
	Temperature *float64  `json:"Temp,omitempty"`
	BPSystolic  *float64  `json:"BP_sys,omitempty"`
	BPDiastolic *float64  `json:"BP_dia,omitempty"`
	RespRate    *float64  `json:"RR,omitempty"`
	Glucose     *float64  `json:"Glucose,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// HeartRateOr 带默认值读取心率
func (v *VitalsSample) HeartRateOr(def float64) float64 {
	if v.HeartRate != nil {
		return *v.HeartRate
	}
	return def
}

// SpO2Or 带默认值读取血氧
func (v *VitalsSample) SpO2Or(def float64) float64 {
	if v.SpO2 != nil {
		return *v.SpO2
	}
	return def
}

// TemperatureOr 带默认值读取体温
func (v *VitalsSample) TemperatureOr(def float64) float64 {
	if v.Temperature != nil {
		return *v.Temperature
	}
	return def
}

// BPSystolicOr 带默认值读取收缩压
func (v *VitalsSample) BPSystolicOr(def float64) float64 {
	if v.BPSystolic != nil {
		return *v.BPSystolic
	}
	return def
}

// BPDiastolicOr 带默认值读取舒张压
func (v *VitalsSample) BPDiastolicOr(def float64) float64 {
	if v.BPDiastolic != nil {
		return *v.BPDiastolic
	}
	return def
}

// RespRateOr 带默认值读取呼吸率
func (v *VitalsSample) RespRateOr(def float64) float64 {
	if v.RespRate != nil {
		return *v.RespRate
	}
	return def
}

// GlucoseOr 带默认值读取血糖
func (v *VitalsSample) GlucoseOr(def float64) float64 {
	if v.Glucose != nil {
		return *v.Glucose
	}
	return def
}

// ClassificationResult 二分类结果（0=安全，1=风险），随特征向量一起传递
// 无独立生命周期，由策略引擎消费一次后丢弃
type ClassificationResult struct {
	Prediction int       `json:"prediction"`
	Features   []float64 `json:"features"`
}

// VitalLog 体征日志记录（对应 vital_logs 表）
type VitalLog struct {
	ID        int64        `json:"id" db:"id"`
	PatientID int          `json:"patient_id" db:"patient_id"`
	Sample    VitalsSample `json:"vitals"`
	Timestamp time.Time    `json:"timestamp" db:"timestamp"`
}

// Float64Ptr 构建可选体征值
func Float64Ptr(v float64) *float64 {
	return &v
}
