package classifier

import (
	"fmt"

	"ward-monitor/internal/models"
)

// 特征向量固定顺序（与离线训练时的列顺序一致，不可调整）
var (
	generalFeatureNames = []string{
		"BP_sys", "BP_dia", "HR", "O2", "Temp", "nurse_nearby", "Glucose",
	}
	criticalFeatureNames = []string{
		"BP_sys", "BP_dia", "HR", "O2", "Temp", "nurse_nearby", "ECG", "NeurologicalScore",
	}
)

// 手环不采集的 CRITICAL 病区特征的默认值
const (
	defaultECG        = 0.0
	defaultNeuroScore = 15.0
)

// FeatureNames 返回病区类型对应的特征名称（固定顺序）
func FeatureNames(ward models.WardType) ([]string, error) {
	switch ward {
	case models.WardGeneral:
		return generalFeatureNames, nil
	case models.WardCritical:
		return criticalFeatureNames, nil
	default:
		return nil, fmt.Errorf("no feature schema for ward type: %s", ward)
	}
}

// FeatureVector 将体征采样按病区类型转换为特征向量
// 缺失体征按训练时的填充值补齐
func FeatureVector(vitals models.VitalsSample, ward models.WardType, nurseNearby bool) ([]float64, error) {
	nearby := 0.0
	if nurseNearby {
		nearby = 1.0
	}

	base := []float64{
		vitals.BPSystolicOr(models.DefaultBPSystolic),
		vitals.BPDiastolicOr(models.DefaultBPDiastolic),
		vitals.HeartRateOr(models.DefaultHeartRate),
		vitals.SpO2Or(models.DefaultSpO2),
		vitals.TemperatureOr(models.DefaultTemperature),
		nearby,
	}

	switch ward {
	case models.WardGeneral:
		return append(base, vitals.GlucoseOr(models.DefaultGlucose)), nil
	case models.WardCritical:
		return append(base, defaultECG, defaultNeuroScore), nil
	default:
		return nil, fmt.Errorf("no feature schema for ward type: %s", ward)
	}
}
