// Package policy 实现基于病区类型的报警决策与路由
// 纯函数实现：相同输入必然得到相同决策，无内部状态、无失败路径
package policy

import (
	"fmt"
	"sort"

	"ward-monitor/internal/models"
)

// GENERAL 病区体征危急阈值
// 单项异常不升级（防报警疲劳），达到 criticalVitalThreshold 项才触发
const (
	hrCriticalHigh    = 130.0
	hrCriticalLow     = 50.0
	spo2CriticalLow   = 88.0
	tempCriticalHigh  = 39.5
	tempCriticalLow   = 35.0
	bpSysCriticalHigh = 180.0
	bpSysCriticalLow  = 90.0

	criticalVitalThreshold = 2
)

// Evaluate 主报警策略评估
//
// 路由逻辑：
//   - GENERAL + 有护士临近 + 报警 → PROXIMITY_ALERT（定向振动提醒）
//   - GENERAL + 无护士临近 + 报警 → DASHBOARD_ALERT（升级到大屏）
//   - GENERAL + 抑制 → SUPPRESS
//   - CRITICAL + 报警 → DASHBOARD_ALERT（始终，忽略临近状态）
//   - CRITICAL + 抑制 → SUPPRESS
//   - 未知病区类型 → DASHBOARD_ALERT（fail-open，不允许静默丢弃）
func Evaluate(ward models.WardType, vitals models.VitalsSample, prediction int, nearbyObservers []string) models.AlarmDecision {
	switch ward {
	case models.WardGeneral:
		if suppressGeneralAlarm(vitals, prediction) {
			return models.AlarmDecision{
				Action:           models.ActionSuppress,
				AlarmActive:      false,
				Message:          "Alarm suppressed - vitals within acceptable range for general ward",
				RouteToNurse:     false,
				RouteToDashboard: false,
				NurseSessions:    []string{},
			}
		}

		// 报警成立，按护士临近状态路由
		if len(nearbyObservers) > 0 {
			return models.AlarmDecision{
				Action:           models.ActionProximityAlert,
				AlarmActive:      true,
				Message:          "Nurse in proximity - sending vibration alert to mobile device",
				RouteToNurse:     true,
				RouteToDashboard: false,
				NurseSessions:    sortedCopy(nearbyObservers),
			}
		}
		return models.AlarmDecision{
			Action:           models.ActionDashboardAlert,
			AlarmActive:      true,
			Message:          "No nurse in proximity - escalating to dashboard",
			RouteToNurse:     false,
			RouteToDashboard: true,
			NurseSessions:    []string{},
		}

	case models.WardCritical:
		// CRITICAL 病区仅依据分类结果抑制（低容忍漏报）
		if prediction == 0 {
			return models.AlarmDecision{
				Action:           models.ActionSuppress,
				AlarmActive:      false,
				Message:          "Classifier confident vitals are safe for critical patient",
				RouteToNurse:     false,
				RouteToDashboard: false,
				NurseSessions:    []string{},
			}
		}

		// 危重患者始终升级到大屏，不只推给单个临近设备
		return models.AlarmDecision{
			Action:           models.ActionDashboardAlert,
			AlarmActive:      true,
			Message:          "Critical patient alarm - immediate dashboard escalation",
			RouteToNurse:     false,
			RouteToDashboard: true,
			NurseSessions:    []string{},
		}

	default:
		// 未知病区类型：默认升级到大屏并带告警说明
		return models.AlarmDecision{
			Action:           models.ActionDashboardAlert,
			AlarmActive:      true,
			Message:          fmt.Sprintf("Unknown ward type '%s' - defaulting to dashboard alert", ward),
			RouteToNurse:     false,
			RouteToDashboard: true,
			NurseSessions:    []string{},
		}
	}
}

// suppressGeneralAlarm GENERAL 病区的抑制判定
//
// 抑制规则：
//  1. 分类器判定安全（0）→ 始终抑制
//  2. 危急体征不足 2 项 → 抑制（单项异常不升级，防报警疲劳）
func suppressGeneralAlarm(vitals models.VitalsSample, prediction int) bool {
	if prediction == 0 {
		return true
	}

	return CriticalVitalCount(vitals) < criticalVitalThreshold
}

// CriticalVitalCount 统计处于危急区间的体征项数
// 缺失体征按正常默认值计，不计入危急项
func CriticalVitalCount(vitals models.VitalsSample) int {
	count := 0

	hr := vitals.HeartRateOr(models.DefaultHeartRate)
	if hr > hrCriticalHigh || hr < hrCriticalLow {
		count++
	}

	spo2 := vitals.SpO2Or(models.DefaultSpO2)
	if spo2 < spo2CriticalLow {
		count++
	}

	temp := vitals.TemperatureOr(models.DefaultTemperature)
	if temp > tempCriticalHigh || temp < tempCriticalLow {
		count++
	}

	bpSys := vitals.BPSystolicOr(models.DefaultBPSystolic)
	if bpSys > bpSysCriticalHigh || bpSys < bpSysCriticalLow {
		count++
	}

	return count
}

// sortedCopy 复制并排序会话列表，保证相同输入得到逐字节相同的决策
func sortedCopy(sessions []string) []string {
	out := make([]string, len(sessions))
	copy(out, sessions)
	sort.Strings(out)
	return out
}
