package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"ward-monitor/internal/models"
)

// 演示场景，绑定在患者上用于注入异常体征
const (
	ScenarioNormal            = "NORMAL"
	ScenarioMildDeterioration = "MILD_DETERIORATION"
	ScenarioCriticalEmergency = "CRITICAL_EMERGENCY"
	ScenarioFalsePositive     = "FALSE_POSITIVE"
)

// 趋势状态，模拟体征随时间的连续变化
const (
	trendStable        = "stable"
	trendImproving     = "improving"
	trendDeteriorating = "deteriorating"
)

// Simulator 单个患者的体征模拟器
// 按病区基线生成读数，叠加演示场景与趋势扰动
type Simulator struct {
	mu          sync.Mutex
	patientID   int
	wardType    models.WardType
	scenario    string
	trend       string
	timeInTrend int
	trendLimit  int
	rng         *rand.Rand
	now         func() time.Time
}

// New 创建模拟器，seed 固定时输出可复现
func New(patientID int, wardType models.WardType, scenario string, seed int64) *Simulator {
	rng := rand.New(rand.NewSource(seed))
	return &Simulator{
		patientID:  patientID,
		wardType:   wardType,
		scenario:   scenario,
		trend:      trendStable,
		trendLimit: 5 + rng.Intn(11),
		rng:        rng,
		now:        time.Now,
	}
}

// Next 生成下一次读数，趋势状态在内部推进
func (s *Simulator) Next() models.VitalsSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeInTrend++
	if s.timeInTrend > s.trendLimit {
		trends := []string{trendStable, trendStable, trendImproving, trendDeteriorating}
		s.trend = trends[s.rng.Intn(len(trends))]
		s.timeInTrend = 0
		s.trendLimit = 5 + s.rng.Intn(11)
	}

	return s.generate()
}

func (s *Simulator) generate() models.VitalsSample {
	var hr, spo2, temp, bpSys, bpDia, rr, glucose float64

	// 病区基线
	if s.wardType == models.WardCritical {
		hr = s.uniform(70, 100)
		spo2 = s.uniform(92, 98)
		temp = s.uniform(36.8, 37.5)
		bpSys = s.uniform(100, 140)
		bpDia = s.uniform(65, 90)
		rr = s.uniform(14, 22)
		glucose = s.uniform(90, 150)
	} else {
		hr = s.uniform(65, 90)
		spo2 = s.uniform(95, 100)
		temp = s.uniform(36.5, 37.2)
		bpSys = s.uniform(110, 130)
		bpDia = s.uniform(70, 85)
		rr = s.uniform(12, 18)
		glucose = s.uniform(80, 120)
	}

	// 演示场景扰动
	switch s.scenario {
	case ScenarioMildDeterioration:
		hr += s.uniform(15, 25)
		spo2 -= s.uniform(2, 5)
		temp += s.uniform(0.5, 1.0)
		bpSys += s.uniform(10, 20)
	case ScenarioCriticalEmergency:
		hr += s.uniform(40, 60)
		spo2 -= s.uniform(8, 15)
		temp += s.uniform(1.5, 2.5)
		bpSys += s.uniform(30, 50)
		rr += s.uniform(8, 12)
	case ScenarioFalsePositive:
		// 贴着阈值边缘抖动，用于演示误报抑制
		hr = s.pick(59, 101)
		spo2 = s.uniform(93, 95)
		temp = s.uniform(37.3, 37.6)
		bpSys = s.pick(139, 141)
	}

	// 趋势扰动
	switch s.trend {
	case trendDeteriorating:
		hr += s.uniform(5, 15)
		spo2 -= s.uniform(1, 3)
		temp += s.uniform(0.2, 0.5)
	case trendImproving:
		hr -= s.uniform(3, 10)
		spo2 += s.uniform(1, 2)
		temp -= s.uniform(0.2, 0.4)
	}

	return models.VitalsSample{
		HeartRate:   models.Float64Ptr(round1(hr)),
		SpO2:        models.Float64Ptr(round1(spo2)),
		Temperature: models.Float64Ptr(round1(temp)),
		BPSystolic:  models.Float64Ptr(round1(bpSys)),
		BPDiastolic: models.Float64Ptr(round1(bpDia)),
		RespRate:    models.Float64Ptr(round1(rr)),
		Glucose:     models.Float64Ptr(round1(glucose)),
		Timestamp:   s.now(),
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulator) pick(a, b float64) float64 {
	if s.rng.Intn(2) == 0 {
		return a
	}
	return b
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ValidScenario 校验演示场景取值
func ValidScenario(s string) bool {
	switch s {
	case ScenarioNormal, ScenarioMildDeterioration, ScenarioCriticalEmergency, ScenarioFalsePositive:
		return true
	}
	return false
}
