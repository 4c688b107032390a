package monitor

import (
	"sync"
	"time"

	"ward-monitor/internal/models"
	"ward-monitor/internal/simulator"
)

// SimulatorRegistry 按患者维护模拟器实例
// 场景变更时重建，出院患者的实例随在院集合收缩被剪除
type SimulatorRegistry struct {
	mu   sync.Mutex
	sims map[int]*registeredSim
	seed func() int64
}

type registeredSim struct {
	sim      *simulator.Simulator
	scenario string
}

// NewSimulatorRegistry 创建模拟器注册表
func NewSimulatorRegistry() *SimulatorRegistry {
	return &SimulatorRegistry{
		sims: make(map[int]*registeredSim),
		seed: func() int64 { return time.Now().UnixNano() },
	}
}

// For 返回患者的模拟器，不存在或场景变更时重建
func (r *SimulatorRegistry) For(patient *models.Patient) *simulator.Simulator {
	scenario := simulator.ScenarioNormal
	if patient.DemoScenario != nil && *patient.DemoScenario != "" {
		scenario = *patient.DemoScenario
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.sims[patient.ID]; ok && entry.scenario == scenario {
		return entry.sim
	}

	sim := simulator.New(patient.ID, patient.WardType, scenario, r.seed())
	r.sims[patient.ID] = &registeredSim{sim: sim, scenario: scenario}
	return sim
}

// Prune 剪除不在给定在院集合中的模拟器
func (r *SimulatorRegistry) Prune(activeIDs map[int]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.sims {
		if !activeIDs[id] {
			delete(r.sims, id)
		}
	}
}

// Size 当前实例数
func (r *SimulatorRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sims)
}
