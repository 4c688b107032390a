package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sampler 采样循环：按固定间隔为演示患者生成读数并走决策管线
// 真实手环数据由传感器接入路径即时处理，不经过本循环
type Sampler struct {
	interval time.Duration
	patients PatientSource
	pipeline *Pipeline
	sources  *SimulatorRegistry
	logger   *zap.Logger
}

// NewSampler 创建采样循环
func NewSampler(
	interval time.Duration,
	patients PatientSource,
	pipeline *Pipeline,
	sources *SimulatorRegistry,
	logger *zap.Logger,
) *Sampler {
	return &Sampler{
		interval: interval,
		patients: patients,
		pipeline: pipeline,
		sources:  sources,
		logger:   logger,
	}
}

// Run 运行采样循环，阻塞直到 ctx 取消
func (s *Sampler) Run(ctx context.Context) {
	s.logger.Info("sampler started",
		zap.Duration("interval", s.interval))

	// 启动即执行一个周期，入院患者不必等满一个间隔
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sampler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick 执行一个采样周期
// 单个患者的失败只记日志，不影响同周期内其他患者
func (s *Sampler) Tick(ctx context.Context) {
	patients, err := s.patients.GetActive(ctx)
	if err != nil {
		s.logger.Error("failed to load active patients", zap.Error(err))
		return
	}

	activeIDs := make(map[int]bool, len(patients))
	for _, patient := range patients {
		activeIDs[patient.ID] = true

		if !patient.DemoMode {
			continue
		}

		vitals := s.sources.For(patient).Next()
		if _, err := s.pipeline.Process(ctx, patient, vitals); err != nil {
			s.logger.Error("failed to process patient reading",
				zap.Int("patient_id", patient.ID),
				zap.String("patient_name", patient.Name),
				zap.Error(err))
		}
	}

	s.sources.Prune(activeIDs)
}
