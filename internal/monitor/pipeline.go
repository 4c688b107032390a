package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ward-monitor/internal/classifier"
	"ward-monitor/internal/hub"
	"ward-monitor/internal/models"
	"ward-monitor/internal/policy"
)

// PatientSource 在院患者查询
type PatientSource interface {
	GetActive(ctx context.Context) ([]*models.Patient, error)
}

// VitalsSink 体征日志持久化
type VitalsSink interface {
	LogSample(ctx context.Context, patientID int, sample models.VitalsSample) error
}

// AlarmSink 报警审计持久化
type AlarmSink interface {
	Log(ctx context.Context, event *models.AlarmEvent) (*models.AlarmEvent, error)
}

// ProximitySource 临近观察者查询
type ProximitySource interface {
	NearbyObservers(bandID string) []string
}

// Broadcaster 实时分发
type Broadcaster interface {
	BroadcastDashboards(event interface{}) int
	BroadcastObservers(event interface{}) int
	SendObserver(sessionID string, event interface{}) bool
}

// RealtimeCache 实时快照缓存
type RealtimeCache interface {
	SetRealtime(ctx context.Context, snapshot *RealtimeSnapshot) error
	SetActiveAlarm(ctx context.Context, bandID string, event *models.AlarmEvent) error
}

// Pipeline 单次读数的完整决策链：
// 临近查询 → 特征构建 → 风险分类 → 策略评估 → 持久化 → 缓存 → 分发
// 采样循环与传感器接入共用同一条链
type Pipeline struct {
	classifiers *classifier.WardClassifiers
	tracker     ProximitySource
	vitals      VitalsSink
	alarms      AlarmSink
	cache       RealtimeCache
	hub         Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewPipeline 创建决策管线
func NewPipeline(
	classifiers *classifier.WardClassifiers,
	tracker ProximitySource,
	vitals VitalsSink,
	alarms AlarmSink,
	cache RealtimeCache,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		classifiers: classifiers,
		tracker:     tracker,
		vitals:      vitals,
		alarms:      alarms,
		cache:       cache,
		hub:         broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// Process 处理一次患者读数，返回本次决策
// 持久化、缓存、分发失败只记日志，决策本身不受影响
func (p *Pipeline) Process(ctx context.Context, patient *models.Patient, vitals models.VitalsSample) (*models.AlarmDecision, error) {
	bandID := patient.Band()
	if bandID == "" {
		return nil, fmt.Errorf("patient %d has no band assigned", patient.ID)
	}
	if vitals.Timestamp.IsZero() {
		vitals.Timestamp = p.now()
	}

	nearby := p.tracker.NearbyObservers(bandID)

	prediction, err := p.classify(ctx, patient, vitals, len(nearby) > 0)
	if err != nil {
		return nil, err
	}

	decision := policy.Evaluate(patient.WardType, vitals, prediction, nearby)

	// 体征日志：分类结果不影响记录
	if err := p.vitals.LogSample(ctx, patient.ID, vitals); err != nil {
		p.logger.Error("failed to persist vital log",
			zap.Int("patient_id", patient.ID), zap.Error(err))
	}

	event := &models.AlarmEvent{
		PatientID:          patient.ID,
		Vitals:             vitals,
		AlarmStatus:        decision.Action,
		ProximityAlertSent: decision.RouteToNurse,
		NurseInProximity:   len(nearby) > 0,
	}
	if _, err := p.alarms.Log(ctx, event); err != nil {
		p.logger.Error("failed to persist alarm event",
			zap.Int("patient_id", patient.ID), zap.Error(err))
	}

	p.updateCache(ctx, patient, vitals, decision)
	p.publish(patient, vitals, decision)

	return &decision, nil
}

// classify 按病区选择分类器
// 未知病区跳过分类按风险处理，策略层会直接升级到看板
func (p *Pipeline) classify(ctx context.Context, patient *models.Patient, vitals models.VitalsSample, nurseNearby bool) (int, error) {
	if !patient.WardType.Known() {
		p.logger.Warn("unknown ward type, treating reading as risk",
			zap.Int("patient_id", patient.ID),
			zap.String("ward_type", string(patient.WardType)))
		return 1, nil
	}

	features, err := classifier.FeatureVector(vitals, patient.WardType, nurseNearby)
	if err != nil {
		return 0, fmt.Errorf("failed to build feature vector: %w", err)
	}

	clf, err := p.classifiers.ForWard(patient.WardType)
	if err != nil {
		return 0, err
	}

	prediction, err := clf.Classify(ctx, features)
	if err != nil {
		return 0, fmt.Errorf("classification failed: %w", err)
	}
	return prediction, nil
}

func (p *Pipeline) updateCache(ctx context.Context, patient *models.Patient, vitals models.VitalsSample, decision models.AlarmDecision) {
	snapshot := &RealtimeSnapshot{
		PatientID:   patient.ID,
		PatientName: patient.Name,
		WardType:    string(patient.WardType),
		BandID:      patient.Band(),
		Vitals:      vitals,
		AlarmActive: decision.AlarmActive,
		UpdatedAt:   vitals.Timestamp,
	}
	if err := p.cache.SetRealtime(ctx, snapshot); err != nil {
		p.logger.Error("failed to update realtime cache",
			zap.String("band_id", patient.Band()), zap.Error(err))
	}

	if decision.AlarmActive {
		event := &models.AlarmEvent{
			PatientID:          patient.ID,
			Vitals:             vitals,
			AlarmStatus:        decision.Action,
			ProximityAlertSent: decision.RouteToNurse,
			NurseInProximity:   len(decision.NurseSessions) > 0,
			Timestamp:          vitals.Timestamp,
		}
		if err := p.cache.SetActiveAlarm(ctx, patient.Band(), event); err != nil {
			p.logger.Error("failed to update alarm cache",
				zap.String("band_id", patient.Band()), zap.Error(err))
		}
	}
}

func (p *Pipeline) publish(patient *models.Patient, vitals models.VitalsSample, decision models.AlarmDecision) {
	ts := vitals.Timestamp

	// 体征更新无条件推送，看板据此刷新趋势
	p.hub.BroadcastDashboards(hub.NewVitalSignsUpdate(patient, vitals, decision.AlarmActive, ts))

	if decision.AlarmActive {
		// 活动报警一律上大屏，即使同时有临近护士被定向通知
		alarm := hub.NewAlarmTriggered(patient, vitals, decision.Message, ts)
		p.hub.BroadcastDashboards(alarm)

		// 重症病区升级报警同时通知全部护士终端
		if decision.RouteToDashboard &&
			(patient.WardType == models.WardCritical || !patient.WardType.Known()) {
			p.hub.BroadcastObservers(alarm)
		}

		p.logger.Warn("alarm triggered",
			zap.Int("patient_id", patient.ID),
			zap.String("ward_type", string(patient.WardType)),
			zap.String("action", string(decision.Action)),
			zap.String("message", decision.Message))
	}

	if decision.RouteToNurse {
		alert := hub.NewProximityAlert(patient, vitals, decision.Message, ts)
		for _, sessionID := range decision.NurseSessions {
			if !p.hub.SendObserver(sessionID, alert) {
				p.logger.Debug("proximity alert skipped, observer not connected",
					zap.String("session_id", sessionID))
			}
		}

		p.logger.Info("proximity alert",
			zap.Int("patient_id", patient.ID),
			zap.Strings("nurse_sessions", decision.NurseSessions))
	}
}
