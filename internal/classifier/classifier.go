// Package classifier 封装离线训练的二分类模型
// 对外提供稳定的特征向量契约：features(vitals, ward) -> classify(vector) -> {0,1}
package classifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
)

// Classifier 二分类器接口（0=安全，1=风险）
// 单次分类失败作为错误上报，绝不静默降级为默认值
type Classifier interface {
	Classify(ctx context.Context, features []float64) (int, error)
}

// WardClassifiers 每个病区类型一个分类器
type WardClassifiers struct {
	general  Classifier
	critical Classifier
}

// ForWard 返回病区类型对应的分类器
func (w *WardClassifiers) ForWard(ward models.WardType) (Classifier, error) {
	switch ward {
	case models.WardGeneral:
		return w.general, nil
	case models.WardCritical:
		return w.critical, nil
	default:
		return nil, fmt.Errorf("no classifier for ward type: %s", ward)
	}
}

// NewWardClassifiers 从测试或自定义后端构建
func NewWardClassifiers(general, critical Classifier) *WardClassifiers {
	return &WardClassifiers{general: general, critical: critical}
}

// Build 按配置构建分类器
// 加载失败是启动阶段的致命错误，调用方应拒绝启动分类依赖的功能
func Build(cfg *config.Config, logger *zap.Logger) (*WardClassifiers, error) {
	switch cfg.Classifier.Mode {
	case "local":
		general, err := LoadLocalModel(cfg.Classifier.GeneralModelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load general ward model: %w", err)
		}
		critical, err := LoadLocalModel(cfg.Classifier.CriticalModelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load critical ward model: %w", err)
		}

		logger.Info("Local classifier models loaded",
			zap.String("general_model", cfg.Classifier.GeneralModelPath),
			zap.String("critical_model", cfg.Classifier.CriticalModelPath),
		)
		return &WardClassifiers{general: general, critical: critical}, nil

	case "remote":
		timeout := time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second
		general := NewRemoteClassifier(cfg.Classifier.RemoteBaseURL, "/predict_general", timeout, logger)
		critical := NewRemoteClassifier(cfg.Classifier.RemoteBaseURL, "/predict_critical", timeout, logger)

		// 启动时健康检查，推理服务不可达则拒绝启动
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := general.Health(ctx); err != nil {
			return nil, fmt.Errorf("classifier service health check failed: %w", err)
		}

		logger.Info("Remote classifier connected",
			zap.String("base_url", cfg.Classifier.RemoteBaseURL),
		)
		return &WardClassifiers{general: general, critical: critical}, nil

	default:
		return nil, fmt.Errorf("unknown classifier mode: %s", cfg.Classifier.Mode)
	}
}
