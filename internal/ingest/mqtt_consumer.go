package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
	"ward-monitor/internal/mqtt"
)

// BandPatientSource 按手环查询在院患者
type BandPatientSource interface {
	GetActiveByBand(ctx context.Context, bandID string) (*models.Patient, error)
}

// Processor 读数决策管线
type Processor interface {
	Process(ctx context.Context, patient *models.Patient, vitals models.VitalsSample) (*models.AlarmDecision, error)
}

// Subscriber MQTT订阅能力
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 手环体征 MQTT 消费者
// 主题格式: band/{band_id}/vitals，载荷与 HTTP 传感器接口相同
type MQTTConsumer struct {
	cfg        *config.Config
	mqttClient Subscriber
	patients   BandPatientSource
	pipeline   Processor
	logger     *zap.Logger
}

// NewMQTTConsumer 创建手环数据消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient Subscriber,
	patients BandPatientSource,
	pipeline Processor,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		cfg:        cfg,
		mqttClient: mqttClient,
		patients:   patients,
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Start 订阅体征主题并阻塞至 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.cfg.Ingest.VitalsTopic, c.cfg.MQTT.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}

	c.logger.Info("MQTT ingest started",
		zap.String("topic", c.cfg.Ingest.VitalsTopic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.cfg.Ingest.VitalsTopic); err != nil {
		c.logger.Error("failed to unsubscribe from vitals topic", zap.Error(err))
	}

	c.logger.Info("MQTT ingest stopped")
	return nil
}

// HandleMessage 处理一条手环上报
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	bandID, err := parseBandID(topic)
	if err != nil {
		return err
	}

	var vitals models.VitalsSample
	if err := json.Unmarshal(payload, &vitals); err != nil {
		return fmt.Errorf("failed to unmarshal vitals payload: %w", err)
	}

	ctx := context.Background()
	patient, err := c.patients.GetActiveByBand(ctx, bandID)
	if err != nil {
		return fmt.Errorf("no active patient for band %s: %w", bandID, err)
	}

	decision, err := c.pipeline.Process(ctx, patient, vitals)
	if err != nil {
		return fmt.Errorf("failed to process band reading: %w", err)
	}

	c.logger.Debug("band reading processed",
		zap.String("band_id", bandID),
		zap.Int("patient_id", patient.ID),
		zap.String("action", string(decision.Action)))
	return nil
}

// parseBandID 从主题中提取手环ID，主题格式 band/{band_id}/vitals
func parseBandID(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "band" || parts[2] != "vitals" || parts[1] == "" {
		return "", fmt.Errorf("unexpected vitals topic format: %s", topic)
	}
	return parts[1], nil
}
