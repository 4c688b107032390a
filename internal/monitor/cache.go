package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
)

// RealtimeSnapshot 手环最新体征快照，供看板和状态接口低延迟读取
type RealtimeSnapshot struct {
	PatientID   int                 `json:"patient_id"`
	PatientName string              `json:"patient_name"`
	WardType    string              `json:"ward_type"`
	BandID      string              `json:"band_id"`
	Vitals      models.VitalsSample `json:"vitals"`
	AlarmActive bool                `json:"alarm_active"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// CacheManager Redis 缓存管理器
// 实时快照无 TTL 随采样覆盖，报警快照短 TTL 自动过期
type CacheManager struct {
	cfg         *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		cfg:         cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) realtimeKey(bandID string) string {
	return fmt.Sprintf("%s%s%s",
		c.cfg.Monitor.Cache.RealtimeKeyPrefix, bandID, c.cfg.Monitor.Cache.RealtimeSuffix)
}

func (c *CacheManager) alarmKey(bandID string) string {
	return fmt.Sprintf("%s%s%s",
		c.cfg.Monitor.Cache.RealtimeKeyPrefix, bandID, c.cfg.Monitor.Cache.AlarmSuffix)
}

// SetRealtime 写入实时体征快照
func (c *CacheManager) SetRealtime(ctx context.Context, snapshot *RealtimeSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime snapshot: %w", err)
	}

	if err := c.redisClient.Set(ctx, c.realtimeKey(snapshot.BandID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}
	return nil
}

// GetRealtime 读取实时体征快照，缓存未命中返回 nil
func (c *CacheManager) GetRealtime(ctx context.Context, bandID string) (*RealtimeSnapshot, error) {
	val, err := c.redisClient.Get(ctx, c.realtimeKey(bandID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get realtime cache: %w", err)
	}

	var snapshot RealtimeSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime snapshot: %w", err)
	}
	return &snapshot, nil
}

// SetActiveAlarm 写入活动报警快照（带 TTL，报警平息后自动消失）
func (c *CacheManager) SetActiveAlarm(ctx context.Context, bandID string, event *models.AlarmEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm snapshot: %w", err)
	}

	ttl := time.Duration(c.cfg.Monitor.Cache.AlarmTTL) * time.Second
	if err := c.redisClient.Set(ctx, c.alarmKey(bandID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set alarm cache: %w", err)
	}
	return nil
}

// GetActiveAlarm 读取活动报警快照，无活动报警返回 nil
func (c *CacheManager) GetActiveAlarm(ctx context.Context, bandID string) (*models.AlarmEvent, error) {
	val, err := c.redisClient.Get(ctx, c.alarmKey(bandID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alarm cache: %w", err)
	}

	var event models.AlarmEvent
	if err := json.Unmarshal([]byte(val), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alarm snapshot: %w", err)
	}
	return &event, nil
}

// ClearBand 出院时清理手环的全部缓存键
func (c *CacheManager) ClearBand(ctx context.Context, bandID string) error {
	if err := c.redisClient.Del(ctx, c.realtimeKey(bandID), c.alarmKey(bandID)).Err(); err != nil {
		return fmt.Errorf("failed to clear band cache: %w", err)
	}
	return nil
}
