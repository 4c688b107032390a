package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
)

func newTestCache(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Monitor.Cache.RealtimeKeyPrefix = "ward:band:"
	cfg.Monitor.Cache.RealtimeSuffix = ":realtime"
	cfg.Monitor.Cache.AlarmSuffix = ":alarms"
	cfg.Monitor.Cache.AlarmTTL = 30

	return NewCacheManager(cfg, client, zap.NewNop()), mr
}

func TestCacheManager_RealtimeRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	snapshot := &RealtimeSnapshot{
		PatientID:   7,
		PatientName: "John Doe",
		WardType:    "GENERAL",
		BandID:      "BAND_01",
		Vitals: models.VitalsSample{
			HeartRate: models.Float64Ptr(82.5),
			Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		},
		AlarmActive: false,
		UpdatedAt:   time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, cache.SetRealtime(ctx, snapshot))

	got, err := cache.GetRealtime(ctx, "BAND_01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 7, got.PatientID)
	assert.Equal(t, 82.5, got.Vitals.HeartRateOr(0))
}

func TestCacheManager_RealtimeMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	got, err := cache.GetRealtime(context.Background(), "BAND_99")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheManager_AlarmTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	event := &models.AlarmEvent{
		PatientID:   7,
		Vitals:      models.VitalsSample{HeartRate: models.Float64Ptr(142.0)},
		AlarmStatus: models.ActionDashboardAlert,
	}
	require.NoError(t, cache.SetActiveAlarm(ctx, "BAND_01", event))

	got, err := cache.GetActiveAlarm(ctx, "BAND_01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ActionDashboardAlert, got.AlarmStatus)

	// 超过 TTL 后报警快照自动消失
	mr.FastForward(31 * time.Second)

	got, err = cache.GetActiveAlarm(ctx, "BAND_01")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheManager_ClearBand(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetRealtime(ctx, &RealtimeSnapshot{BandID: "BAND_01"}))
	require.NoError(t, cache.SetActiveAlarm(ctx, "BAND_01", &models.AlarmEvent{PatientID: 7}))

	require.NoError(t, cache.ClearBand(ctx, "BAND_01"))

	snapshot, err := cache.GetRealtime(ctx, "BAND_01")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	alarm, err := cache.GetActiveAlarm(ctx, "BAND_01")
	require.NoError(t, err)
	assert.Nil(t, alarm)
}
