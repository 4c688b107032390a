package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/hub"
	"ward-monitor/internal/models"
	"ward-monitor/internal/monitor"
	"ward-monitor/internal/proximity"
	"ward-monitor/internal/repository"
)

// fakePatientsRepo 内存患者存储
type fakePatientsRepo struct {
	patients  map[int]*models.Patient
	nextID    int
	banned    map[string]bool // 被占用的手环
	createErr error
}

func newFakePatientsRepo() *fakePatientsRepo {
	return &fakePatientsRepo{
		patients: make(map[int]*models.Patient),
		nextID:   1,
		banned:   make(map[string]bool),
	}
}

func (f *fakePatientsRepo) Create(_ context.Context, req repository.CreatePatientRequest) (*models.Patient, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.banned[req.BandID] {
		return nil, repository.ErrBandOccupied
	}
	p := &models.Patient{
		ID:           f.nextID,
		Name:         req.Name,
		Age:          req.Age,
		Gender:       req.Gender,
		Problem:      req.Problem,
		WardType:     req.WardType,
		Status:       models.PatientStatusActive,
		DemoMode:     req.DemoMode,
		DemoScenario: req.DemoScenario,
		BandID:       &req.BandID,
	}
	f.patients[p.ID] = p
	f.nextID++
	f.banned[req.BandID] = true
	return p, nil
}

func (f *fakePatientsRepo) GetByID(_ context.Context, id int) (*models.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, repository.ErrPatientNotFound
	}
	return p, nil
}

func (f *fakePatientsRepo) GetActive(context.Context) ([]*models.Patient, error) {
	var out []*models.Patient
	for _, p := range f.patients {
		if p.Status == models.PatientStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatientsRepo) GetActiveByBand(_ context.Context, bandID string) (*models.Patient, error) {
	for _, p := range f.patients {
		if p.Status == models.PatientStatusActive && p.Band() == bandID {
			return p, nil
		}
	}
	return nil, repository.ErrPatientNotFound
}

func (f *fakePatientsRepo) Discharge(_ context.Context, id int) error {
	p, ok := f.patients[id]
	if !ok || p.Status != models.PatientStatusActive {
		return repository.ErrPatientNotFound
	}
	p.Status = models.PatientStatusDischarged
	delete(f.banned, p.Band())
	return nil
}

func (f *fakePatientsRepo) GetDischarged(context.Context, int) ([]*models.Patient, error) {
	var out []*models.Patient
	for _, p := range f.patients {
		if p.Status == models.PatientStatusDischarged {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatientsRepo) IsBandAvailable(_ context.Context, bandID string) (bool, error) {
	return !f.banned[bandID], nil
}

func (f *fakePatientsRepo) Statistics(context.Context) (*models.PatientStatistics, error) {
	return &models.PatientStatistics{TotalPatients: len(f.patients)}, nil
}

type fakeVitalsRepo struct {
	logs map[int][]*models.VitalLog
}

func (f *fakeVitalsRepo) LogSample(_ context.Context, patientID int, sample models.VitalsSample) error {
	if f.logs == nil {
		f.logs = make(map[int][]*models.VitalLog)
	}
	f.logs[patientID] = append(f.logs[patientID], &models.VitalLog{
		PatientID: patientID, Sample: sample, Timestamp: sample.Timestamp,
	})
	return nil
}

func (f *fakeVitalsRepo) History(_ context.Context, patientID int, _ int) ([]*models.VitalLog, error) {
	return f.logs[patientID], nil
}

func (f *fakeVitalsRepo) Latest(_ context.Context, patientID int) (*models.VitalLog, error) {
	logs := f.logs[patientID]
	if len(logs) == 0 {
		return nil, nil
	}
	return logs[len(logs)-1], nil
}

type fakeAlarmsRepo struct {
	events []*models.AlarmEvent
}

func (f *fakeAlarmsRepo) Log(_ context.Context, e *models.AlarmEvent) (*models.AlarmEvent, error) {
	e.ID = int64(len(f.events) + 1)
	f.events = append(f.events, e)
	return e, nil
}

func (f *fakeAlarmsRepo) History(_ context.Context, patientID int, _ int) ([]*models.AlarmEvent, error) {
	var out []*models.AlarmEvent
	for _, e := range f.events {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAlarmsRepo) ListBetween(context.Context, time.Time, time.Time) ([]*models.AlarmEvent, error) {
	return f.events, nil
}

type fakePipeline struct {
	decision models.AlarmDecision
	err      error
	calls    int
}

func (f *fakePipeline) Process(context.Context, *models.Patient, models.VitalsSample) (*models.AlarmDecision, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &f.decision, nil
}

type testEnv struct {
	server   *httptest.Server
	patients *fakePatientsRepo
	vitals   *fakeVitalsRepo
	alarms   *fakeAlarmsRepo
	pipeline *fakePipeline
	tracker  *proximity.Tracker
	hub      *hub.Hub
	cache    *monitor.CacheManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Monitor.DefaultBandID = "BAND_01"
	cfg.Monitor.Cache.RealtimeKeyPrefix = "ward:band:"
	cfg.Monitor.Cache.RealtimeSuffix = ":realtime"
	cfg.Monitor.Cache.AlarmSuffix = ":alarms"
	cfg.Monitor.Cache.AlarmTTL = 30

	env := &testEnv{
		patients: newFakePatientsRepo(),
		vitals:   &fakeVitalsRepo{},
		alarms:   &fakeAlarmsRepo{},
		pipeline: &fakePipeline{decision: models.AlarmDecision{Action: models.ActionSuppress}},
		tracker:  proximity.NewTracker(10*time.Second, logger),
		hub:      hub.NewHub(logger),
		cache:    monitor.NewCacheManager(cfg, client, logger),
	}

	router := NewRouter(logger)
	router.RegisterRoutes(&Handlers{
		Patients: NewPatientHandler(cfg, env.patients, env.vitals, env.alarms, env.cache, logger),
		Nurses:   NewNurseHandler(env.tracker, logger),
		Sensors:  NewSensorHandler(cfg, env.patients, env.pipeline, logger),
		WS:       NewWSHandler(env.hub, env.tracker, logger),
		Export:   NewAlarmExportHandler(env.alarms, logger),
	})

	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeResult[T any](t *testing.T, resp *http.Response) Result[T] {
	t.Helper()
	defer resp.Body.Close()
	var result Result[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestAdmitPatient(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "John Doe", Age: 54, Problem: "Post-operative care",
		PatientType: "GENERAL", DemoMode: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeResult[*models.Patient](t, resp)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, "John Doe", result.Result.Name)
	// 未指定手环时使用默认手环
	assert.Equal(t, "BAND_01", result.Result.Band())
}

func TestAdmitPatient_Validation(t *testing.T) {
	env := newTestEnv(t)

	// 缺少必填字段
	resp := env.postJSON(t, "/api/patient/admit", AdmitRequest{Name: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// 未知病区类型
	resp = env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "x", Age: 30, Problem: "y", PatientType: "PEDIATRIC",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// 非法演示场景
	bad := "PANIC"
	resp = env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "x", Age: 30, Problem: "y", PatientType: "GENERAL", DemoScenario: &bad,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAdmitPatient_BandConflict(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "First", Age: 40, Problem: "a", PatientType: "GENERAL",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "Second", Age: 41, Problem: "b", PatientType: "GENERAL",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestDischargePatient(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "John Doe", Age: 54, Problem: "a", PatientType: "GENERAL",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/patient/discharge/1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 手环随出院释放，可再次入院
	resp = env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "Next", Age: 60, Problem: "b", PatientType: "CRITICAL",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 未知患者
	resp = env.postJSON(t, "/api/patient/discharge/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetPatientRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "John Doe", Age: 54, Problem: "a", PatientType: "GENERAL",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/patient/1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeResult[*models.Patient](t, resp)
	assert.Equal(t, "John Doe", result.Result.Name)

	resp = env.get(t, "/api/patient/99")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/patient/abc")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/patient/1/alarm-history")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/patient/1/vitals")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/patients/statistics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestLatestVitals_CacheThenFallback(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "John Doe", Age: 54, Problem: "a", PatientType: "GENERAL",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 无缓存无日志
	resp = env.get(t, "/api/patient/1/vitals/latest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// 写入数据库日志后回退命中
	ts := time.Now().UTC()
	require.NoError(t, env.vitals.LogSample(context.Background(), 1, models.VitalsSample{
		HeartRate: models.Float64Ptr(80), Timestamp: ts,
	}))
	resp = env.get(t, "/api/patient/1/vitals/latest")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 实时缓存优先
	require.NoError(t, env.cache.SetRealtime(context.Background(), &monitor.RealtimeSnapshot{
		PatientID: 1, BandID: "BAND_01",
		Vitals:    models.VitalsSample{HeartRate: models.Float64Ptr(91)},
		UpdatedAt: ts,
	}))
	resp = env.get(t, "/api/patient/1/vitals/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeResult[monitor.RealtimeSnapshot](t, resp)
	assert.Equal(t, 91.0, result.Result.Vitals.HeartRateOr(0))
}

func TestNurseEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/api/nurse/register", RegisterRequest{
		SessionID: "NURSE_01", DeviceInfo: "iPhone 14",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/nurse/proximity", ProximityRequest{
		SessionID: "NURSE_01", BLEDevices: []string{"BAND_01"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.True(t, env.tracker.IsInRange("BAND_01"))

	resp = env.get(t, "/api/nurse/status/NURSE_01")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeResult[*models.ObserverSession](t, resp)
	assert.Equal(t, []string{"BAND_01"}, result.Result.NearbyBands)

	resp = env.get(t, "/api/nurse/status/NURSE_99")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// 缺少 session_id
	resp = env.postJSON(t, "/api/nurse/register", RegisterRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSensorData(t *testing.T) {
	env := newTestEnv(t)

	// 手环未绑定
	resp := env.postJSON(t, "/api/sensor-data", map[string]any{"HR": 82.5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	admit := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "John Doe", Age: 54, Problem: "a", PatientType: "GENERAL",
	})
	require.Equal(t, http.StatusOK, admit.StatusCode)
	admit.Body.Close()

	resp = env.postJSON(t, "/api/sensor-data", map[string]any{"HR": 82.5, "SpO2": 97})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 1, env.pipeline.calls)

	// 分类服务不可用
	env.pipeline.err = errors.New("inference service unavailable")
	resp = env.postJSON(t, "/api/sensor-data", map[string]any{"HR": 82.5})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestSimulateVitals(t *testing.T) {
	env := newTestEnv(t)

	admit := env.postJSON(t, "/api/patient/admit", AdmitRequest{
		Name: "John Doe", Age: 54, Problem: "a", PatientType: "GENERAL", DemoMode: true,
	})
	require.Equal(t, http.StatusOK, admit.StatusCode)
	admit.Body.Close()

	resp := env.postJSON(t, "/api/patient/1/vitals/simulate?scenario=CRITICAL_EMERGENCY", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 1, env.pipeline.calls)

	resp = env.postJSON(t, "/api/patient/1/vitals/simulate?scenario=PANIC", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/patient/99/vitals/simulate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/patient/1/vitals/simulate")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestAlarmExport(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.alarms.Log(context.Background(), &models.AlarmEvent{
		PatientID:   7,
		Vitals:      models.VitalsSample{HeartRate: models.Float64Ptr(142)},
		AlarmStatus: models.ActionDashboardAlert,
		Timestamp:   time.Now().UTC(),
	})
	require.NoError(t, err)

	resp := env.get(t, "/api/alarms/export?from=2025-06-01&to=2025-06-02")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "alarm_events_")

	// 非法日期
	resp = env.get(t, "/api/alarms/export?from=junk")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/patient/admit")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	resp = env.postJSON(t, "/api/patients/statistics", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
