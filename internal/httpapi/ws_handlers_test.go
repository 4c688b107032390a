package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ward-monitor/internal/hub"
	"ward-monitor/internal/models"
)

func wsURL(httpURL, path string) string {
	return strings.Replace(httpURL, "http://", "ws://", 1) + path
}

func TestDashboardWebSocket(t *testing.T) {
	env := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// 等待连接完成注册
	require.Eventually(t, func() bool {
		return env.hub.DashboardCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	band := "BAND_01"
	patient := &models.Patient{ID: 1, Name: "John Doe", WardType: models.WardGeneral, BandID: &band}
	sample := models.VitalsSample{HeartRate: models.Float64Ptr(82), Timestamp: time.Now().UTC()}
	delivered := env.hub.BroadcastDashboards(hub.NewVitalSignsUpdate(patient, sample, false, sample.Timestamp))
	assert.Equal(t, 1, delivered)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg hub.VitalSignsUpdate
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, hub.EventVitalSignsUpdate, msg.Type)
	assert.Equal(t, 1, msg.PatientID)
	assert.Equal(t, "BAND_01", msg.BandID)
}

func TestNurseWebSocket(t *testing.T) {
	env := newTestEnv(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/ws/nurse/NURSE_01"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return env.hub.ObserverCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 连接时自动注册护士会话
	assert.NotNil(t, env.tracker.Get("NURSE_01"))

	band := "BAND_01"
	patient := &models.Patient{ID: 1, Name: "John Doe", WardType: models.WardGeneral, BandID: &band}
	sample := models.VitalsSample{HeartRate: models.Float64Ptr(142), Timestamp: time.Now().UTC()}
	sent := env.hub.SendObserver("NURSE_01", hub.NewProximityAlert(patient, sample, "abnormal vitals detected", sample.Timestamp))
	assert.True(t, sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg hub.ProximityAlert
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, hub.EventProximityAlert, msg.Type)
	assert.Equal(t, 1, msg.PatientID)
}

func TestWSConnConcurrentClose(t *testing.T) {
	connCh := make(chan *wsConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- newWSConn(ws, zap.NewNop())
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, ""), nil)
	require.NoError(t, err)
	defer client.Close()

	c := <-connCh

	// 广播失败路径与 readPump 收尾可能同时关闭同一连接
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	assert.Error(t, c.Send([]byte("x")))
}

func TestNurseWebSocket_MissingSession(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/ws/nurse/"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.NotEqual(t, 101, resp.StatusCode)
}
