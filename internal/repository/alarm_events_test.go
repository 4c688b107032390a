package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ward-monitor/internal/models"
)

func TestAlarmEventsRepository_Log(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresAlarmEventsRepository(db)
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	event := &models.AlarmEvent{
		PatientID: 7,
		Vitals: models.VitalsSample{
			HeartRate: models.Float64Ptr(142.0),
			SpO2:      models.Float64Ptr(85.0),
			Timestamp: ts,
		},
		AlarmStatus:        models.ActionDashboardAlert,
		ProximityAlertSent: false,
		NurseInProximity:   false,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO alarm_events`)).
		WithArgs(7, sqlmock.AnyArg(), "DASHBOARD_ALERT", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(11), ts))

	logged, err := repo.Log(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, int64(11), logged.ID)
	assert.Equal(t, ts, logged.Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlarmEventsRepository_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresAlarmEventsRepository(db)
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	vitalsJSON, err := json.Marshal(models.VitalsSample{
		HeartRate: models.Float64Ptr(142.0),
		Timestamp: ts,
	})
	require.NoError(t, err)

	columns := []string{"id", "patient_id", "vitals", "alarm_status",
		"proximity_alert_sent", "nurse_in_proximity", "timestamp"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM alarm_events`)).
		WithArgs(7, 50).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(11), 7, vitalsJSON, "PROXIMITY_ALERT", true, true, ts))

	events, err := repo.History(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionProximityAlert, events[0].AlarmStatus)
	assert.True(t, events[0].ProximityAlertSent)
	assert.Equal(t, 142.0, events[0].Vitals.HeartRateOr(0))
}

func TestAlarmEventsRepository_ListBetween(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresAlarmEventsRepository(db)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	vitalsJSON := []byte(`{"HR":135.5,"timestamp":"2025-06-01T08:00:00Z"}`)
	columns := []string{"id", "patient_id", "vitals", "alarm_status",
		"proximity_alert_sent", "nurse_in_proximity", "timestamp"}
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE timestamp >= $1 AND timestamp < $2`)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), 7, vitalsJSON, "SUPPRESS", false, true, from.Add(8*time.Hour)).
			AddRow(int64(2), 7, vitalsJSON, "DASHBOARD_ALERT", false, false, from.Add(9*time.Hour)))

	events, err := repo.ListBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.ActionSuppress, events[0].AlarmStatus)
	assert.Equal(t, models.ActionDashboardAlert, events[1].AlarmStatus)
}
