package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ward-monitor/internal/models"
)

// AlarmEventsRepository 报警审计数据访问接口
// 每个评估周期写入一条记录，含决策时刻的体征快照
type AlarmEventsRepository interface {
	// Log 写入审计记录，返回带 ID 的完整记录
	Log(ctx context.Context, event *models.AlarmEvent) (*models.AlarmEvent, error)
	// History 按时间倒序查询患者报警历史
	History(ctx context.Context, patientID int, limit int) ([]*models.AlarmEvent, error)
	// ListBetween 查询时间区间内的全部记录（导出用），按时间升序
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.AlarmEvent, error)
}

// PostgresAlarmEventsRepository 报警审计Repository实现
type PostgresAlarmEventsRepository struct {
	db *sql.DB
}

// NewPostgresAlarmEventsRepository 创建报警审计Repository
func NewPostgresAlarmEventsRepository(db *sql.DB) *PostgresAlarmEventsRepository {
	return &PostgresAlarmEventsRepository{db: db}
}

// Log 写入审计记录，体征快照以 JSONB 持久化
func (r *PostgresAlarmEventsRepository) Log(ctx context.Context, event *models.AlarmEvent) (*models.AlarmEvent, error) {
	vitalsJSON, err := json.Marshal(event.Vitals)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vitals snapshot: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO alarm_events (patient_id, vitals, alarm_status, proximity_alert_sent, nurse_in_proximity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`,
		event.PatientID, vitalsJSON, string(event.AlarmStatus),
		event.ProximityAlertSent, event.NurseInProximity,
	).Scan(&event.ID, &event.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alarm event: %w", err)
	}
	return event, nil
}

// History 按时间倒序查询患者报警历史
func (r *PostgresAlarmEventsRepository) History(ctx context.Context, patientID int, limit int) ([]*models.AlarmEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_id, vitals, alarm_status, proximity_alert_sent, nurse_in_proximity, timestamp
		FROM alarm_events
		WHERE patient_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarm events: %w", err)
	}
	defer rows.Close()

	return collectAlarmEvents(rows)
}

// ListBetween 查询时间区间内的全部记录，按时间升序
func (r *PostgresAlarmEventsRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.AlarmEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_id, vitals, alarm_status, proximity_alert_sent, nurse_in_proximity, timestamp
		FROM alarm_events
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarm events: %w", err)
	}
	defer rows.Close()

	return collectAlarmEvents(rows)
}

func collectAlarmEvents(rows *sql.Rows) ([]*models.AlarmEvent, error) {
	var events []*models.AlarmEvent
	for rows.Next() {
		var event models.AlarmEvent
		var vitalsJSON []byte
		var status string
		err := rows.Scan(&event.ID, &event.PatientID, &vitalsJSON, &status,
			&event.ProximityAlertSent, &event.NurseInProximity, &event.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm event: %w", err)
		}
		if err := json.Unmarshal(vitalsJSON, &event.Vitals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vitals snapshot: %w", err)
		}
		event.AlarmStatus = models.AlarmAction(status)
		events = append(events, &event)
	}
	return events, rows.Err()
}
