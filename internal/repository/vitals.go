package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ward-monitor/internal/models"
)

// VitalsRepository 体征日志数据访问接口
type VitalsRepository interface {
	// LogSample 追加一条体征记录
	LogSample(ctx context.Context, patientID int, sample models.VitalsSample) error
	// History 按时间倒序查询患者体征历史
	History(ctx context.Context, patientID int, limit int) ([]*models.VitalLog, error)
	// Latest 查询患者最近一条体征记录，无记录返回 nil
	Latest(ctx context.Context, patientID int) (*models.VitalLog, error)
}

// PostgresVitalsRepository 体征日志Repository实现
type PostgresVitalsRepository struct {
	db *sql.DB
}

// NewPostgresVitalsRepository 创建体征日志Repository
func NewPostgresVitalsRepository(db *sql.DB) *PostgresVitalsRepository {
	return &PostgresVitalsRepository{db: db}
}

// LogSample 追加一条体征记录
func (r *PostgresVitalsRepository) LogSample(ctx context.Context, patientID int, sample models.VitalsSample) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vital_logs (patient_id, heart_rate, spo2, temperature,
			bp_systolic, bp_diastolic, respiratory_rate, blood_glucose, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		patientID, sample.HeartRate, sample.SpO2, sample.Temperature,
		sample.BPSystolic, sample.BPDiastolic, sample.RespRate, sample.Glucose,
		sample.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert vital log: %w", err)
	}
	return nil
}

// History 按时间倒序查询患者体征历史
func (r *PostgresVitalsRepository) History(ctx context.Context, patientID int, limit int) ([]*models.VitalLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_id, heart_rate, spo2, temperature,
			bp_systolic, bp_diastolic, respiratory_rate, blood_glucose, timestamp
		FROM vital_logs
		WHERE patient_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.VitalLog
	for rows.Next() {
		log, err := scanVitalLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vital log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// Latest 查询患者最近一条体征记录
func (r *PostgresVitalsRepository) Latest(ctx context.Context, patientID int) (*models.VitalLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, patient_id, heart_rate, spo2, temperature,
			bp_systolic, bp_diastolic, respiratory_rate, blood_glucose, timestamp
		FROM vital_logs
		WHERE patient_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`, patientID)

	log, err := scanVitalLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest vital log: %w", err)
	}
	return log, nil
}

func scanVitalLog(row rowScanner) (*models.VitalLog, error) {
	var log models.VitalLog
	err := row.Scan(&log.ID, &log.PatientID,
		&log.Sample.HeartRate, &log.Sample.SpO2, &log.Sample.Temperature,
		&log.Sample.BPSystolic, &log.Sample.BPDiastolic,
		&log.Sample.RespRate, &log.Sample.Glucose, &log.Timestamp)
	if err != nil {
		return nil, err
	}
	log.Sample.Timestamp = log.Timestamp
	return &log, nil
}
