package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements 建表语句，服务启动时幂等执行
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		age INTEGER NOT NULL,
		gender VARCHAR(10),
		problem TEXT NOT NULL,
		patient_type VARCHAR(20) NOT NULL CHECK (patient_type IN ('GENERAL', 'CRITICAL')),
		status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'DISCHARGED')),
		demo_mode BOOLEAN DEFAULT FALSE,
		demo_scenario VARCHAR(50),
		admission_time TIMESTAMP NOT NULL DEFAULT NOW(),
		discharge_time TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS vital_logs (
		id SERIAL PRIMARY KEY,
		patient_id INTEGER NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		heart_rate FLOAT,
		spo2 FLOAT,
		temperature FLOAT,
		bp_systolic FLOAT,
		bp_diastolic FLOAT,
		respiratory_rate FLOAT,
		blood_glucose FLOAT,
		timestamp TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vital_logs_patient_time
		ON vital_logs(patient_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS band_assignment (
		id SERIAL PRIMARY KEY,
		band_id VARCHAR(50) NOT NULL,
		patient_id INTEGER NOT NULL REFERENCES patients(id),
		assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
		released_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_band_active
		ON band_assignment(band_id)
		WHERE released_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS alarm_events (
		id SERIAL PRIMARY KEY,
		patient_id INTEGER NOT NULL REFERENCES patients(id),
		vitals JSONB NOT NULL,
		alarm_status VARCHAR(50) NOT NULL,
		proximity_alert_sent BOOLEAN DEFAULT FALSE,
		nurse_in_proximity BOOLEAN DEFAULT FALSE,
		timestamp TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alarm_patient_time
		ON alarm_events(patient_id, timestamp DESC)`,
}

// InitSchema 创建缺失的表与索引
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
