package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ward-monitor/internal/models"
)

// PatientsRepository 患者与手环绑定数据访问接口
type PatientsRepository interface {
	// Create 创建患者并在同一事务内绑定手环
	Create(ctx context.Context, req CreatePatientRequest) (*models.Patient, error)
	// GetByID 按 ID 查询患者及其未释放的手环绑定
	GetByID(ctx context.Context, patientID int) (*models.Patient, error)
	// GetActive 查询全部在院患者及其手环绑定
	GetActive(ctx context.Context) ([]*models.Patient, error)
	// GetActiveByBand 查询绑定指定手环的在院患者
	GetActiveByBand(ctx context.Context, bandID string) (*models.Patient, error)
	// Discharge 出院：更新患者状态并释放手环
	Discharge(ctx context.Context, patientID int) error
	// GetDischarged 查询出院历史，limit<=0 时返回全部
	GetDischarged(ctx context.Context, limit int) ([]*models.Patient, error)
	// IsBandAvailable 手环是否空闲（无未释放的绑定）
	IsBandAvailable(ctx context.Context, bandID string) (bool, error)
	// Statistics 入出院统计
	Statistics(ctx context.Context) (*models.PatientStatistics, error)
}

// CreatePatientRequest 创建患者请求
type CreatePatientRequest struct {
	Name         string
	Age          int
	Gender       *string
	Problem      string
	WardType     models.WardType
	DemoMode     bool
	DemoScenario *string
	BandID       string
}

// ErrPatientNotFound 患者不存在或已出院
var ErrPatientNotFound = fmt.Errorf("patient not found")

// ErrBandOccupied 手环已绑定在院患者
var ErrBandOccupied = fmt.Errorf("band already assigned to an active patient")

// PostgresPatientsRepository 患者Repository实现
type PostgresPatientsRepository struct {
	db *sql.DB
}

// NewPostgresPatientsRepository 创建患者Repository
func NewPostgresPatientsRepository(db *sql.DB) *PostgresPatientsRepository {
	return &PostgresPatientsRepository{db: db}
}

const patientColumns = `id, name, age, gender, problem, patient_type, status,
	demo_mode, demo_scenario, admission_time, discharge_time`

// Create 创建患者并绑定手环（单事务）
func (r *PostgresPatientsRepository) Create(ctx context.Context, req CreatePatientRequest) (*models.Patient, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if req.BandID == "" {
		return nil, fmt.Errorf("band id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 手环占用检查在事务内完成，避免并发入院竞态
	var occupied int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM band_assignment
		WHERE band_id = $1 AND released_at IS NULL`, req.BandID).Scan(&occupied)
	if err != nil {
		return nil, fmt.Errorf("failed to check band availability: %w", err)
	}
	if occupied > 0 {
		return nil, ErrBandOccupied
	}

	patient := &models.Patient{
		Name:         req.Name,
		Age:          req.Age,
		Gender:       req.Gender,
		Problem:      req.Problem,
		WardType:     req.WardType,
		Status:       models.PatientStatusActive,
		DemoMode:     req.DemoMode,
		DemoScenario: req.DemoScenario,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO patients (name, age, gender, problem, patient_type, demo_mode, demo_scenario)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, admission_time`,
		req.Name, req.Age, req.Gender, req.Problem, string(req.WardType),
		req.DemoMode, req.DemoScenario,
	).Scan(&patient.ID, &patient.AdmissionTime)
	if err != nil {
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO band_assignment (band_id, patient_id)
		VALUES ($1, $2)
		RETURNING assigned_at`,
		req.BandID, patient.ID,
	).Scan(&patient.AssignedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to assign band: %w", err)
	}
	patient.BandID = &req.BandID

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return patient, nil
}

// GetByID 按 ID 查询患者
func (r *PostgresPatientsRepository) GetByID(ctx context.Context, patientID int) (*models.Patient, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.age, p.gender, p.problem, p.patient_type, p.status,
			p.demo_mode, p.demo_scenario, p.admission_time, p.discharge_time,
			ba.band_id, ba.assigned_at
		FROM patients p
		LEFT JOIN band_assignment ba ON p.id = ba.patient_id AND ba.released_at IS NULL
		WHERE p.id = $1`, patientID)

	patient, err := scanPatientWithBand(row)
	if err == sql.ErrNoRows {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}
	return patient, nil
}

// GetActive 查询全部在院患者及其手环绑定
func (r *PostgresPatientsRepository) GetActive(ctx context.Context) ([]*models.Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.age, p.gender, p.problem, p.patient_type, p.status,
			p.demo_mode, p.demo_scenario, p.admission_time, p.discharge_time,
			ba.band_id, ba.assigned_at
		FROM patients p
		JOIN band_assignment ba ON p.id = ba.patient_id AND ba.released_at IS NULL
		WHERE p.status = 'ACTIVE'
		ORDER BY p.admission_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active patients: %w", err)
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		patient, err := scanPatientWithBand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, patient)
	}
	return patients, rows.Err()
}

// GetActiveByBand 查询绑定指定手环的在院患者
func (r *PostgresPatientsRepository) GetActiveByBand(ctx context.Context, bandID string) (*models.Patient, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.age, p.gender, p.problem, p.patient_type, p.status,
			p.demo_mode, p.demo_scenario, p.admission_time, p.discharge_time,
			ba.band_id, ba.assigned_at
		FROM patients p
		JOIN band_assignment ba ON p.id = ba.patient_id AND ba.released_at IS NULL
		WHERE ba.band_id = $1 AND p.status = 'ACTIVE'`, bandID)

	patient, err := scanPatientWithBand(row)
	if err == sql.ErrNoRows {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query patient by band: %w", err)
	}
	return patient, nil
}

// Discharge 出院并释放手环（单事务）
func (r *PostgresPatientsRepository) Discharge(ctx context.Context, patientID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE patients
		SET status = 'DISCHARGED', discharge_time = NOW()
		WHERE id = $1 AND status = 'ACTIVE'`, patientID)
	if err != nil {
		return fmt.Errorf("failed to discharge patient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPatientNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE band_assignment
		SET released_at = NOW()
		WHERE patient_id = $1 AND released_at IS NULL`, patientID)
	if err != nil {
		return fmt.Errorf("failed to release band: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDischarged 查询出院历史
func (r *PostgresPatientsRepository) GetDischarged(ctx context.Context, limit int) ([]*models.Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE status = 'DISCHARGED'
		ORDER BY discharge_time DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discharged patients: %w", err)
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, patient)
	}
	return patients, rows.Err()
}

// IsBandAvailable 手环是否空闲
func (r *PostgresPatientsRepository) IsBandAvailable(ctx context.Context, bandID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM band_assignment
		WHERE band_id = $1 AND released_at IS NULL`, bandID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check band availability: %w", err)
	}
	return count == 0, nil
}

// Statistics 入出院统计（单查询聚合）
func (r *PostgresPatientsRepository) Statistics(ctx context.Context) (*models.PatientStatistics, error) {
	var stats models.PatientStatistics
	var avgStay sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*) FILTER (WHERE status = 'DISCHARGED'),
			COUNT(*) FILTER (WHERE patient_type = 'GENERAL'),
			COUNT(*) FILTER (WHERE patient_type = 'CRITICAL'),
			AVG(EXTRACT(EPOCH FROM (discharge_time - admission_time))/3600)
				FILTER (WHERE status = 'DISCHARGED' AND discharge_time IS NOT NULL)
		FROM patients`).Scan(
		&stats.TotalPatients,
		&stats.ActivePatients,
		&stats.DischargedPatients,
		&stats.GeneralWard,
		&stats.CriticalWard,
		&avgStay,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query patient statistics: %w", err)
	}
	if avgStay.Valid {
		stats.AvgStayHours = avgStay.Float64
	}
	return &stats, nil
}

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*models.Patient, error) {
	var p models.Patient
	var wardType string
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Problem, &wardType,
		&p.Status, &p.DemoMode, &p.DemoScenario, &p.AdmissionTime, &p.DischargeTime)
	if err != nil {
		return nil, err
	}
	p.WardType = models.ParseWardType(wardType)
	return &p, nil
}

func scanPatientWithBand(row rowScanner) (*models.Patient, error) {
	var p models.Patient
	var wardType string
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Problem, &wardType,
		&p.Status, &p.DemoMode, &p.DemoScenario, &p.AdmissionTime, &p.DischargeTime,
		&p.BandID, &p.AssignedAt)
	if err != nil {
		return nil, err
	}
	p.WardType = models.ParseWardType(wardType)
	return &p, nil
}
