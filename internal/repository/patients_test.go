package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ward-monitor/internal/models"
)

func TestPatientsRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)
	admitted := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM band_assignment`)).
		WithArgs("BAND_01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO patients`)).
		WithArgs("John Doe", 54, nil, "Post-operative care", "GENERAL", false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "admission_time"}).AddRow(7, admitted))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO band_assignment`)).
		WithArgs("BAND_01", 7).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_at"}).AddRow(admitted))
	mock.ExpectCommit()

	patient, err := repo.Create(context.Background(), CreatePatientRequest{
		Name:     "John Doe",
		Age:      54,
		Problem:  "Post-operative care",
		WardType: models.WardGeneral,
		BandID:   "BAND_01",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, patient.ID)
	assert.Equal(t, models.WardGeneral, patient.WardType)
	assert.Equal(t, "BAND_01", patient.Band())
	assert.Equal(t, models.PatientStatusActive, patient.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientsRepository_CreateBandOccupied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM band_assignment`)).
		WithArgs("BAND_01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err = repo.Create(context.Background(), CreatePatientRequest{
		Name:     "John Doe",
		Age:      54,
		Problem:  "Post-operative care",
		WardType: models.WardGeneral,
		BandID:   "BAND_01",
	})
	assert.ErrorIs(t, err, ErrBandOccupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientsRepository_CreateValidatesInput(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	_, err = repo.Create(context.Background(), CreatePatientRequest{BandID: "BAND_01"})
	assert.Error(t, err)

	_, err = repo.Create(context.Background(), CreatePatientRequest{Name: "John Doe"})
	assert.Error(t, err)
}

func TestPatientsRepository_GetActiveByBand(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)
	admitted := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	columns := []string{"id", "name", "age", "gender", "problem", "patient_type", "status",
		"demo_mode", "demo_scenario", "admission_time", "discharge_time", "band_id", "assigned_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN band_assignment ba`)).
		WithArgs("BAND_01").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(7, "John Doe", 54, nil, "Sepsis", "CRITICAL", "ACTIVE",
				false, nil, admitted, nil, "BAND_01", admitted))

	patient, err := repo.GetActiveByBand(context.Background(), "BAND_01")
	require.NoError(t, err)
	assert.Equal(t, models.WardCritical, patient.WardType)
	assert.Equal(t, "BAND_01", patient.Band())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientsRepository_GetActiveByBandNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	columns := []string{"id", "name", "age", "gender", "problem", "patient_type", "status",
		"demo_mode", "demo_scenario", "admission_time", "discharge_time", "band_id", "assigned_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN band_assignment ba`)).
		WithArgs("BAND_99").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err = repo.GetActiveByBand(context.Background(), "BAND_99")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestPatientsRepository_Discharge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE patients`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE band_assignment`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Discharge(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientsRepository_DischargeNotActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE patients`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.Discharge(context.Background(), 7)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestPatientsRepository_IsBandAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM band_assignment`)).
		WithArgs("BAND_01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	available, err := repo.IsBandAvailable(context.Background(), "BAND_01")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestPatientsRepository_Statistics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPatientsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM patients`)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "discharged", "general", "critical", "avg"}).
			AddRow(10, 3, 7, 6, 4, 42.5))

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalPatients)
	assert.Equal(t, 3, stats.ActivePatients)
	assert.Equal(t, 7, stats.DischargedPatients)
	assert.Equal(t, 6, stats.GeneralWard)
	assert.Equal(t, 4, stats.CriticalWard)
	assert.InDelta(t, 42.5, stats.AvgStayHours, 0.001)
}
