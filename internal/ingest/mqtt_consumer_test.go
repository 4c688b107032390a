package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ward-monitor/internal/config"
	"ward-monitor/internal/models"
	"ward-monitor/internal/repository"
)

type fakeBandSource struct {
	patient *models.Patient
}

func (f *fakeBandSource) GetActiveByBand(_ context.Context, bandID string) (*models.Patient, error) {
	if f.patient != nil && f.patient.Band() == bandID {
		return f.patient, nil
	}
	return nil, repository.ErrPatientNotFound
}

type fakeProcessor struct {
	patients []*models.Patient
	vitals   []models.VitalsSample
	decision models.AlarmDecision
	err      error
}

func (f *fakeProcessor) Process(_ context.Context, patient *models.Patient, vitals models.VitalsSample) (*models.AlarmDecision, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.patients = append(f.patients, patient)
	f.vitals = append(f.vitals, vitals)
	return &f.decision, nil
}

func newConsumer(source BandPatientSource, processor Processor) *MQTTConsumer {
	cfg := &config.Config{}
	cfg.Ingest.VitalsTopic = "band/+/vitals"
	cfg.MQTT.QoS = 1
	return NewMQTTConsumer(cfg, nil, source, processor, zap.NewNop())
}

func TestParseBandID(t *testing.T) {
	bandID, err := parseBandID("band/BAND_01/vitals")
	require.NoError(t, err)
	assert.Equal(t, "BAND_01", bandID)

	for _, topic := range []string{"band/vitals", "radar/BAND_01/data", "band//vitals", "band/BAND_01/vitals/extra"} {
		_, err := parseBandID(topic)
		assert.Error(t, err, topic)
	}
}

func TestHandleMessage(t *testing.T) {
	band := "BAND_01"
	patient := &models.Patient{
		ID: 7, Name: "John Doe", WardType: models.WardGeneral,
		Status: models.PatientStatusActive, BandID: &band,
	}
	processor := &fakeProcessor{decision: models.AlarmDecision{Action: models.ActionSuppress}}
	consumer := newConsumer(&fakeBandSource{patient: patient}, processor)

	payload := []byte(`{"HR": 82.5, "SpO2": 97.0, "BP_sys": 118}`)
	require.NoError(t, consumer.HandleMessage("band/BAND_01/vitals", payload))

	require.Len(t, processor.patients, 1)
	assert.Equal(t, 7, processor.patients[0].ID)
	assert.Equal(t, 82.5, processor.vitals[0].HeartRateOr(0))
	assert.Nil(t, processor.vitals[0].Temperature)
}

func TestHandleMessage_UnassignedBand(t *testing.T) {
	processor := &fakeProcessor{}
	consumer := newConsumer(&fakeBandSource{}, processor)

	err := consumer.HandleMessage("band/BAND_99/vitals", []byte(`{"HR": 82.5}`))
	assert.Error(t, err)
	assert.Empty(t, processor.patients)
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	band := "BAND_01"
	patient := &models.Patient{ID: 7, WardType: models.WardGeneral, BandID: &band}
	processor := &fakeProcessor{}
	consumer := newConsumer(&fakeBandSource{patient: patient}, processor)

	err := consumer.HandleMessage("band/BAND_01/vitals", []byte(`not json`))
	assert.Error(t, err)
	assert.Empty(t, processor.patients)
}
