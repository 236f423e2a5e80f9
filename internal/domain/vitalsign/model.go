package vitalsign

import (
	"time"

	"github.com/google/uuid"
)

// VitalSign is one set of bedside measurements for a patient. Every
// measurement is optional.
type VitalSign struct {
	ID                     uuid.UUID `json:"id"`
	PatientID              uuid.UUID `json:"patient_id"`
	Temperature            *float64  `json:"temperature,omitempty"`
	HeartRate              *int      `json:"heart_rate,omitempty"`
	BloodPressureSystolic  *int      `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int      `json:"blood_pressure_diastolic,omitempty"`
	RespiratoryRate        *int      `json:"respiratory_rate,omitempty"`
	OxygenSaturation       *int      `json:"oxygen_saturation,omitempty"`
	Weight                 *float64  `json:"weight,omitempty"`
	Height                 *float64  `json:"height,omitempty"`
	BloodGlucose           *float64  `json:"blood_glucose,omitempty"`
	Notes                  *string   `json:"notes,omitempty"`
	RecordedBy             string    `json:"recorded_by"`
	RecordedAt             time.Time `json:"recorded_at"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Measurements are the fields shared by create and update payloads.
type Measurements struct {
	Temperature            *float64 `json:"temperature,omitempty" validate:"omitempty,gt=0"`
	HeartRate              *int     `json:"heart_rate,omitempty" validate:"omitempty,gt=0"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic,omitempty" validate:"omitempty,gt=0"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic,omitempty" validate:"omitempty,gt=0"`
	RespiratoryRate        *int     `json:"respiratory_rate,omitempty" validate:"omitempty,gt=0"`
	OxygenSaturation       *int     `json:"oxygen_saturation,omitempty" validate:"omitempty,gt=0,lte=100"`
	Weight                 *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Height                 *float64 `json:"height,omitempty" validate:"omitempty,gt=0"`
	BloodGlucose           *float64 `json:"blood_glucose,omitempty" validate:"omitempty,gt=0"`
	Notes                  *string  `json:"notes,omitempty"`
}

type CreateInput struct {
	PatientID  string `json:"patient_id" validate:"required,uuid"`
	RecordedBy string `json:"recorded_by" validate:"required,notblank"`
	Measurements
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	RecordedBy *string `json:"recorded_by,omitempty" validate:"omitempty,notblank"`
	RecordedAt *string `json:"recorded_at,omitempty" validate:"omitempty,isodate"`
	Measurements
}

// Stats counts vital-sign records, optionally for one department.
type Stats struct {
	Department       string `json:"department,omitempty"`
	TotalVitalSigns  int    `json:"total_vital_signs"`
	RecentVitalSigns int    `json:"recent_vital_signs"`
}

// apply copies every non-nil measurement in m onto v.
func (m Measurements) apply(v *VitalSign) {
	if m.Temperature != nil {
		v.Temperature = m.Temperature
	}
	if m.HeartRate != nil {
		v.HeartRate = m.HeartRate
	}
	if m.BloodPressureSystolic != nil {
		v.BloodPressureSystolic = m.BloodPressureSystolic
	}
	if m.BloodPressureDiastolic != nil {
		v.BloodPressureDiastolic = m.BloodPressureDiastolic
	}
	if m.RespiratoryRate != nil {
		v.RespiratoryRate = m.RespiratoryRate
	}
	if m.OxygenSaturation != nil {
		v.OxygenSaturation = m.OxygenSaturation
	}
	if m.Weight != nil {
		v.Weight = m.Weight
	}
	if m.Height != nil {
		v.Height = m.Height
	}
	if m.BloodGlucose != nil {
		v.BloodGlucose = m.BloodGlucose
	}
	if m.Notes != nil {
		v.Notes = m.Notes
	}
}
