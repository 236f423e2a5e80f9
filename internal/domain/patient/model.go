package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relayloop/relayloop/internal/domain/vitalsign"
)

const (
	StatusActive = "Active"

	MedicationActive = "Active"
)

// Patient is the persisted patient record.
type Patient struct {
	ID                uuid.UUID  `json:"id"`
	MRN               string     `json:"mrn"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	DOB               time.Time  `json:"dob"`
	Gender            string     `json:"gender"`
	Phone             *string    `json:"phone,omitempty"`
	Email             *string    `json:"email,omitempty"`
	Address           *string    `json:"address,omitempty"`
	Insurance         *string    `json:"insurance,omitempty"`
	Department        string     `json:"department"`
	AttendingDoctor   string     `json:"attending_doctor"`
	Room              *string    `json:"room,omitempty"`
	MedicalConditions []string   `json:"medical_conditions"`
	Allergies         []string   `json:"allergies"`
	LastAdmission     *time.Time `json:"last_admission,omitempty"`
	LastVisit         *time.Time `json:"last_visit,omitempty"`
	Status            string     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Detail is a patient with its recent vital signs, medications and notes.
type Detail struct {
	*Patient
	Vitals       []*vitalsign.VitalSign `json:"vitals"`
	Medications  []*Medication          `json:"medications"`
	NotesHistory []*Note                `json:"notes_history"`
}

type Medication struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Frequency    string     `json:"frequency"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Status       string     `json:"status"`
	AddedBy      string     `json:"added_by"`
	Instructions *string    `json:"instructions,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Note struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Author    string    `json:"author"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreatePatientInput struct {
	MRN               string   `json:"mrn" validate:"required,notblank"`
	FirstName         string   `json:"first_name" validate:"required,notblank"`
	LastName          string   `json:"last_name" validate:"required,notblank"`
	DOB               string   `json:"dob" validate:"required,isodate"`
	Gender            string   `json:"gender" validate:"required,oneof=Male Female Other"`
	Department        string   `json:"department" validate:"required,notblank"`
	AttendingDoctor   string   `json:"attending_doctor" validate:"required,notblank"`
	Phone             *string  `json:"phone,omitempty"`
	Email             *string  `json:"email,omitempty" validate:"omitempty,email"`
	Address           *string  `json:"address,omitempty"`
	Insurance         *string  `json:"insurance,omitempty"`
	Room              *string  `json:"room,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
	LastAdmission     *string  `json:"last_admission,omitempty" validate:"omitempty,isodate"`
	LastVisit         *string  `json:"last_visit,omitempty" validate:"omitempty,isodate"`
	Status            *string  `json:"status,omitempty" validate:"omitempty,notblank"`
	Notes             *string  `json:"notes,omitempty"`
}

// UpdatePatientInput is a partial update. Nil fields are left unchanged;
// an empty list clears the list.
type UpdatePatientInput struct {
	MRN               *string  `json:"mrn,omitempty" validate:"omitempty,notblank"`
	FirstName         *string  `json:"first_name,omitempty" validate:"omitempty,notblank"`
	LastName          *string  `json:"last_name,omitempty" validate:"omitempty,notblank"`
	DOB               *string  `json:"dob,omitempty" validate:"omitempty,isodate"`
	Gender            *string  `json:"gender,omitempty" validate:"omitempty,oneof=Male Female Other"`
	Department        *string  `json:"department,omitempty" validate:"omitempty,notblank"`
	AttendingDoctor   *string  `json:"attending_doctor,omitempty" validate:"omitempty,notblank"`
	Phone             *string  `json:"phone,omitempty"`
	Email             *string  `json:"email,omitempty" validate:"omitempty,email"`
	Address           *string  `json:"address,omitempty"`
	Insurance         *string  `json:"insurance,omitempty"`
	Room              *string  `json:"room,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
	LastAdmission     *string  `json:"last_admission,omitempty" validate:"omitempty,isodate"`
	LastVisit         *string  `json:"last_visit,omitempty" validate:"omitempty,isodate"`
	Status            *string  `json:"status,omitempty" validate:"omitempty,notblank"`
	Notes             *string  `json:"notes,omitempty"`
}

type CreateMedicationInput struct {
	PatientID    string  `json:"patient_id" validate:"required,uuid"`
	Name         string  `json:"name" validate:"required,notblank"`
	Dosage       string  `json:"dosage" validate:"required,notblank"`
	Frequency    string  `json:"frequency" validate:"required,notblank"`
	StartDate    string  `json:"start_date" validate:"required,isodate"`
	EndDate      *string `json:"end_date,omitempty" validate:"omitempty,isodate"`
	Instructions *string `json:"instructions,omitempty"`
	AddedBy      string  `json:"added_by" validate:"required,oneof=Doctor Nurse"`
	Status       string  `json:"status,omitempty" validate:"omitempty,oneof=Active Discontinued Completed"`
}

type CreateNoteInput struct {
	PatientID string  `json:"patient_id" validate:"required,uuid"`
	Author    string  `json:"author" validate:"required,notblank"`
	Type      string  `json:"type" validate:"required,oneof=Observation Assessment Medication General"`
	Content   string  `json:"content" validate:"required,notblank"`
	Date      *string `json:"date,omitempty" validate:"omitempty,isodate"`
}

// ListFilter narrows a patient listing. Search is a case-sensitive
// substring match on first name, last name, MRN and email.
type ListFilter struct {
	Department string
	Search     string
	Limit      int
	Offset     int
}

type Stats struct {
	Department       string         `json:"department,omitempty"`
	TotalPatients    int            `json:"total_patients"`
	ActivePatients   int            `json:"active_patients"`
	RecentAdmissions int            `json:"recent_admissions"`
	ByDepartment     map[string]int `json:"by_department"`
}

// blankToNil treats whitespace-only optional strings as absent.
func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
