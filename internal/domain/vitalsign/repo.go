package vitalsign

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *VitalSign) error
	GetByID(ctx context.Context, id uuid.UUID) (*VitalSign, error)
	Update(ctx context.Context, v *VitalSign) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByPatient returns a page of a patient's records, newest first,
	// and the patient's total record count.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSign, int, error)
	Latest(ctx context.Context, patientID uuid.UUID) (*VitalSign, error)
	// Count counts records of patients in department ("" for all) recorded
	// at or after since (zero for all time).
	Count(ctx context.Context, department string, since time.Time) (int, error)
}
