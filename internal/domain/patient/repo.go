package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns one page ordered by created_at DESC, id DESC and the
	// total number of matches.
	List(ctx context.Context, f ListFilter) ([]*Patient, int, error)
	// Stats aggregates over department ("" for all). Admissions at or
	// after admittedSince count as recent.
	Stats(ctx context.Context, department string, admittedSince time.Time) (*Stats, error)
}

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Medication, error)
}

type NoteRepository interface {
	Create(ctx context.Context, n *Note) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Note, error)
}
