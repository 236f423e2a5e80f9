package vitalsign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/internal/platform/live"
	"github.com/relayloop/relayloop/internal/platform/validation"
	"github.com/relayloop/relayloop/pkg/pagination"
)

const (
	EventRecorded = "vital_sign.recorded"
	EventUpdated  = "vital_sign.updated"
	EventDeleted  = "vital_sign.deleted"

	recentWindow = 24 * time.Hour
)

// PatientDirectory resolves the department that owns a patient. It returns
// an apperr not-found error for unknown patients.
type PatientDirectory interface {
	Department(ctx context.Context, patientID uuid.UUID) (string, error)
}

type Service struct {
	repo     Repository
	patients PatientDirectory
	validate *validation.Validator
	events   live.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, v *validation.Validator) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		validate: v,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// WithEvents makes the service publish every write to pub. Publish failures
// are logged and never fail the write.
func (s *Service) WithEvents(pub live.Publisher, logger zerolog.Logger) *Service {
	s.events = pub
	s.logger = logger
	return s
}

// authorize returns the department of patientID if scope may access it.
func (s *Service) authorize(ctx context.Context, patientID uuid.UUID, scope auth.Scope) (string, error) {
	dept, err := s.patients.Department(ctx, patientID)
	if err != nil {
		return "", apperr.Wrap("resolve patient department", err)
	}
	if !scope.Allows(dept) {
		return "", apperr.Forbidden("access denied: patient belongs to another department")
	}
	return dept, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput, scope auth.Scope) (*VitalSign, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		return nil, apperr.Validation("patient_id must be a UUID")
	}
	dept, err := s.authorize(ctx, patientID, scope)
	if err != nil {
		return nil, err
	}

	v := &VitalSign{
		PatientID:  patientID,
		RecordedBy: in.RecordedBy,
		RecordedAt: s.now().UTC(),
	}
	in.Measurements.apply(v)
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, apperr.Wrap("create vital sign", err)
	}
	s.publish(ctx, EventRecorded, dept, v)
	return v, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, scope auth.Scope, p pagination.Params) ([]*VitalSign, int, error) {
	if _, err := s.authorize(ctx, patientID, scope); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListByPatient(ctx, patientID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, apperr.Wrap("list vital signs", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.Scope) (*VitalSign, error) {
	v, _, err := s.get(ctx, id, scope)
	return v, err
}

func (s *Service) get(ctx context.Context, id uuid.UUID, scope auth.Scope) (*VitalSign, string, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", apperr.Wrap("get vital sign", err)
	}
	dept, err := s.authorize(ctx, v.PatientID, scope)
	if err != nil {
		return nil, "", err
	}
	return v, dept, nil
}

// Update applies the non-nil fields of in to the stored record.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, scope auth.Scope) (*VitalSign, error) {
	v, dept, err := s.get(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	if in.RecordedBy != nil {
		v.RecordedBy = *in.RecordedBy
	}
	if in.RecordedAt != nil {
		t, err := validation.ParseDate(*in.RecordedAt)
		if err != nil {
			return nil, apperr.Validation("recorded_at must be an ISO 8601 date")
		}
		v.RecordedAt = t.UTC()
	}
	in.Measurements.apply(v)

	if err := s.repo.Update(ctx, v); err != nil {
		return nil, apperr.Wrap("update vital sign", err)
	}
	s.publish(ctx, EventUpdated, dept, v)
	return v, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, scope auth.Scope) error {
	v, dept, err := s.get(ctx, id, scope)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Wrap("delete vital sign", err)
	}
	s.publish(ctx, EventDeleted, dept, v)
	return nil
}

// Latest returns the patient's most recent record by recorded_at.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID, scope auth.Scope) (*VitalSign, error) {
	if _, err := s.authorize(ctx, patientID, scope); err != nil {
		return nil, err
	}
	v, err := s.repo.Latest(ctx, patientID)
	if err != nil {
		return nil, apperr.Wrap("latest vital sign", err)
	}
	return v, nil
}

// Stats counts records overall and within the last 24 hours. Restricted
// scopes only ever see their own department.
func (s *Service) Stats(ctx context.Context, scope auth.Scope, department string) (*Stats, error) {
	dept, ok := scope.Narrow(department)
	if !ok {
		return &Stats{}, nil
	}
	total, err := s.repo.Count(ctx, dept, time.Time{})
	if err != nil {
		return nil, apperr.Wrap("count vital signs", err)
	}
	recent, err := s.repo.Count(ctx, dept, s.now().Add(-recentWindow))
	if err != nil {
		return nil, apperr.Wrap("count recent vital signs", err)
	}
	return &Stats{Department: dept, TotalVitalSigns: total, RecentVitalSigns: recent}, nil
}

func (s *Service) publish(ctx context.Context, kind, department string, v *VitalSign) {
	if s.events == nil {
		return
	}
	ev := live.Event{
		Type:         kind,
		Topics:       []string{live.PatientTopic(v.PatientID.String()), live.DepartmentTopic(department)},
		ResourceType: "vital_sign",
		ResourceID:   v.ID.String(),
		Timestamp:    s.now().UTC(),
		Data:         v,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", kind).Str("vital_sign_id", v.ID.String()).Msg("publish live event")
	}
}
