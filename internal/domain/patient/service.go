package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relayloop/relayloop/internal/domain/vitalsign"
	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/internal/platform/validation"
)

const (
	DefaultListLimit = 50
	embeddedVitals   = 10
	admissionWindow  = 30 * 24 * time.Hour
)

// VitalsReader lists a patient's vital signs, newest first.
type VitalsReader interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*vitalsign.VitalSign, int, error)
}

type Service struct {
	patients    PatientRepository
	medications MedicationRepository
	notes       NoteRepository
	vitals      VitalsReader
	validate    *validation.Validator
	now         func() time.Time
}

func NewService(patients PatientRepository, meds MedicationRepository, notes NoteRepository, vitals VitalsReader, v *validation.Validator) *Service {
	return &Service{
		patients:    patients,
		medications: meds,
		notes:       notes,
		vitals:      vitals,
		validate:    v,
		now:         time.Now,
	}
}

var errOtherDepartment = apperr.Forbidden("access denied: patient belongs to another department")

// Create stores a new patient. A restricted scope may only create patients
// in its own department.
func (s *Service) Create(ctx context.Context, in CreatePatientInput, scope auth.Scope) (*Patient, error) {
	in.Email = blankToNil(in.Email)
	in.MRN = strings.TrimSpace(in.MRN)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if !scope.Allows(in.Department) {
		return nil, errOtherDepartment
	}
	if err := s.ensureMRNFree(ctx, in.MRN, uuid.Nil); err != nil {
		return nil, err
	}

	p := &Patient{
		MRN:               in.MRN,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Gender:            in.Gender,
		Phone:             in.Phone,
		Email:             in.Email,
		Address:           in.Address,
		Insurance:         in.Insurance,
		Department:        in.Department,
		AttendingDoctor:   in.AttendingDoctor,
		Room:              in.Room,
		MedicalConditions: orEmpty(in.MedicalConditions),
		Allergies:         orEmpty(in.Allergies),
		Status:            StatusActive,
		Notes:             in.Notes,
	}
	if in.Status != nil {
		p.Status = *in.Status
	}

	var err error
	if p.DOB, err = parseDate("dob", in.DOB); err != nil {
		return nil, err
	}
	if p.LastAdmission, err = parseOptionalDate("last_admission", in.LastAdmission); err != nil {
		return nil, err
	}
	if p.LastVisit, err = parseOptionalDate("last_visit", in.LastVisit); err != nil {
		return nil, err
	}

	if err := s.patients.Create(ctx, p); err != nil {
		return nil, apperr.Wrap("create patient", err)
	}
	return p, nil
}

// ensureMRNFree fails with a conflict if mrn belongs to a patient other
// than self.
func (s *Service) ensureMRNFree(ctx context.Context, mrn string, self uuid.UUID) error {
	existing, err := s.patients.GetByMRN(ctx, mrn)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return apperr.Wrap("lookup mrn", err)
	case existing.ID != self:
		return apperr.Conflict("patient with MRN %s already exists", mrn)
	}
	return nil
}

// List returns a page of patients. Restricted scopes only see their own
// department whatever filter was requested.
func (s *Service) List(ctx context.Context, scope auth.Scope, f ListFilter) ([]*Patient, int, error) {
	dept, ok := scope.Narrow(f.Department)
	if !ok {
		return []*Patient{}, 0, nil
	}
	f.Department = dept
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	items, total, err := s.patients.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Wrap("list patients", err)
	}
	return items, total, nil
}

// load fetches a patient and applies the scope check.
func (s *Service) load(ctx context.Context, id uuid.UUID, scope auth.Scope) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap("get patient", err)
	}
	if !scope.Allows(p.Department) {
		return nil, errOtherDepartment
	}
	return p, nil
}

// Get returns the patient with its latest vital signs, medications and
// note history.
func (s *Service) Get(ctx context.Context, id uuid.UUID, scope auth.Scope) (*Detail, error) {
	p, err := s.load(ctx, id, scope)
	if err != nil {
		return nil, err
	}

	d := &Detail{Patient: p}
	if d.Vitals, _, err = s.vitals.ListByPatient(ctx, id, embeddedVitals, 0); err != nil {
		return nil, apperr.Wrap("list patient vitals", err)
	}
	if d.Medications, err = s.medications.ListByPatient(ctx, id); err != nil {
		return nil, apperr.Wrap("list patient medications", err)
	}
	if d.NotesHistory, err = s.notes.ListByPatient(ctx, id); err != nil {
		return nil, apperr.Wrap("list patient notes", err)
	}
	if d.Vitals == nil {
		d.Vitals = []*vitalsign.VitalSign{}
	}
	if d.Medications == nil {
		d.Medications = []*Medication{}
	}
	if d.NotesHistory == nil {
		d.NotesHistory = []*Note{}
	}
	return d, nil
}

// Department returns the department owning a patient.
func (s *Service) Department(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return "", apperr.Wrap("get patient", err)
	}
	return p.Department, nil
}

// Update merges the fields present in in over the stored patient.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdatePatientInput, scope auth.Scope) (*Patient, error) {
	p, err := s.load(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	if in.MRN != nil {
		mrn := strings.TrimSpace(*in.MRN)
		if mrn != p.MRN {
			if err := s.ensureMRNFree(ctx, mrn, p.ID); err != nil {
				return nil, err
			}
		}
		p.MRN = mrn
	}
	if in.Department != nil {
		if !scope.Allows(*in.Department) {
			return nil, apperr.Forbidden("access denied: cannot move patient to another department")
		}
		p.Department = *in.Department
	}
	if in.DOB != nil {
		if p.DOB, err = parseDate("dob", *in.DOB); err != nil {
			return nil, err
		}
	}
	if in.LastAdmission != nil {
		if p.LastAdmission, err = parseOptionalDate("last_admission", in.LastAdmission); err != nil {
			return nil, err
		}
	}
	if in.LastVisit != nil {
		if p.LastVisit, err = parseOptionalDate("last_visit", in.LastVisit); err != nil {
			return nil, err
		}
	}
	if in.MedicalConditions != nil {
		p.MedicalConditions = in.MedicalConditions
	}
	if in.Allergies != nil {
		p.Allergies = in.Allergies
	}
	if in.Email != nil {
		p.Email = blankToNil(in.Email)
	}
	setString(&p.FirstName, in.FirstName)
	setString(&p.LastName, in.LastName)
	setString(&p.Gender, in.Gender)
	setString(&p.AttendingDoctor, in.AttendingDoctor)
	setString(&p.Status, in.Status)
	setOptional(&p.Phone, in.Phone)
	setOptional(&p.Address, in.Address)
	setOptional(&p.Insurance, in.Insurance)
	setOptional(&p.Room, in.Room)
	setOptional(&p.Notes, in.Notes)

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, apperr.Wrap("update patient", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, scope auth.Scope) error {
	if _, err := s.load(ctx, id, scope); err != nil {
		return err
	}
	if err := s.patients.Delete(ctx, id); err != nil {
		return apperr.Wrap("delete patient", err)
	}
	return nil
}

func (s *Service) AddMedication(ctx context.Context, in CreateMedicationInput, scope auth.Scope) (*Medication, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		return nil, apperr.Validation("patient_id must be a UUID")
	}
	if _, err := s.load(ctx, patientID, scope); err != nil {
		return nil, err
	}

	m := &Medication{
		PatientID:    patientID,
		Name:         in.Name,
		Dosage:       in.Dosage,
		Frequency:    in.Frequency,
		Status:       in.Status,
		AddedBy:      in.AddedBy,
		Instructions: in.Instructions,
	}
	if m.Status == "" {
		m.Status = MedicationActive
	}
	if m.StartDate, err = parseDate("start_date", in.StartDate); err != nil {
		return nil, err
	}
	if m.EndDate, err = parseOptionalDate("end_date", in.EndDate); err != nil {
		return nil, err
	}
	if m.EndDate != nil && m.EndDate.Before(m.StartDate) {
		return nil, apperr.Validation("end_date must not be before start_date")
	}

	if err := s.medications.Create(ctx, m); err != nil {
		return nil, apperr.Wrap("add medication", err)
	}
	return m, nil
}

func (s *Service) AddNote(ctx context.Context, in CreateNoteInput, scope auth.Scope) (*Note, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		return nil, apperr.Validation("patient_id must be a UUID")
	}
	if _, err := s.load(ctx, patientID, scope); err != nil {
		return nil, err
	}

	n := &Note{
		PatientID: patientID,
		Author:    in.Author,
		Type:      in.Type,
		Content:   in.Content,
	}
	if in.Date != nil {
		if n.Date, err = parseDate("date", *in.Date); err != nil {
			return nil, err
		}
	} else {
		n.Date = today(s.now())
	}

	if err := s.notes.Create(ctx, n); err != nil {
		return nil, apperr.Wrap("add note", err)
	}
	return n, nil
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID, scope auth.Scope) ([]*Medication, error) {
	if _, err := s.load(ctx, patientID, scope); err != nil {
		return nil, err
	}
	items, err := s.medications.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Wrap("list medications", err)
	}
	return items, nil
}

func (s *Service) ListNotes(ctx context.Context, patientID uuid.UUID, scope auth.Scope) ([]*Note, error) {
	if _, err := s.load(ctx, patientID, scope); err != nil {
		return nil, err
	}
	items, err := s.notes.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Wrap("list notes", err)
	}
	return items, nil
}

// Stats aggregates patient counts. Restricted scopes are forced to their
// own department.
func (s *Service) Stats(ctx context.Context, scope auth.Scope, department string) (*Stats, error) {
	dept, ok := scope.Narrow(department)
	if !ok {
		return &Stats{ByDepartment: map[string]int{}}, nil
	}
	st, err := s.patients.Stats(ctx, dept, s.now().Add(-admissionWindow))
	if err != nil {
		return nil, apperr.Wrap("patient stats", err)
	}
	return st, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := validation.ParseDate(s)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be an ISO 8601 date", field)
	}
	return t.UTC(), nil
}

// parseOptionalDate parses s if present. A blank value clears the date.
func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setOptional(dst **string, v *string) {
	if v != nil {
		*dst = blankToNil(v)
	}
}
