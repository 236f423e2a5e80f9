package patient

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relayloop/relayloop/internal/domain/vitalsign"
	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/internal/platform/validation"
	"github.com/relayloop/relayloop/pkg/pagination"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
	clock    time.Time
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients: make(map[uuid.UUID]*Patient),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	for _, existing := range m.patients {
		if existing.MRN == p.MRN {
			return apperr.Conflict("patient with MRN %s already exists", p.MRN)
		}
	}
	p.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	p.CreatedAt = m.clock
	p.UpdatedAt = m.clock
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	for _, p := range m.patients {
		if p.MRN == mrn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFound("patient not found")
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return apperr.NotFound("patient not found")
	}
	delete(m.patients, id)
	return nil
}

func matches(p *Patient, search string) bool {
	email := ""
	if p.Email != nil {
		email = *p.Email
	}
	for _, field := range []string{p.FirstName, p.LastName, p.MRN, email} {
		if strings.Contains(field, search) {
			return true
		}
	}
	return false
}

func (m *mockPatientRepo) List(_ context.Context, f ListFilter) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if f.Department != "" && p.Department != f.Department {
			continue
		}
		if f.Search != "" && !matches(p, f.Search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := pagination.Params{Limit: f.Limit, Offset: f.Offset}.Window(len(out))
	return out[start:end], len(out), nil
}

func (m *mockPatientRepo) Stats(_ context.Context, department string, since time.Time) (*Stats, error) {
	st := &Stats{Department: department, ByDepartment: map[string]int{}}
	for _, p := range m.patients {
		if department != "" && p.Department != department {
			continue
		}
		st.TotalPatients++
		if p.Status == StatusActive {
			st.ActivePatients++
		}
		if p.LastAdmission != nil && !p.LastAdmission.Before(since) {
			st.RecentAdmissions++
		}
		st.ByDepartment[p.Department]++
	}
	return st, nil
}

type mockMedicationRepo struct{ items []*Medication }

func (m *mockMedicationRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	m.items = append(m.items, med)
	return nil
}

func (m *mockMedicationRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Medication, error) {
	out := []*Medication{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].PatientID == patientID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

type mockNoteRepo struct{ items []*Note }

func (m *mockNoteRepo) Create(_ context.Context, n *Note) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.items = append(m.items, n)
	return nil
}

func (m *mockNoteRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Note, error) {
	out := []*Note{}
	for _, n := range m.items {
		if n.PatientID == patientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

type mockVitals struct{ byPatient map[uuid.UUID][]*vitalsign.VitalSign }

func (m *mockVitals) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*vitalsign.VitalSign, int, error) {
	all := m.byPatient[patientID]
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

func newTestService() (*Service, *mockPatientRepo, *mockVitals) {
	repo := newMockPatientRepo()
	vitals := &mockVitals{byPatient: map[uuid.UUID][]*vitalsign.VitalSign{}}
	svc := NewService(repo, &mockMedicationRepo{}, &mockNoteRepo{}, vitals, validation.New())
	return svc, repo, vitals
}

func strPtr(s string) *string { return &s }

func validInput(mrn, dept string) CreatePatientInput {
	return CreatePatientInput{
		MRN:             mrn,
		FirstName:       "John",
		LastName:        "Doe",
		DOB:             "1980-05-15",
		Gender:          "Male",
		Department:      dept,
		AttendingDoctor: "Dr. Smith",
	}
}

func mustCreate(t *testing.T, svc *Service, in CreatePatientInput) *Patient {
	t.Helper()
	p, err := svc.Create(context.Background(), in, auth.Unrestricted)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

var cardiology = auth.DepartmentScope("cardiology")

// -- Tests --

func TestService_Create(t *testing.T) {
	svc, _, _ := newTestService()
	in := validInput("MRN12345", "cardiology")
	in.Email = strPtr("  ")
	in.LastAdmission = strPtr("2024-03-01T09:30:00Z")

	p := mustCreate(t, svc, in)
	if p.ID == uuid.Nil {
		t.Fatal("expected ID to be set")
	}
	if p.Status != StatusActive {
		t.Errorf("expected default status Active, got %s", p.Status)
	}
	if p.MedicalConditions == nil || p.Allergies == nil {
		t.Error("expected list fields to default to empty")
	}
	if p.Email != nil {
		t.Error("expected blank email to be dropped")
	}
	if p.DOB.Format("2006-01-02") != "1980-05-15" {
		t.Errorf("unexpected dob %s", p.DOB)
	}
	if p.LastAdmission == nil || p.LastAdmission.Hour() != 9 {
		t.Errorf("unexpected last_admission %v", p.LastAdmission)
	}

	got, err := svc.Get(context.Background(), p.ID, auth.Unrestricted)
	if err != nil {
		t.Fatalf("expected created patient to be retrievable: %v", err)
	}
	if got.MRN != "MRN12345" {
		t.Errorf("expected MRN12345, got %s", got.MRN)
	}
}

func TestService_Create_DuplicateMRN(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, validInput("MRN12345", "cardiology"))

	_, err := svc.Create(context.Background(), validInput("MRN12345", "neurology"), auth.Unrestricted)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	cases := map[string]func(in *CreatePatientInput){
		"missing mrn":    func(in *CreatePatientInput) { in.MRN = "" },
		"blank name":     func(in *CreatePatientInput) { in.FirstName = " " },
		"bad gender":     func(in *CreatePatientInput) { in.Gender = "male" },
		"bad dob":        func(in *CreatePatientInput) { in.DOB = "15/05/1980" },
		"bad email":      func(in *CreatePatientInput) { in.Email = strPtr("not-an-email") },
		"bad last visit": func(in *CreatePatientInput) { in.LastVisit = strPtr("soon") },
		"no doctor":      func(in *CreatePatientInput) { in.AttendingDoctor = "" },
	}
	for name, mutate := range cases {
		in := validInput("MRN1", "cardiology")
		mutate(&in)
		_, err := svc.Create(context.Background(), in, auth.Unrestricted)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestService_Create_OtherDepartmentForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), validInput("MRN1", "oncology"), cardiology)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_List_Search(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, validInput("MRN12345", "cardiology"))
	other := validInput("MRN67890", "cardiology")
	other.FirstName = "Jane"
	other.Email = strPtr("jane@example.com")
	mustCreate(t, svc, other)
	mustCreate(t, svc, validInput("XMRN12345X", "oncology"))

	items, total, err := svc.List(context.Background(), auth.Unrestricted, ListFilter{Search: "MRN12345"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 matches, got %d", total)
	}
	for _, p := range items {
		if !matches(p, "MRN12345") {
			t.Errorf("patient %s does not contain search term", p.MRN)
		}
	}

	// Case-sensitive: lowercase does not match.
	_, total, _ = svc.List(context.Background(), auth.Unrestricted, ListFilter{Search: "mrn12345"})
	if total != 0 {
		t.Errorf("expected case-sensitive search, got %d matches", total)
	}

	_, total, _ = svc.List(context.Background(), auth.Unrestricted, ListFilter{Search: "MRN12345", Department: "oncology"})
	if total != 1 {
		t.Errorf("expected search intersected with department, got %d", total)
	}

	_, total, _ = svc.List(context.Background(), auth.Unrestricted, ListFilter{Search: "example.com"})
	if total != 1 {
		t.Errorf("expected email match, got %d", total)
	}
}

func TestService_List_RestrictedScope(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, validInput("MRN1", "cardiology"))
	mustCreate(t, svc, validInput("MRN2", "oncology"))

	items, total, err := svc.List(context.Background(), cardiology, ListFilter{Department: "oncology"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].Department != "cardiology" {
		t.Errorf("expected only cardiology patients, got %d", total)
	}

	_, total, _ = svc.List(context.Background(), auth.DepartmentScope(""), ListFilter{})
	if total != 0 {
		t.Errorf("expected nothing for scope without department, got %d", total)
	}
}

func TestService_List_OrderAndPaging(t *testing.T) {
	svc, _, _ := newTestService()
	for _, mrn := range []string{"A", "B", "C"} {
		mustCreate(t, svc, validInput(mrn, "cardiology"))
	}

	items, total, err := svc.List(context.Background(), auth.Unrestricted, ListFilter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if items[0].MRN != "C" || items[1].MRN != "B" {
		t.Errorf("expected newest first, got %s, %s", items[0].MRN, items[1].MRN)
	}
}

func TestService_Get_NotFoundVsForbidden(t *testing.T) {
	svc, _, _ := newTestService()
	p := mustCreate(t, svc, validInput("MRN1", "oncology"))

	if _, err := svc.Get(context.Background(), uuid.New(), cardiology); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), p.ID, cardiology); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestService_Get_EmbedsRelations(t *testing.T) {
	svc, _, vitals := newTestService()
	p := mustCreate(t, svc, validInput("MRN1", "cardiology"))
	for i := 0; i < 12; i++ {
		vitals.byPatient[p.ID] = append(vitals.byPatient[p.ID], &vitalsign.VitalSign{ID: uuid.New(), PatientID: p.ID})
	}
	ctx := context.Background()
	if _, err := svc.AddMedication(ctx, CreateMedicationInput{
		PatientID: p.ID.String(), Name: "Metoprolol", Dosage: "50mg", Frequency: "Twice daily",
		StartDate: "2024-01-01", AddedBy: "Doctor",
	}, cardiology); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddNote(ctx, CreateNoteInput{
		PatientID: p.ID.String(), Author: "Dr. Smith", Type: "Observation", Content: "Stable",
	}, cardiology); err != nil {
		t.Fatal(err)
	}

	d, err := svc.Get(ctx, p.ID, cardiology)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Vitals) != 10 {
		t.Errorf("expected 10 embedded vitals, got %d", len(d.Vitals))
	}
	if len(d.Medications) != 1 || d.Medications[0].Status != MedicationActive {
		t.Errorf("unexpected medications: %+v", d.Medications)
	}
	if len(d.NotesHistory) != 1 {
		t.Errorf("expected 1 note, got %d", len(d.NotesHistory))
	}
}

func TestService_Update_PartialMerge(t *testing.T) {
	svc, _, _ := newTestService()
	in := validInput("MRN1", "cardiology")
	in.Phone = strPtr("(555) 123-4567")
	in.Allergies = []string{"Penicillin"}
	p := mustCreate(t, svc, in)

	updated, err := svc.Update(context.Background(), p.ID, UpdatePatientInput{
		Room:      strPtr("205-A"),
		LastVisit: strPtr("2024-04-02"),
	}, cardiology)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Room == nil || *updated.Room != "205-A" {
		t.Error("expected room to be set")
	}
	if updated.Phone == nil || *updated.Phone != "(555) 123-4567" {
		t.Error("expected phone to be preserved")
	}
	if len(updated.Allergies) != 1 || updated.FirstName != "John" || updated.MRN != "MRN1" {
		t.Errorf("expected untouched fields preserved: %+v", updated)
	}
	if updated.LastVisit == nil || updated.LastVisit.Format("2006-01-02") != "2024-04-02" {
		t.Errorf("unexpected last_visit %v", updated.LastVisit)
	}

	cleared, err := svc.Update(context.Background(), p.ID, UpdatePatientInput{Allergies: []string{}}, cardiology)
	if err != nil {
		t.Fatal(err)
	}
	if len(cleared.Allergies) != 0 {
		t.Error("expected empty list to clear allergies")
	}
}

func TestService_Update_MRNCollision(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, validInput("MRN1", "cardiology"))
	p := mustCreate(t, svc, validInput("MRN2", "cardiology"))

	if _, err := svc.Update(context.Background(), p.ID, UpdatePatientInput{MRN: strPtr("MRN1")}, auth.Unrestricted); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Update(context.Background(), p.ID, UpdatePatientInput{MRN: strPtr("MRN2")}, auth.Unrestricted); err != nil {
		t.Fatalf("keeping own MRN should succeed: %v", err)
	}
}

func TestService_Update_MoveDepartment(t *testing.T) {
	svc, _, _ := newTestService()
	p := mustCreate(t, svc, validInput("MRN1", "cardiology"))

	if _, err := svc.Update(context.Background(), p.ID, UpdatePatientInput{Department: strPtr("oncology")}, cardiology); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	moved, err := svc.Update(context.Background(), p.ID, UpdatePatientInput{Department: strPtr("oncology")}, auth.Unrestricted)
	if err != nil || moved.Department != "oncology" {
		t.Fatalf("expected admin move to succeed, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, _, _ := newTestService()
	p := mustCreate(t, svc, validInput("MRN1", "cardiology"))

	if err := svc.Delete(context.Background(), p.ID, auth.DepartmentScope("oncology")); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), p.ID, auth.Unrestricted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), p.ID, auth.Unrestricted); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestService_AddMedication(t *testing.T) {
	svc, _, _ := newTestService()
	p := mustCreate(t, svc, validInput("MRN1", "cardiology"))
	ctx := context.Background()

	base := CreateMedicationInput{
		PatientID: p.ID.String(), Name: "Lisinopril", Dosage: "10mg", Frequency: "Daily",
		StartDate: "2024-02-01", AddedBy: "Nurse",
	}

	bad := base
	bad.AddedBy = "Pharmacist"
	if _, err := svc.AddMedication(ctx, bad, cardiology); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for added_by, got %v", err)
	}

	bad = base
	bad.EndDate = strPtr("2023-12-31")
	if _, err := svc.AddMedication(ctx, bad, cardiology); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for end before start, got %v", err)
	}

	missing := base
	missing.PatientID = uuid.New().String()
	if _, err := svc.AddMedication(ctx, missing, auth.Unrestricted); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	if _, err := svc.AddMedication(ctx, base, auth.DepartmentScope("oncology")); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	base.Status = "Completed"
	m, err := svc.AddMedication(ctx, base, cardiology)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != "Completed" {
		t.Errorf("expected Completed, got %s", m.Status)
	}

	items, err := svc.ListMedications(ctx, p.ID, cardiology)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected 1 medication, got %d (%v)", len(items), err)
	}
}

func TestService_AddNote_DefaultsDate(t *testing.T) {
	svc, _, _ := newTestService()
	svc.now = func() time.Time { return time.Date(2024, 6, 3, 22, 15, 0, 0, time.UTC) }
	p := mustCreate(t, svc, validInput("MRN1", "cardiology"))

	n, err := svc.AddNote(context.Background(), CreateNoteInput{
		PatientID: p.ID.String(), Author: "Nurse Joy", Type: "General", Content: "Ate well",
	}, cardiology)
	if err != nil {
		t.Fatal(err)
	}
	if n.Date.Format("2006-01-02") != "2024-06-03" {
		t.Errorf("expected today's date, got %s", n.Date)
	}

	_, err = svc.AddNote(context.Background(), CreateNoteInput{
		PatientID: p.ID.String(), Author: "Nurse Joy", Type: "Gossip", Content: "x",
	}, cardiology)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for type, got %v", err)
	}

	notes, err := svc.ListNotes(context.Background(), p.ID, cardiology)
	if err != nil || len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d (%v)", len(notes), err)
	}
}

func TestService_Stats(t *testing.T) {
	svc, _, _ := newTestService()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	recent := validInput("MRN1", "cardiology")
	recent.LastAdmission = strPtr("2024-06-20")
	mustCreate(t, svc, recent)

	old := validInput("MRN2", "cardiology")
	old.LastAdmission = strPtr("2024-01-20")
	old.Status = strPtr("Discharged")
	mustCreate(t, svc, old)

	mustCreate(t, svc, validInput("MRN3", "oncology"))

	st, err := svc.Stats(context.Background(), auth.Unrestricted, "")
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalPatients != 3 || st.ActivePatients != 2 || st.RecentAdmissions != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.ByDepartment["cardiology"] != 2 || st.ByDepartment["oncology"] != 1 {
		t.Errorf("unexpected department breakdown: %v", st.ByDepartment)
	}

	forced, err := svc.Stats(context.Background(), auth.DepartmentScope("oncology"), "cardiology")
	if err != nil {
		t.Fatal(err)
	}
	if forced.TotalPatients != 1 || forced.Department != "oncology" {
		t.Errorf("expected stats forced to oncology, got %+v", forced)
	}
}

func TestService_Department(t *testing.T) {
	svc, _, _ := newTestService()
	p := mustCreate(t, svc, validInput("MRN1", "pediatrics"))

	dept, err := svc.Department(context.Background(), p.ID)
	if err != nil || dept != "pediatrics" {
		t.Fatalf("expected pediatrics, got %q (%v)", dept, err)
	}
	if _, err := svc.Department(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
