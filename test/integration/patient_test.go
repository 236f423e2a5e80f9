//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relayloop/relayloop/internal/domain/patient"
	"github.com/relayloop/relayloop/internal/domain/vitalsign"
	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/db"
)

func newPatient(mrn, dept string) *patient.Patient {
	return &patient.Patient{
		MRN:               mrn,
		FirstName:         "Jane",
		LastName:          "Doe",
		DOB:               time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Gender:            "Female",
		Email:             ptrStr(mrn + "@example.com"),
		Department:        dept,
		AttendingDoctor:   "Dr. Smith",
		MedicalConditions: []string{"Hypertension"},
		Allergies:         []string{},
		Status:            patient.StatusActive,
	}
}

func uniqueDept() string { return "it-" + uuid.New().String()[:8] }

func TestPatientRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewPatientRepoPG(pool)
	dept := uniqueDept()

	p := newPatient(uniqueMRN("CRUD"), dept)
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == uuid.Nil || p.CreatedAt.IsZero() {
		t.Fatal("expected id and timestamps after create")
	}

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.MRN != p.MRN || got.Department != dept {
			t.Errorf("unexpected patient %+v", got)
		}
		if len(got.MedicalConditions) != 1 || got.MedicalConditions[0] != "Hypertension" {
			t.Errorf("expected conditions to round-trip, got %v", got.MedicalConditions)
		}
		if !got.DOB.Equal(p.DOB) {
			t.Errorf("expected dob %s, got %s", p.DOB, got.DOB)
		}
	})

	t.Run("DuplicateMRN", func(t *testing.T) {
		dup := newPatient(p.MRN, dept)
		err := repo.Create(ctx, dup)
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		p.Room = ptrStr("204-B")
		p.Allergies = []string{"Latex"}
		if err := repo.Update(ctx, p); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Room == nil || *got.Room != "204-B" || len(got.Allergies) != 1 {
			t.Errorf("update not persisted: %+v", got)
		}
		if got.FirstName != "Jane" {
			t.Errorf("expected first name preserved, got %s", got.FirstName)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, p.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		if err := repo.Delete(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found on second delete, got %v", err)
		}
	})
}

func TestPatientRepo_ListAndStats(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewPatientRepoPG(pool)
	dept := uniqueDept()
	target := uniqueMRN("MRN12345")

	admitted := time.Now().UTC().AddDate(0, 0, -3).Truncate(24 * time.Hour)
	for i, mrn := range []string{target, uniqueMRN("OTHER"), uniqueMRN("OTHER")} {
		p := newPatient(mrn, dept)
		if i == 0 {
			p.LastAdmission = &admitted
		}
		if i == 2 {
			p.Status = "Discharged"
		}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, total, err := repo.List(ctx, patient.ListFilter{Department: dept, Search: target, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].MRN != target {
		t.Fatalf("expected only %s, got total=%d items=%d", target, total, len(items))
	}

	items, total, err = repo.List(ctx, patient.ListFilter{Department: dept, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected page of 2 out of 3, got %d of %d", len(items), total)
	}
	if items[0].CreatedAt.Before(items[1].CreatedAt) {
		t.Error("expected newest first")
	}

	st, err := repo.Stats(ctx, dept, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalPatients != 3 || st.ActivePatients != 2 || st.RecentAdmissions != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.ByDepartment[dept] != 3 {
		t.Errorf("expected by_department[%s]=3, got %v", dept, st.ByDepartment)
	}
}

func TestVitalSignRepo_LatestAndCascade(t *testing.T) {
	ctx := context.Background()
	patients := patient.NewPatientRepoPG(pool)
	vitals := vitalsign.NewRepoPG(pool)
	dept := uniqueDept()

	p := newPatient(uniqueMRN("VITALS"), dept)
	if err := patients.Create(ctx, p); err != nil {
		t.Fatalf("Create patient: %v", err)
	}

	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	var newest *vitalsign.VitalSign
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		hr := 70
		v := &vitalsign.VitalSign{PatientID: p.ID, HeartRate: &hr, RecordedBy: "Nurse Joy", RecordedAt: base.Add(offset)}
		if err := vitals.Create(ctx, v); err != nil {
			t.Fatalf("Create vital: %v", err)
		}
		if offset == 2*time.Hour {
			newest = v
		}
	}

	latest, err := vitals.Latest(ctx, p.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != newest.ID {
		t.Errorf("expected latest %s, got %s", newest.ID, latest.ID)
	}

	page, total, err := vitals.ListByPatient(ctx, p.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if total != 3 || len(page) != 2 || page[0].ID != newest.ID {
		t.Errorf("unexpected page: total=%d len=%d", total, len(page))
	}

	n, err := vitals.Count(ctx, dept, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 recent vitals, got %d", n)
	}

	if err := patients.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete patient: %v", err)
	}
	if _, err := vitals.Latest(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected vitals removed with patient, got %v", err)
	}
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewPatientRepoPG(pool)
	notes := patient.NewNoteRepoPG(pool)
	mrn := uniqueMRN("TX")
	boom := errors.New("abort")

	err := db.WithTx(ctx, pool, func(ctx context.Context) error {
		p := newPatient(mrn, uniqueDept())
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
		n := &patient.Note{PatientID: p.ID, Author: "Dr. Smith", Type: "General", Content: "admitted", Date: time.Now().UTC()}
		if err := notes.Create(ctx, n); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if _, err := repo.GetByMRN(ctx, mrn); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected rollback to discard patient, got %v", err)
	}
}
