package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/domain/department"
	"github.com/relayloop/relayloop/internal/domain/patient"
	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/internal/platform/validation"
)

type fakeCreator struct {
	mrns   map[string]bool
	scopes []auth.Scope
	fail   string
}

func (f *fakeCreator) Create(_ context.Context, in patient.CreatePatientInput, scope auth.Scope) (*patient.Patient, error) {
	f.scopes = append(f.scopes, scope)
	if in.MRN == f.fail {
		return nil, errors.New("connection reset")
	}
	if f.mrns[in.MRN] {
		return nil, apperr.Conflict("patient with MRN %s already exists", in.MRN)
	}
	f.mrns[in.MRN] = true
	return &patient.Patient{ID: uuid.New(), MRN: in.MRN}, nil
}

func TestPatients_AreValid(t *testing.T) {
	v := validation.New()
	known := map[string]bool{}
	for _, d := range department.NewService().List() {
		known[d.ID] = true
	}
	seen := map[string]bool{}
	for _, in := range Patients() {
		if err := v.Struct(in); err != nil {
			t.Errorf("%s: %v", in.MRN, err)
		}
		if seen[in.MRN] {
			t.Errorf("duplicate MRN %s", in.MRN)
		}
		seen[in.MRN] = true
		if !known[in.Department] {
			t.Errorf("%s: unknown department %q", in.MRN, in.Department)
		}
	}
}

func TestRun_CreatesAll(t *testing.T) {
	f := &fakeCreator{mrns: map[string]bool{}}
	res, err := Run(context.Background(), f, Patients(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != len(Patients()) || res.Skipped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	for _, s := range f.scopes {
		if s.Restricted() {
			t.Error("expected seeding to run unrestricted")
		}
	}
}

func TestRun_SkipsExisting(t *testing.T) {
	f := &fakeCreator{mrns: map[string]bool{"MRN12345": true}}
	res, err := Run(context.Background(), f, Patients(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped != 1 || res.Created != len(Patients())-1 {
		t.Errorf("unexpected result %+v", res)
	}

	res, err = Run(context.Background(), f, Patients(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 0 || res.Skipped != len(Patients()) {
		t.Errorf("expected second run to skip everything, got %+v", res)
	}
}

func TestRun_StopsOnError(t *testing.T) {
	f := &fakeCreator{mrns: map[string]bool{}, fail: "MRN13345"}
	res, err := Run(context.Background(), f, Patients(), zerolog.Nop())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Created != 2 {
		t.Errorf("expected 2 created before failure, got %d", res.Created)
	}
}
