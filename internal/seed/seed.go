// Package seed loads the sample patients used for local development.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/domain/patient"
	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
)

// PatientCreator is the part of patient.Service the seeder needs.
type PatientCreator interface {
	Create(ctx context.Context, in patient.CreatePatientInput, scope auth.Scope) (*patient.Patient, error)
}

type Result struct {
	Created int
	Skipped int
}

func str(s string) *string { return &s }

// Patients returns the sample records. MRNs are unique.
func Patients() []patient.CreatePatientInput {
	return []patient.CreatePatientInput{
		{
			MRN: "MRN12345", FirstName: "Gowthamaraj", LastName: "M S", DOB: "1995-01-15", Gender: "Male",
			Department: "oncology", AttendingDoctor: "Dr. Dhaya",
			Email: str("gowthamaraj@example.com"), Phone: str("555-123-4567"),
			Address: str("123 Main St, Anytown, CA"), Room: str("101-A"),
			MedicalConditions: []string{"Regular checkup"},
		},
		{
			MRN: "MRN12346", FirstName: "Dhaya", LastName: "E", DOB: "1990-08-12", Gender: "Male",
			Department: "cardiology", AttendingDoctor: "Dr. Smith",
			Email: str("dhaya@example.com"), Phone: str("555-234-5678"),
			Address: str("456 Oak St, Springfield, IL"), Room: str("102-B"),
			MedicalConditions: []string{"Routine examination"}, Allergies: []string{"Latex"},
		},
		{
			MRN: "MRN13345", FirstName: "Gowthamaraj", LastName: "Doe", DOB: "1985-03-22", Gender: "Male",
			Department: "oncology", AttendingDoctor: "Dr. Raj",
			Email: str("gowthamaraj.doe@example.com"), Phone: str("555-345-6789"),
			Address: str("789 Pine St, Westfield, MA"), Room: str("103-C"),
			MedicalConditions: []string{"Follow-up appointment"},
		},
		{
			MRN: "MRN12348", FirstName: "Priya", LastName: "K", DOB: "1992-11-08", Gender: "Female",
			Department: "neurology", AttendingDoctor: "Dr. Dhaya",
			Email: str("priya.k@example.com"), Phone: str("555-456-7890"),
			Address: str("321 Elm St, Riverside, CA"), Room: str("104-D"),
			MedicalConditions: []string{"Consultation"},
		},
		{
			MRN: "MRN12349", FirstName: "Kavi", LastName: "V", DOB: "1975-12-03", Gender: "Male",
			Department: "general-medicine", AttendingDoctor: "Dr. Raj",
			Email: str("kavi@example.com"), Phone: str("555-678-9012"),
			Address: str("987 Cedar St, Fairfield, OH"), Room: str("106-F"),
			MedicalConditions: []string{"Preventive care"}, Allergies: []string{"Shellfish"},
		},
	}
}

// Run creates every record in inputs. Records whose MRN already exists are
// skipped; any other error stops the run.
func Run(ctx context.Context, svc PatientCreator, inputs []patient.CreatePatientInput, logger zerolog.Logger) (Result, error) {
	var res Result
	for _, in := range inputs {
		p, err := svc.Create(ctx, in, auth.Unrestricted)
		if errors.Is(err, apperr.ErrConflict) {
			logger.Info().Str("mrn", in.MRN).Msg("patient exists, skipping")
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed patient %s: %w", in.MRN, err)
		}
		logger.Info().Str("mrn", p.MRN).Str("id", p.ID.String()).Msg("created patient")
		res.Created++
	}
	return res, nil
}
