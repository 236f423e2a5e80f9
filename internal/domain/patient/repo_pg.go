package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/db"
)

const uniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

func mapWriteErr(err error, mrn string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict("patient with MRN %s already exists", mrn)
	}
	return err
}

// -- Patient --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const patientCols = `id, mrn, first_name, last_name, dob, gender, phone, email,
	address, insurance, department, attending_doctor, room, medical_conditions,
	allergies, last_admission, last_visit, status, notes, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DOB, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.Insurance, &p.Department,
		&p.AttendingDoctor, &p.Room, &p.MedicalConditions, &p.Allergies,
		&p.LastAdmission, &p.LastVisit, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, err
	}
	if p.MedicalConditions == nil {
		p.MedicalConditions = []string{}
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, mrn, first_name, last_name, dob, gender, phone,
			email, address, insurance, department, attending_doctor, room,
			medical_conditions, allergies, last_admission, last_visit, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING created_at, updated_at`,
		p.ID, p.MRN, p.FirstName, p.LastName, p.DOB, p.Gender, p.Phone,
		p.Email, p.Address, p.Insurance, p.Department, p.AttendingDoctor, p.Room,
		p.MedicalConditions, p.Allergies, p.LastAdmission, p.LastVisit, p.Status, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapWriteErr(err, p.MRN)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE mrn = $1`, mrn))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET mrn=$2, first_name=$3, last_name=$4, dob=$5, gender=$6,
			phone=$7, email=$8, address=$9, insurance=$10, department=$11,
			attending_doctor=$12, room=$13, medical_conditions=$14, allergies=$15,
			last_admission=$16, last_visit=$17, status=$18, notes=$19, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.MRN, p.FirstName, p.LastName, p.DOB, p.Gender,
		p.Phone, p.Email, p.Address, p.Insurance, p.Department,
		p.AttendingDoctor, p.Room, p.MedicalConditions, p.Allergies,
		p.LastAdmission, p.LastVisit, p.Status, p.Notes,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("patient not found")
	}
	return mapWriteErr(err, p.MRN)
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient not found")
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Department != "" {
		args = append(args, f.Department)
		where = append(where, fmt.Sprintf("department = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, f.Search)
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(strpos(first_name, $%[1]d) > 0 OR strpos(last_name, $%[1]d) > 0 OR strpos(mrn, $%[1]d) > 0 OR strpos(COALESCE(email, ''), $%[1]d) > 0)", n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM patients%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		patientCols, clause, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) Stats(ctx context.Context, department string, admittedSince time.Time) (*Stats, error) {
	st := &Stats{Department: department, ByDepartment: map[string]int{}}

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Active'),
			COUNT(*) FILTER (WHERE last_admission >= $2)
		FROM patients
		WHERE ($1::text = '' OR department = $1)`, department, admittedSince,
	).Scan(&st.TotalPatients, &st.ActivePatients, &st.RecentAdmissions)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT department, COUNT(*) FROM patients
		WHERE ($1::text = '' OR department = $1)
		GROUP BY department ORDER BY department`, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dept string
			n    int
		)
		if err := rows.Scan(&dept, &n); err != nil {
			return nil, err
		}
		st.ByDepartment[dept] = n
	}
	return st, rows.Err()
}

// -- Medication --

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const medicationCols = `id, patient_id, name, dosage, frequency, start_date, end_date,
	status, added_by, instructions, created_at, updated_at`

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, patient_id, name, dosage, frequency, start_date,
			end_date, status, added_by, instructions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.StartDate,
		m.EndDate, m.Status, m.AddedBy, m.Instructions,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *medicationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicationCols+` FROM medications
		WHERE patient_id = $1 ORDER BY created_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Medication{}
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency,
			&m.StartDate, &m.EndDate, &m.Status, &m.AddedBy, &m.Instructions,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// -- Note --

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewNoteRepoPG(pool *pgxpool.Pool) NoteRepository {
	return &noteRepoPG{pool: pool}
}

func (r *noteRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *noteRepoPG) Create(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_notes (id, patient_id, author, type, content, date)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		n.ID, n.PatientID, n.Author, n.Type, n.Content, n.Date,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (r *noteRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, author, type, content, date, created_at, updated_at
		FROM patient_notes
		WHERE patient_id = $1 ORDER BY date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.PatientID, &n.Author, &n.Type, &n.Content,
			&n.Date, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &n)
	}
	return items, rows.Err()
}
