package vitalsign

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

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type vitalSignRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &vitalSignRepoPG{pool: pool}
}

func (r *vitalSignRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const vitalCols = `id, patient_id, temperature, heart_rate,
	blood_pressure_systolic, blood_pressure_diastolic, respiratory_rate,
	oxygen_saturation, weight, height, blood_glucose, notes,
	recorded_by, recorded_at, created_at, updated_at`

func scanVital(row pgx.Row) (*VitalSign, error) {
	var v VitalSign
	err := row.Scan(&v.ID, &v.PatientID, &v.Temperature, &v.HeartRate,
		&v.BloodPressureSystolic, &v.BloodPressureDiastolic, &v.RespiratoryRate,
		&v.OxygenSaturation, &v.Weight, &v.Height, &v.BloodGlucose, &v.Notes,
		&v.RecordedBy, &v.RecordedAt, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("vital sign not found")
	}
	return &v, err
}

func (r *vitalSignRepoPG) Create(ctx context.Context, v *VitalSign) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_signs (id, patient_id, temperature, heart_rate,
			blood_pressure_systolic, blood_pressure_diastolic, respiratory_rate,
			oxygen_saturation, weight, height, blood_glucose, notes,
			recorded_by, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		v.ID, v.PatientID, v.Temperature, v.HeartRate,
		v.BloodPressureSystolic, v.BloodPressureDiastolic, v.RespiratoryRate,
		v.OxygenSaturation, v.Weight, v.Height, v.BloodGlucose, v.Notes,
		v.RecordedBy, v.RecordedAt,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *vitalSignRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*VitalSign, error) {
	return scanVital(r.conn(ctx).QueryRow(ctx, `SELECT `+vitalCols+` FROM vital_signs WHERE id = $1`, id))
}

func (r *vitalSignRepoPG) Update(ctx context.Context, v *VitalSign) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE vital_signs SET temperature=$2, heart_rate=$3,
			blood_pressure_systolic=$4, blood_pressure_diastolic=$5, respiratory_rate=$6,
			oxygen_saturation=$7, weight=$8, height=$9, blood_glucose=$10, notes=$11,
			recorded_by=$12, recorded_at=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		v.ID, v.Temperature, v.HeartRate,
		v.BloodPressureSystolic, v.BloodPressureDiastolic, v.RespiratoryRate,
		v.OxygenSaturation, v.Weight, v.Height, v.BloodGlucose, v.Notes,
		v.RecordedBy, v.RecordedAt,
	).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("vital sign not found")
	}
	return err
}

func (r *vitalSignRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM vital_signs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("vital sign not found")
	}
	return nil
}

func (r *vitalSignRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalSign, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM vital_signs WHERE patient_id = $1`, patientID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vitalCols+` FROM vital_signs
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*VitalSign{}
	for rows.Next() {
		v, err := scanVital(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *vitalSignRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*VitalSign, error) {
	v, err := scanVital(r.conn(ctx).QueryRow(ctx, `SELECT `+vitalCols+` FROM vital_signs
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, created_at DESC, id DESC
		LIMIT 1`, patientID))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("no vital signs recorded for patient")
	}
	return v, err
}

func (r *vitalSignRepoPG) Count(ctx context.Context, department string, since time.Time) (int, error) {
	var (
		where []string
		args  []interface{}
	)
	from := `vital_signs v`
	if department != "" {
		from += ` JOIN patients p ON p.id = v.patient_id`
		args = append(args, department)
		where = append(where, fmt.Sprintf("p.department = $%d", len(args)))
	}
	if !since.IsZero() {
		args = append(args, since)
		where = append(where, fmt.Sprintf("v.recorded_at >= $%d", len(args)))
	}

	q := `SELECT COUNT(*) FROM ` + from
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}

	var n int
	err := r.conn(ctx).QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}
