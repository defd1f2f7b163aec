package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crm-backend/pkg/utils"

	"github.com/jackc/pgx/v5/pgtype"
)

// Repository is the lead store contract.
//
// Invariants every implementation upholds:
// - FRN is unique; violations surface as ErrDuplicateFRN.
// - ClaimUnassigned is a single compare-and-swap on "assigned_employee_id is null".
// - UpdateWith runs fn against a locked row and persists all or nothing.
// - A write whose history does not extend the stored history is rejected.
type Repository interface {
	Get(ctx context.Context, id string) (Lead, error)
	GetByFRN(ctx context.Context, frn string) (Lead, error)
	List(ctx context.Context, vis Visibility, f ListFilter) ([]Lead, error)
	// ListAll returns every lead ordered by created_at, id.
	ListAll(ctx context.Context) ([]Lead, error)
	ExistingFRNs(ctx context.Context, frns []string) (map[string]struct{}, error)

	Create(ctx context.Context, l Lead) (Lead, error)
	// CreateBatch inserts all leads in one transaction or none of them.
	CreateBatch(ctx context.Context, batch []Lead) error

	ClaimUnassigned(ctx context.Context, id, employeeID, entry string, now time.Time) (Lead, error)
	UpdateWith(ctx context.Context, id string, fn func(*Lead) error) (Lead, error)
}

// NOTE: PostgresRepo assumes the schema in migrations/schema.sql:
// - leads.frn has a unique index
// - leads.assigned_employee_id references users(id) ON DELETE SET NULL
// - leads.history is TEXT[]

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const leadColumns = `id, frn, company_name, contact_email, contact_phone, service_type, website, notes,
  pipeline_status, assigned_employee_id, history, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var l Lead
	var status string
	// pgtype.Map is not safe for concurrent use; one per row keeps scanning goroutine-safe.
	history := pgtype.NewMap().SQLScanner(&l.History)
	if err := row.Scan(
		&l.ID,
		&l.FRN,
		&l.CompanyName,
		&l.ContactEmail,
		&l.ContactPhone,
		&l.ServiceType,
		&l.Website,
		&l.Notes,
		&status,
		&l.AssignedEmployeeID,
		history,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return Lead{}, err
	}
	l.PipelineStatus = PipelineStatus(status)
	if l.History == nil {
		l.History = []string{}
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, storageErr("get lead", err)
	}
	return l, nil
}

func (r *PostgresRepo) GetByFRN(ctx context.Context, frn string) (Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE frn = $1`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, frn))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, storageErr("get lead by frn", err)
	}
	return l, nil
}

func (r *PostgresRepo) List(ctx context.Context, vis Visibility, f ListFilter) ([]Lead, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	// Visibility is always applied; filters can only narrow it further.
	if !vis.All {
		conds = append(conds, "(assigned_employee_id = "+arg(vis.EmployeeID)+" OR assigned_employee_id IS NULL)")
	}
	if f.Status != "" {
		conds = append(conds, "pipeline_status = "+arg(string(f.Status)))
	}
	switch {
	case f.AssignedTo == AssignedToUnassigned:
		conds = append(conds, "assigned_employee_id IS NULL")
	case f.AssignedTo != "":
		conds = append(conds, "assigned_employee_id = "+arg(f.AssignedTo))
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(company_name ILIKE %[1]s ESCAPE '\\' OR frn ILIKE %[1]s ESCAPE '\\' OR contact_email ILIKE %[1]s ESCAPE '\\')", p))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + leadColumns + ` FROM leads`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id ASC")
	b.WriteString(" OFFSET " + arg(f.Offset) + " LIMIT " + arg(f.Limit))

	return r.query(ctx, "list leads", b.String(), args...)
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at ASC, id ASC`
	return r.query(ctx, "list all leads", q)
}

func (r *PostgresRepo) query(ctx context.Context, op, q string, args ...any) ([]Lead, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func (r *PostgresRepo) ExistingFRNs(ctx context.Context, frns []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(frns) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT frn FROM leads WHERE frn = ANY($1)`, frns)
	if err != nil {
		return nil, storageErr("lookup frns", err)
	}
	defer rows.Close()
	for rows.Next() {
		var frn string
		if err := rows.Scan(&frn); err != nil {
			return nil, storageErr("lookup frns", err)
		}
		out[frn] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("lookup frns", err)
	}
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLead(ctx context.Context, db execer, l Lead) error {
	const q = `
INSERT INTO leads (
  id, frn, company_name, contact_email, contact_phone, service_type, website, notes,
  pipeline_status, assigned_employee_id, history, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err := db.ExecContext(ctx, q,
		l.ID,
		l.FRN,
		l.CompanyName,
		l.ContactEmail,
		l.ContactPhone,
		l.ServiceType,
		l.Website,
		l.Notes,
		string(l.PipelineStatus),
		l.AssignedEmployeeID,
		historyArg(l.History),
		l.CreatedAt,
		l.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Create(ctx context.Context, l Lead) (Lead, error) {
	if err := insertLead(ctx, r.db, l); err != nil {
		return Lead{}, classifyWrite("create lead", l.FRN, err)
	}
	return l.Clone(), nil
}

func (r *PostgresRepo) CreateBatch(ctx context.Context, batch []Lead) error {
	if len(batch) == 0 {
		return nil
	}
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, l := range batch {
			if err := insertLead(ctx, tx, l); err != nil {
				return classifyWrite("insert lead", l.FRN, err)
			}
		}
		return nil
	})
	return wrapTx("create batch", err)
}

func (r *PostgresRepo) ClaimUnassigned(ctx context.Context, id, employeeID, entry string, now time.Time) (Lead, error) {
	// The WHERE clause is the whole race guard: only one writer can observe NULL.
	q := `
UPDATE leads
SET assigned_employee_id = $2,
    history = array_append(history, $3::text),
    updated_at = $4
WHERE id = $1 AND assigned_employee_id IS NULL
RETURNING ` + leadColumns

	l, err := scanLead(r.db.QueryRowContext(ctx, q, id, employeeID, entry, now))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if utils.IsForeignKeyViolation(err) {
			return Lead{}, validationErr("employee %s does not exist", employeeID)
		}
		return Lead{}, storageErr("claim lead", err)
	}

	// Zero rows: classify only. The outcome was already decided above.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Lead{}, storageErr("claim lead", err)
	}
	if !exists {
		return Lead{}, ErrNotFound
	}
	return Lead{}, ErrAlreadyAssigned
}

func (r *PostgresRepo) UpdateWith(ctx context.Context, id string, fn func(*Lead) error) (Lead, error) {
	var out Lead
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the row to serialise concurrent updates of the same lead.
		q := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 FOR UPDATE`
		current, err := scanLead(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return storageErr("lock lead", err)
		}

		next := current.Clone()
		if err := fn(&next); err != nil {
			return err
		}
		if err := checkWrite(current, next); err != nil {
			return err
		}

		const uq = `
UPDATE leads
SET frn = $2, company_name = $3, contact_email = $4, contact_phone = $5, service_type = $6,
    website = $7, notes = $8, pipeline_status = $9, assigned_employee_id = $10, history = $11,
    updated_at = $12
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, uq,
			next.ID,
			next.FRN,
			next.CompanyName,
			next.ContactEmail,
			next.ContactPhone,
			next.ServiceType,
			next.Website,
			next.Notes,
			string(next.PipelineStatus),
			next.AssignedEmployeeID,
			historyArg(next.History),
			next.UpdatedAt,
		); err != nil {
			return classifyWrite("update lead", next.FRN, err)
		}
		out = next
		return nil
	})
	if err != nil {
		return Lead{}, wrapTx("update lead", err)
	}
	return out, nil
}

// wrapTx classifies begin/commit failures that did not come from the unit of work.
func wrapTx(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrConflict, ErrForbidden, ErrValidation, ErrStorage} {
		if errors.Is(err, known) {
			return err
		}
	}
	return storageErr(op, err)
}

// checkWrite rejects writes that change identity, creation time or rewrite history.
func checkWrite(before, after Lead) error {
	if after.ID != before.ID || !after.CreatedAt.Equal(before.CreatedAt) {
		return fmt.Errorf("%w: id and created_at are immutable", ErrStorage)
	}
	if len(after.History) < len(before.History) {
		return fmt.Errorf("%w: history is append-only", ErrStorage)
	}
	for i := range before.History {
		if after.History[i] != before.History[i] {
			return fmt.Errorf("%w: history is append-only", ErrStorage)
		}
	}
	if !after.PipelineStatus.Valid() {
		return validationErr("invalid pipeline status %q", after.PipelineStatus)
	}
	return nil
}

func classifyWrite(op, frn string, err error) error {
	switch {
	case utils.IsUniqueViolation(err):
		return duplicateFRN(frn)
	case utils.IsForeignKeyViolation(err):
		return validationErr("assigned employee does not exist")
	default:
		return storageErr(op, err)
	}
}

func duplicateFRN(frn string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateFRN, frn)
}

func historyArg(h []string) []string {
	if h == nil {
		return []string{}
	}
	return h
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
