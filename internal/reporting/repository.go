package reporting

import (
	"context"
	"database/sql"
	"fmt"

	"crm-backend/pkg/utils"
)

// Repository abstracts data access for reporting.
// Implementations return all counts from a single consistent snapshot.
type Repository interface {
	LeadCounts(ctx context.Context) (LeadCounts, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) LeadCounts(ctx context.Context) (LeadCounts, error) {
	out := LeadCounts{ByStatus: map[string]int{}}

	// Repeatable read keeps the three aggregates consistent with each other.
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := utils.WithTx(ctx, r.db, opts, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT pipeline_status, COUNT(*) FROM leads GROUP BY pipeline_status`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				rows.Close()
				return err
			}
			out.ByStatus[status] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		const byEmployee = `
SELECT u.id, u.name, COUNT(l.id)
FROM users u
JOIN leads l ON l.assigned_employee_id = u.id
GROUP BY u.id, u.name
ORDER BY u.name ASC, u.id ASC
`
		rows, err = tx.QueryContext(ctx, byEmployee)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ec EmployeeCount
			if err := rows.Scan(&ec.UserID, &ec.Name, &ec.Count); err != nil {
				return err
			}
			out.ByEmployee = append(out.ByEmployee, ec)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE assigned_employee_id IS NULL`).Scan(&out.Unassigned)
	})
	if err != nil {
		return LeadCounts{}, fmt.Errorf("reporting: lead counts: %w", err)
	}
	return out, nil
}
