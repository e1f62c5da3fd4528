package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, amount, method, processed_by, created_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.ProcessedBy, &p.CreatedAt)
	return p, err
}

type CreatePaymentParams struct {
	OrderID     uuid.UUID
	Amount      pgtype.Numeric
	Method      string
	ProcessedBy uuid.UUID
}

// CreatePayment appends to the payment ledger. Payments are never updated
// or deleted.
func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	const sql = `
		INSERT INTO payments (order_id, amount, method, processed_by)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + paymentColumns
	return scanPayment(q.db.QueryRow(ctx, sql, arg.OrderID, arg.Amount, arg.Method, arg.ProcessedBy))
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	const sql = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q *Queries) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	const sql = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sql, orderID).Scan(&n)
	return n, err
}
