package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, version, customer_id, amount_planned::text, currency,
	amount_paid::text, paid_currency, interface_id, payment_interface, method,
	status_interface_code, status_interface_text, created_at, updated_at`

// PaymentRepository implements payment.Repository using PostgreSQL. Interactions
// and transactions live in child tables and are only ever appended.
type PaymentRepository struct {
	pool    *pgxpool.Pool
	tx      *TxManager
	resolve payment.TypeIDResolver
}

// NewPaymentRepository creates a repository that maps interaction type keys
// to ids with resolve, typically a cached TypeRepository lookup.
func NewPaymentRepository(pool *pgxpool.Pool, resolve payment.TypeIDResolver) *PaymentRepository {
	return &PaymentRepository{pool: pool, tx: NewTxManager(pool), resolve: resolve}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new payment together with its initial interactions and transactions.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		paid, paidCurrency := moneyColumns(p.AmountPaid)
		_, err := r.db(txCtx).Exec(txCtx,
			`INSERT INTO payments
			 (id, version, customer_id, amount_planned, currency, amount_paid, paid_currency,
			  interface_id, payment_interface, method, status_interface_code, status_interface_text,
			  created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			p.ID, p.Version, p.CustomerID, p.AmountPlanned.Amount.String(), p.AmountPlanned.Currency,
			paid, paidCurrency, p.InterfaceID, p.MethodInfo.PaymentInterface, p.MethodInfo.Method,
			p.Status.InterfaceCode, p.Status.InterfaceText, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return r.insertChildren(txCtx, p.ID, p.Interactions, p.Transactions)
	})
}

// GetByID retrieves a payment with its full interaction history.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindByInterfaceID returns the oldest payment of the given interface carrying
// interfaceID.
func (r *PaymentRepository) FindByInterfaceID(ctx context.Context, interfaceID, paymentInterface string) (*payment.Payment, error) {
	p, err := r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE interface_id = $1 AND payment_interface = $2
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`, interfaceID, paymentInterface))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies actions to the snapshot p in one transaction. The row is only
// written when its stored version still equals p.Version; otherwise nothing is
// written and ErrConcurrentModification is returned.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment, actions []payment.UpdateAction) (*payment.Payment, error) {
	var next *payment.Payment
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		next, err = payment.Apply(txCtx, p, actions, r.resolve)
		if err != nil {
			return err
		}

		paid, paidCurrency := moneyColumns(next.AmountPaid)
		tag, err := r.db(txCtx).Exec(txCtx,
			`UPDATE payments SET
			  version=$1, amount_paid=$2, paid_currency=$3, interface_id=$4,
			  payment_interface=$5, method=$6, status_interface_code=$7,
			  status_interface_text=$8, updated_at=$9
			 WHERE id=$10 AND version=$11`,
			next.Version, paid, paidCurrency, next.InterfaceID,
			next.MethodInfo.PaymentInterface, next.MethodInfo.Method, next.Status.InterfaceCode,
			next.Status.InterfaceText, next.UpdatedAt, p.ID, p.Version,
		)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return r.missingOrConflict(txCtx, p.ID)
		}

		return r.insertChildren(txCtx, p.ID,
			next.Interactions[len(p.Interactions):],
			next.Transactions[len(p.Transactions):],
		)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (r *PaymentRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check payment: %w", err)
	}
	if !exists {
		return domainErrors.ErrPaymentNotFound
	}
	return domainErrors.ErrConcurrentModification
}

func (r *PaymentRepository) insertChildren(ctx context.Context, paymentID uuid.UUID, interactions []payment.Interaction, transactions []payment.Transaction) error {
	for _, in := range interactions {
		fields, err := json.Marshal(in.Fields)
		if err != nil {
			return fmt.Errorf("marshal interaction fields: %w", err)
		}
		if _, err := r.db(ctx).Exec(ctx,
			`INSERT INTO payment_interactions (payment_id, type_id, fields, created_at)
			 VALUES ($1, $2::uuid, $3, $4)`,
			paymentID, in.TypeID, fields, in.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
	}

	for _, tx := range transactions {
		if _, err := r.db(ctx).Exec(ctx,
			`INSERT INTO payment_transactions (id, payment_id, type, amount, currency, occurred_at, interaction_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			tx.ID, paymentID, string(tx.Type), tx.Amount.Amount.String(), tx.Amount.Currency,
			tx.Timestamp, tx.InteractionID,
		); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return nil
}

func (r *PaymentRepository) loadChildren(ctx context.Context, p *payment.Payment) error {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT type_id::text, fields, created_at
		 FROM payment_interactions WHERE payment_id = $1 ORDER BY seq ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			in     payment.Interaction
			fields []byte
		)
		if err := rows.Scan(&in.TypeID, &fields, &in.CreatedAt); err != nil {
			return fmt.Errorf("scan interaction: %w", err)
		}
		if err := json.Unmarshal(fields, &in.Fields); err != nil {
			return fmt.Errorf("unmarshal interaction fields: %w", err)
		}
		p.Interactions = append(p.Interactions, in)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	txRows, err := r.db(ctx).Query(ctx,
		`SELECT id, type, amount::text, currency, occurred_at, interaction_id
		 FROM payment_transactions WHERE payment_id = $1 ORDER BY seq ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	defer txRows.Close()

	for txRows.Next() {
		var (
			tx                   payment.Transaction
			txType, amount, curr string
		)
		if err := txRows.Scan(&tx.ID, &txType, &amount, &curr, &tx.Timestamp, &tx.InteractionID); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Amount, err = parseMoney(amount, curr); err != nil {
			return fmt.Errorf("parse transaction amount: %w", err)
		}
		tx.Type = payment.TransactionType(txType)
		p.Transactions = append(p.Transactions, tx)
	}
	return txRows.Err()
}

// scanPayment scans the payment row; child records are loaded separately.
func (r *PaymentRepository) scanPayment(s scanner) (*payment.Payment, error) {
	p := &payment.Payment{}
	var (
		planned, currency  string
		paid, paidCurrency *string
	)
	err := s.Scan(
		&p.ID, &p.Version, &p.CustomerID, &planned, &currency,
		&paid, &paidCurrency, &p.InterfaceID, &p.MethodInfo.PaymentInterface, &p.MethodInfo.Method,
		&p.Status.InterfaceCode, &p.Status.InterfaceText, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if p.AmountPlanned, err = parseMoney(planned, currency); err != nil {
		return nil, fmt.Errorf("parse amount planned: %w", err)
	}
	if p.AmountPaid, err = parseOptionalMoney(paid, paidCurrency); err != nil {
		return nil, fmt.Errorf("parse amount paid: %w", err)
	}
	return p, nil
}
