package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTipExists indicates a tip with the same payment hash was already recorded.
var ErrTipExists = errors.New("tip already recorded")

// ErrTipNotFound indicates no tip matches the lookup.
var ErrTipNotFound = errors.New("tip not found")

// Tip is an issued invoice as recorded by the CLI. Settlement is not tracked.
type Tip struct {
	ID             int64
	PaymentHash    string
	HashDecoded    bool
	Recipient      string
	AmountSats     int64
	Description    string
	Comment        string
	PaymentRequest string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// RecordTip stores t and returns it with its ID set.
func (db *DB) RecordTip(ctx context.Context, t Tip) (*Tip, error) {
	if t.AmountSats <= 0 {
		return nil, fmt.Errorf("recording tip: amount must be positive, got %d", t.AmountSats)
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO tips (payment_hash, hash_decoded, recipient, amount_sats, description,
			comment, payment_request, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.PaymentHash, t.HashDecoded, t.Recipient, t.AmountSats, t.Description,
		t.Comment, t.PaymentRequest, t.CreatedAt.Unix(), t.ExpiresAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTipExists
		}
		return nil, fmt.Errorf("recording tip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting tip id: %w", err)
	}

	t.ID = id
	t.CreatedAt = time.Unix(t.CreatedAt.Unix(), 0).UTC()
	t.ExpiresAt = time.Unix(t.ExpiresAt.Unix(), 0).UTC()
	return &t, nil
}

const tipColumns = `id, payment_hash, hash_decoded, recipient, amount_sats, description,
	comment, payment_request, created_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTip(row rowScanner) (*Tip, error) {
	var (
		t                  Tip
		created, expiresAt int64
	)
	err := row.Scan(&t.ID, &t.PaymentHash, &t.HashDecoded, &t.Recipient, &t.AmountSats,
		&t.Description, &t.Comment, &t.PaymentRequest, &created, &expiresAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &t, nil
}

// GetTipByHash returns the tip recorded for paymentHash.
func (db *DB) GetTipByHash(ctx context.Context, paymentHash string) (*Tip, error) {
	t, err := scanTip(db.QueryRowContext(ctx,
		`SELECT `+tipColumns+` FROM tips WHERE payment_hash = ?`, paymentHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tip: %w", err)
	}
	return t, nil
}

// ListTips returns the most recent tips, newest first. A limit <= 0 returns all.
func (db *DB) ListTips(ctx context.Context, limit int) ([]Tip, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+tipColumns+` FROM tips ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tips []Tip
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tip: %w", err)
		}
		tips = append(tips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tips: %w", err)
	}
	return tips, nil
}

// TotalTipped returns the sum of recorded tips for recipient.
func (db *DB) TotalTipped(ctx context.Context, recipient string) (int64, error) {
	var total sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT SUM(amount_sats) FROM tips WHERE recipient = ?
	`, recipient).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("querying tip total: %w", err)
	}
	return total.Int64, nil
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	// SQLite unique constraint error contains "UNIQUE constraint failed"
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
