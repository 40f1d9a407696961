package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

var baseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB}

	// Run migrations
	if err := db.Migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		t.Fatalf("migrating test db: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testTip(hash string) Tip {
	return Tip{
		PaymentHash:    hash,
		HashDecoded:    true,
		Recipient:      "alice@example.com",
		AmountSats:     1000,
		Description:    "Tip for support agent: 1000 sats",
		PaymentRequest: "lnbc10u1" + hash,
		CreatedAt:      baseTime,
		ExpiresAt:      baseTime.Add(time.Hour),
	}
}

func TestRecordAndGetTip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	in := testTip("0102")
	in.Comment = "thanks for the quick fix"

	rec, err := db.RecordTip(ctx, in)
	if err != nil {
		t.Fatalf("RecordTip: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected ID to be set")
	}

	got, err := db.GetTipByHash(ctx, "0102")
	if err != nil {
		t.Fatalf("GetTipByHash: %v", err)
	}
	if *got != *rec {
		t.Errorf("got %+v, want %+v", *got, *rec)
	}
	if !got.ExpiresAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("expires_at = %v", got.ExpiresAt)
	}
	if !got.HashDecoded {
		t.Error("expected hash_decoded to round trip")
	}
}

func TestRecordTipDuplicateHash(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	if _, err := db.RecordTip(ctx, testTip("dup")); err != nil {
		t.Fatalf("RecordTip: %v", err)
	}

	_, err := db.RecordTip(ctx, testTip("dup"))
	if !errors.Is(err, ErrTipExists) {
		t.Errorf("expected ErrTipExists, got %v", err)
	}
}

func TestRecordTipRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	tip := testTip("zero")
	tip.AmountSats = 0
	if _, err := db.RecordTip(ctx, tip); err == nil {
		t.Error("expected error for zero amount")
	}
}

func TestGetTipByHashNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTipByHash(context.Background(), "missing")
	if !errors.Is(err, ErrTipNotFound) {
		t.Errorf("expected ErrTipNotFound, got %v", err)
	}
}

func TestListTips(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	// Empty ledger
	tips, err := db.ListTips(ctx, 10)
	if err != nil {
		t.Fatalf("ListTips: %v", err)
	}
	if len(tips) != 0 {
		t.Errorf("expected 0 tips, got %d", len(tips))
	}

	for i, hash := range []string{"a", "b", "c"} {
		tip := testTip(hash)
		tip.CreatedAt = baseTime.Add(time.Duration(i) * time.Minute)
		if _, err := db.RecordTip(ctx, tip); err != nil {
			t.Fatalf("RecordTip(%s): %v", hash, err)
		}
	}

	tips, err = db.ListTips(ctx, 2)
	if err != nil {
		t.Fatalf("ListTips: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("expected 2 tips, got %d", len(tips))
	}
	if tips[0].PaymentHash != "c" || tips[1].PaymentHash != "b" {
		t.Errorf("expected newest first, got %s, %s", tips[0].PaymentHash, tips[1].PaymentHash)
	}

	all, err := db.ListTips(ctx, 0)
	if err != nil {
		t.Fatalf("ListTips: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 tips with no limit, got %d", len(all))
	}
}

func TestTotalTipped(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	total, err := db.TotalTipped(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("TotalTipped: %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0, got %d", total)
	}

	first := testTip("x")
	second := testTip("y")
	second.AmountSats = 250
	other := testTip("z")
	other.Recipient = "bob@example.com"

	for _, tip := range []Tip{first, second, other} {
		if _, err := db.RecordTip(ctx, tip); err != nil {
			t.Fatalf("RecordTip: %v", err)
		}
	}

	total, err = db.TotalTipped(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("TotalTipped: %v", err)
	}
	if total != 1250 {
		t.Errorf("expected 1250, got %d", total)
	}
}
