package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/makehaven/paypal-inventory-listener/internal/config"
	idempotencyrepo "github.com/makehaven/paypal-inventory-listener/internal/idempotency/repository"
	inventorydomain "github.com/makehaven/paypal-inventory-listener/internal/inventory/domain"
	inventoryrepo "github.com/makehaven/paypal-inventory-listener/internal/inventory/repository"
	inventoryservice "github.com/makehaven/paypal-inventory-listener/internal/inventory/service"
	ipndomain "github.com/makehaven/paypal-inventory-listener/internal/ipn/domain"
	ipnrepo "github.com/makehaven/paypal-inventory-listener/internal/ipn/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type verifierFunc func(ctx context.Context, rawBody string) error

func (f verifierFunc) Verify(ctx context.Context, rawBody string) error {
	return f(ctx, rawBody)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestProcessSkipsNonCompletedPayment(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Pending",
		"txn_id":         "TX-PENDING",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), body, true)
	if !errors.Is(err, ipndomain.ErrPaymentNotCompleted) {
		t.Fatalf("expected payment_not_completed, got %v", err)
	}
	assertCounts(t, db, 0, 0)
}

func TestProcessCompletedCartCreatesAdjustments(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-CART",
		"txn_type":       "cart",
		"mc_currency":    "USD",
		"payer_email":    "ada@example.com",
		"first_name":     "Ada",
		"last_name":      "Lovelace",
		"item_number1":   "101",
		"quantity1":      "2",
		"item_name1":     "Plywood",
		"item_number2":   "202",
		"quantity2":      "1",
		"item_name2":     "Acrylic",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}

	adjustments := loadAdjustments(t, db)
	if len(adjustments) != 2 {
		t.Fatalf("expected 2 adjustments, got %d", len(adjustments))
	}
	if adjustments[0].QuantityChange != -2 || adjustments[1].QuantityChange != -1 {
		t.Fatalf("unexpected quantity changes %+v", adjustments)
	}
	if adjustments[0].Reason != inventorydomain.ReasonSale {
		t.Fatalf("unexpected reason %q", adjustments[0].Reason)
	}
	assertCounts(t, db, 2, 1)
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-DUP",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := svc.Process(context.Background(), body, true)
	if !errors.Is(err, ipndomain.ErrDuplicateNotification) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	assertCounts(t, db, 1, 1)
}

func TestProcessTrackingIDSufficesForDedup(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	first := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-A",
		"ipn_track_id":   "TRACK-1",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), first, true); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// Same delivery attempt under a fresh txn_id must still be suppressed
	// by the shared tracking id.
	second := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-B",
		"ipn_track_id":   "TRACK-1",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), second, true)
	if !errors.Is(err, ipndomain.ErrDuplicateNotification) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	assertCounts(t, db, 1, 2)
}

func TestProcessSkipsInvalidLineItemOnly(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-PARTIAL",
		"item_number1":   "101",
		"quantity1":      "1",
		"item_number2":   "202",
		"quantity2":      "1",
		"item_number3":   "not-a-material",
		"quantity3":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}
	assertCounts(t, db, 2, 1)
}

func TestProcessNormalizesSingleItemPayload(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-SINGLE",
		"item_number":    "42",
		"quantity":       "3",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}

	adjustments := loadAdjustments(t, db)
	if len(adjustments) != 1 {
		t.Fatalf("expected 1 adjustment, got %d", len(adjustments))
	}
	if adjustments[0].MaterialRef != 42 || adjustments[0].QuantityChange != -3 {
		t.Fatalf("unexpected adjustment %+v", adjustments[0])
	}
}

func TestProcessTabCheckoutRecordsZeroChange(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-TAB",
		"custom":         `{"type":"tab_checkout"}`,
		"item_number1":   "101",
		"quantity1":      "5",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}

	adjustments := loadAdjustments(t, db)
	if len(adjustments) != 1 {
		t.Fatalf("expected 1 adjustment, got %d", len(adjustments))
	}
	if adjustments[0].QuantityChange != 0 {
		t.Fatalf("expected zero change for tab checkout, got %d", adjustments[0].QuantityChange)
	}
}

func TestProcessComposesMemoWithBuyerID(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-MEMO",
		"payer_email":    "ada@example.com",
		"first_name":     "Ada",
		"last_name":      "Lovelace",
		"custom":         `{"uid":"member-7"}`,
		"item_number1":   "101",
		"quantity1":      "1",
		"item_name1":     "Plywood",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}

	adjustments := loadAdjustments(t, db)
	want := "[UID:member-7] Sold to Ada Lovelace (ada@example.com) - Item: Plywood"
	if adjustments[0].Memo != want {
		t.Fatalf("unexpected memo %q", adjustments[0].Memo)
	}
}

func TestProcessMemoFallbacks(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-FALLBACK",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}

	adjustments := loadAdjustments(t, db)
	want := "Sold to Unknown buyer (no-email) - Item: Unknown item"
	if adjustments[0].Memo != want {
		t.Fatalf("unexpected memo %q", adjustments[0].Memo)
	}
}

func TestProcessRejectsReceiverMismatch(t *testing.T) {
	cfg := defaultConfig()
	cfg.PayPalBusinessID = "shop@example.com"
	svc, db := setupPipeline(t, cfg, rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-RCVR",
		"receiver_email": "other@example.com",
		"business":       "someone@example.com",
		"receiver_id":    "RCVR99",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), body, true)
	if !errors.Is(err, ipndomain.ErrReceiverMismatch) {
		t.Fatalf("expected receiver mismatch, got %v", err)
	}
	assertCounts(t, db, 0, 0)
}

func TestProcessAcceptsAnyReceiverCandidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.PayPalBusinessID = "RCVR42"
	svc, db := setupPipeline(t, cfg, rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-RCVR-OK",
		"receiver_email": "other@example.com",
		"receiver_id":    "RCVR42",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}
	assertCounts(t, db, 1, 1)
}

func TestProcessVerificationFailureHasNoSideEffects(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), verifierFunc(func(ctx context.Context, rawBody string) error {
		return ipndomain.ErrVerificationRejected
	}))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-UNVERIFIED",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), body, false)
	if !errors.Is(err, ipndomain.ErrVerificationFailed) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	assertCounts(t, db, 0, 0)
}

func TestProcessTrustedLocalSkipsVerification(t *testing.T) {
	called := false
	svc, db := setupPipeline(t, defaultConfig(), verifierFunc(func(ctx context.Context, rawBody string) error {
		called = true
		return ipndomain.ErrVerificationRejected
	}))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-LOCAL",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("process: %v", err)
	}
	if called {
		t.Fatalf("verifier must not be called for trusted local origins")
	}
	assertCounts(t, db, 1, 1)
}

func TestProcessMissingTransactionID(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), body, true)
	if !errors.Is(err, ipndomain.ErrMissingTransactionID) {
		t.Fatalf("expected missing txn id, got %v", err)
	}
	assertCounts(t, db, 0, 0)
}

func TestProcessRejectsUnsupportedTransactionType(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-SUBSCR",
		"txn_type":       "subscr_payment",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), body, true)
	if !errors.Is(err, ipndomain.ErrUnsupportedTransactionType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	assertCounts(t, db, 0, 0)
}

func TestProcessRejectsUnsupportedCurrency(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-EUR",
		"mc_currency":    "EUR",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), body, true)
	if !errors.Is(err, ipndomain.ErrUnsupportedCurrency) {
		t.Fatalf("expected unsupported currency, got %v", err)
	}
	assertCounts(t, db, 0, 0)
}

func TestProcessNoActionableItemsPermitsRedelivery(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	broken := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-RETRY",
		"item_number1":   "not-a-material",
		"quantity1":      "1",
	})
	err := svc.Process(context.Background(), broken, true)
	if !errors.Is(err, ipndomain.ErrNoAdjustmentsCreated) {
		t.Fatalf("expected no adjustments, got %v", err)
	}
	assertCounts(t, db, 0, 0)

	corrected := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-RETRY",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), corrected, true); err != nil {
		t.Fatalf("corrected redelivery: %v", err)
	}
	assertCounts(t, db, 1, 1)
}

func TestProcessRecordsAuditTrail(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-AUDIT",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.Process(context.Background(), body, true); !errors.Is(err, ipndomain.ErrDuplicateNotification) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	var outcomes []string
	if err := db.Model(&ipndomain.EventRecord{}).
		Where("transaction_id = ?", "TX-AUDIT").
		Order("id").
		Pluck("outcome", &outcomes).Error; err != nil {
		t.Fatalf("load outcomes: %v", err)
	}
	if len(outcomes) != 2 || outcomes[0] != ipndomain.OutcomeProcessed || outcomes[1] != ipndomain.OutcomeDuplicate {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestProcessRecordsDedupLookupFailure(t *testing.T) {
	svc, db := setupPipeline(t, defaultConfig(), rejectAllVerifier(t))
	if err := db.Exec(`DROP TABLE idempotency_keys`).Error; err != nil {
		t.Fatalf("drop idempotency_keys: %v", err)
	}

	body := encodeBody(map[string]string{
		"payment_status": "Completed",
		"txn_id":         "TX-DEGRADED",
		"item_number1":   "101",
		"quantity1":      "1",
	})
	if err := svc.Process(context.Background(), body, true); err == nil {
		t.Fatalf("expected a dedup lookup error")
	}

	if len(loadAdjustments(t, db)) != 0 {
		t.Fatalf("expected no adjustments when dedup cannot be trusted")
	}
	var outcomes []string
	if err := db.Model(&ipndomain.EventRecord{}).
		Where("transaction_id = ?", "TX-DEGRADED").
		Pluck("outcome", &outcomes).Error; err != nil {
		t.Fatalf("load outcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0] != ipndomain.OutcomeDedupError {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func rejectAllVerifier(t *testing.T) verifierFunc {
	return func(ctx context.Context, rawBody string) error {
		t.Helper()
		return ipndomain.ErrVerificationRejected
	}
}

func encodeBody(fields map[string]string) string {
	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	return values.Encode()
}

func loadAdjustments(t *testing.T, db *gorm.DB) []inventorydomain.InventoryAdjustment {
	t.Helper()
	var adjustments []inventorydomain.InventoryAdjustment
	if err := db.Order("id").Find(&adjustments).Error; err != nil {
		t.Fatalf("load adjustments: %v", err)
	}
	return adjustments
}

func assertCounts(t *testing.T, db *gorm.DB, wantAdjustments, wantKeys int64) {
	t.Helper()
	var adjustments int64
	if err := db.Table("inventory_adjustments").Count(&adjustments).Error; err != nil {
		t.Fatalf("count adjustments: %v", err)
	}
	if adjustments != wantAdjustments {
		t.Fatalf("expected %d adjustments, got %d", wantAdjustments, adjustments)
	}
	var keys int64
	if err := db.Table("idempotency_keys").Count(&keys).Error; err != nil {
		t.Fatalf("count idempotency keys: %v", err)
	}
	if keys != wantKeys {
		t.Fatalf("expected %d idempotency keys, got %d", wantKeys, keys)
	}
}

func defaultConfig() config.Config {
	return config.Config{
		SupportedCurrency: "USD",
	}
}

func setupPipeline(t *testing.T, cfg config.Config, verify verifierFunc) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS inventory_adjustments (
			id BIGINT PRIMARY KEY,
			material_ref BIGINT NOT NULL,
			quantity_change INTEGER NOT NULL,
			reason TEXT NOT NULL,
			memo TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			recorded_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notification_events (
			id BIGINT PRIMARY KEY,
			transaction_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			payload TEXT,
			received_at TIMESTAMP NOT NULL
		)`,
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new snowflake node: %v", err)
	}
	testClock := fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	inventorySvc := inventoryservice.NewService(inventoryservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: testClock,
		Repo:  inventoryrepo.Provide(),
	})
	dedup := idempotencyrepo.Provide(idempotencyrepo.Params{
		DB:  db,
		Log: zap.NewNop(),
	})

	svc := &Service{
		db:        db,
		log:       zap.NewNop(),
		genID:     node,
		clock:     testClock,
		cfg:       cfg,
		verifier:  verify,
		dedup:     dedup,
		inventory: inventorySvc,
		events:    ipnrepo.Provide(),
	}
	return svc, db
}
