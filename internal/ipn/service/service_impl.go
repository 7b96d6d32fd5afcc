package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/makehaven/paypal-inventory-listener/internal/clock"
	"github.com/makehaven/paypal-inventory-listener/internal/config"
	idempotencydomain "github.com/makehaven/paypal-inventory-listener/internal/idempotency/domain"
	inventorydomain "github.com/makehaven/paypal-inventory-listener/internal/inventory/domain"
	ipndomain "github.com/makehaven/paypal-inventory-listener/internal/ipn/domain"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Cfg       config.Config
	Verifier  ipndomain.Verifier
	Dedup     idempotencydomain.Store
	Inventory inventorydomain.Service
	Events    ipndomain.EventRepository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	cfg       config.Config
	verifier  ipndomain.Verifier
	dedup     idempotencydomain.Store
	inventory inventorydomain.Service
	events    ipndomain.EventRepository
}

func NewService(p Params) ipndomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ipn.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Cfg,
		verifier:  p.Verifier,
		dedup:     p.Dedup,
		inventory: p.Inventory,
		events:    p.Events,
	}
}

// Process runs one notification through the full pipeline: verify, guard,
// dedup-check, extract, emit, record. Every return path is an acknowledged
// terminal state; the caller must answer the sender with success regardless.
func (s *Service) Process(ctx context.Context, rawBody string, trustedLocal bool) error {
	payload, err := ipndomain.ParsePayload(rawBody)
	if err != nil {
		s.log.Warn("notification body is not urlencoded form data", zap.Error(err))
		s.finish(ctx, nil, "", ipndomain.OutcomeInvalidPayload)
		return ipndomain.ErrInvalidPayload
	}

	if !trustedLocal {
		if err := s.verifier.Verify(ctx, rawBody); err != nil {
			s.log.Warn("notification failed origin verification", zap.Error(err))
			s.finish(ctx, payload, payload.Get("txn_id"), ipndomain.OutcomeVerificationFailed)
			return fmt.Errorf("%w: %v", ipndomain.ErrVerificationFailed, err)
		}
	}

	txn := ipndomain.TransactionFromPayload(payload)

	if txn.PaymentStatus != ipndomain.PaymentStatusCompleted {
		s.log.Warn("skipping notification with non-completed payment status",
			zap.String("payment_status", txn.PaymentStatus),
		)
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeNotCompleted)
		return ipndomain.ErrPaymentNotCompleted
	}

	if txn.TransactionID == "" {
		s.log.Warn("skipping notification with missing txn_id")
		s.finish(ctx, payload, "", ipndomain.OutcomeMissingTxnID)
		return ipndomain.ErrMissingTransactionID
	}

	if !txn.TypeAccepted() {
		s.log.Warn("skipping notification with unsupported txn_type",
			zap.String("txn_type", txn.TransactionType),
			zap.String("txn_id", txn.TransactionID),
		)
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeUnsupportedType)
		return ipndomain.ErrUnsupportedTransactionType
	}

	if txn.Currency != "" && txn.Currency != s.cfg.SupportedCurrency {
		s.log.Warn("skipping notification with unexpected currency",
			zap.String("currency", txn.Currency),
			zap.String("txn_id", txn.TransactionID),
		)
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeUnsupportedCcy)
		return ipndomain.ErrUnsupportedCurrency
	}

	if !txn.ReceiverMatches(s.cfg.PayPalBusinessID) {
		s.log.Warn("skipping notification with mismatched business receiver",
			zap.String("txn_id", txn.TransactionID),
		)
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeReceiverMismatch)
		return ipndomain.ErrReceiverMismatch
	}

	duplicate, err := s.alreadyProcessed(ctx, txn)
	if err != nil {
		// Without a reliable dedup answer, creating adjustments risks a
		// double deduction; stop and let the sender's retry try again.
		s.log.Error("idempotency lookup failed", zap.Error(err), zap.String("txn_id", txn.TransactionID))
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeDedupError)
		return err
	}
	if duplicate {
		s.log.Info("skipping duplicate notification", zap.String("txn_id", txn.TransactionID))
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeDuplicate)
		return ipndomain.ErrDuplicateNotification
	}

	items := extractLineItems(payload, s.log.With(zap.String("txn_id", txn.TransactionID)))
	created := s.emitAdjustments(ctx, txn, items)

	if !created {
		s.log.Warn("notification did not create inventory adjustments",
			zap.String("txn_id", txn.TransactionID),
		)
		s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeNoAdjustments)
		return ipndomain.ErrNoAdjustmentsCreated
	}

	s.recordKeys(ctx, txn)
	s.finish(ctx, payload, txn.TransactionID, ipndomain.OutcomeProcessed)
	return nil
}

// alreadyProcessed checks both dedup identities; either one suffices to
// suppress reprocessing.
func (s *Service) alreadyProcessed(ctx context.Context, txn ipndomain.Transaction) (bool, error) {
	seen, err := s.dedup.Has(ctx, idempotencydomain.TransactionKey(txn.TransactionID))
	if err != nil {
		return false, err
	}
	if seen {
		return true, nil
	}
	if txn.TrackingID == "" {
		return false, nil
	}
	return s.dedup.Has(ctx, idempotencydomain.TrackingKey(txn.TrackingID))
}

// emitAdjustments persists one adjustment per line item. Failures are
// isolated per item; the return value reports whether at least one
// adjustment was created.
func (s *Service) emitAdjustments(ctx context.Context, txn ipndomain.Transaction, items []ipndomain.LineItem) bool {
	created := false
	for _, item := range items {
		quantityChange := -item.Quantity
		if txn.SaleSubtype == ipndomain.SaleSubtypeTabCheckout {
			// Inventory was deducted when the item went on the tab;
			// record the sale without a second deduction.
			quantityChange = 0
		}

		s.log.Info("recording sale",
			zap.String("txn_id", txn.TransactionID),
			zap.Int64("material_ref", item.MaterialRef),
			zap.Int("quantity", item.Quantity),
		)

		_, err := s.inventory.CreateAdjustment(ctx, inventorydomain.NewAdjustment{
			MaterialRef:    item.MaterialRef,
			QuantityChange: quantityChange,
			Reason:         inventorydomain.ReasonSale,
			Memo:           buildMemo(txn, item),
		})
		if err != nil {
			s.log.Error("failed to create inventory adjustment",
				zap.Int64("material_ref", item.MaterialRef),
				zap.Error(err),
			)
			continue
		}
		created = true
		metrics.Listener().AdjustmentCreated()
	}
	return created
}

// recordKeys marks both dedup identities as processed. A failure here is
// logged but not fatal: the adjustments already exist and reprocessing is
// guarded by whichever key did land.
func (s *Service) recordKeys(ctx context.Context, txn ipndomain.Transaction) {
	now := s.clock.Now()
	if err := s.dedup.Set(ctx, idempotencydomain.TransactionKey(txn.TransactionID), now); err != nil {
		s.log.Error("failed to record transaction idempotency key",
			zap.String("txn_id", txn.TransactionID),
			zap.Error(err),
		)
	}
	if txn.TrackingID == "" {
		return
	}
	if err := s.dedup.Set(ctx, idempotencydomain.TrackingKey(txn.TrackingID), now); err != nil {
		s.log.Error("failed to record tracking idempotency key",
			zap.String("ipn_track_id", txn.TrackingID),
			zap.Error(err),
		)
	}
}

// finish records the terminal outcome on the audit trail and the outcome
// metric. Audit failures only log; they never change the pipeline result.
func (s *Service) finish(ctx context.Context, payload ipndomain.Payload, transactionID string, outcome string) {
	metrics.Listener().NotificationProcessed(outcome)

	var raw datatypes.JSON
	if payload != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			raw = datatypes.JSON(encoded)
		}
	}
	event := &ipndomain.EventRecord{
		ID:            s.genID.Generate(),
		TransactionID: transactionID,
		Outcome:       outcome,
		Payload:       raw,
		ReceivedAt:    s.clock.Now(),
	}
	if err := s.events.Insert(ctx, s.db, event); err != nil {
		s.log.Error("failed to record notification event",
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

func buildMemo(txn ipndomain.Transaction, item ipndomain.LineItem) string {
	payerName := txn.PayerName
	if payerName == "" {
		payerName = "Unknown buyer"
	}
	payerEmail := txn.PayerEmail
	if payerEmail == "" {
		payerEmail = "no-email"
	}
	itemName := item.DisplayName
	if itemName == "" {
		itemName = "Unknown item"
	}
	memo := fmt.Sprintf("Sold to %s (%s) - Item: %s", payerName, payerEmail, itemName)
	if txn.BuyerID != "" {
		memo = "[UID:" + txn.BuyerID + "] " + memo
	}
	return memo
}
