package service

import (
	"strconv"
	"strings"

	"github.com/makehaven/paypal-inventory-listener/internal/ipn/domain"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	skipReasonInvalidMaterial = "invalid_material_ref"
	skipReasonNonPositiveQty  = "non_positive_quantity"
)

// extractLineItems walks the positional item_number{N}/quantity{N}/
// item_name{N} families in order, starting at position 1 and stopping at the
// first gap. Single-item payloads that carry only unindexed fields are
// normalized into position 1 first. Defective positions are skipped, never
// fatal.
func extractLineItems(payload domain.Payload, log *zap.Logger) []domain.LineItem {
	normalizeSingleItem(payload)

	var items []domain.LineItem
	for position := 1; ; position++ {
		suffix := strconv.Itoa(position)
		refRaw, ok := payload["item_number"+suffix]
		if !ok {
			break
		}

		materialRef, err := strconv.ParseInt(strings.TrimSpace(refRaw), 10, 64)
		if err != nil {
			log.Warn("skipping line item with invalid material reference",
				zap.Int("position", position),
				zap.String("item_number", refRaw),
			)
			metrics.Listener().LineItemSkipped(skipReasonInvalidMaterial)
			continue
		}

		quantity := 1
		if qtyRaw, ok := payload["quantity"+suffix]; ok {
			quantity = coerceQuantity(qtyRaw)
		}
		if quantity <= 0 {
			log.Warn("skipping line item with non-positive quantity",
				zap.Int64("material_ref", materialRef),
				zap.Int("quantity", quantity),
			)
			metrics.Listener().LineItemSkipped(skipReasonNonPositiveQty)
			continue
		}

		items = append(items, domain.LineItem{
			MaterialRef: materialRef,
			Quantity:    quantity,
			DisplayName: payload["item_name"+suffix],
		})
	}
	return items
}

// normalizeSingleItem synthesizes position 1 from the unindexed field triple
// used by single-item checkouts, so extraction sees one uniform shape.
func normalizeSingleItem(payload domain.Payload) {
	if payload.Has("item_number1") || !payload.Has("item_number") {
		return
	}
	payload["item_number1"] = payload["item_number"]
	if qty, ok := payload["quantity"]; ok {
		payload["quantity1"] = qty
	} else {
		payload["quantity1"] = "1"
	}
	payload["item_name1"] = payload["item_name"]
}

// coerceQuantity parses a quantity field, truncating decimal values toward
// zero; anything unparseable counts as zero and is skipped by the caller.
func coerceQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	if quantity, err := strconv.Atoi(raw); err == nil {
		return quantity
	}
	if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(parsed)
	}
	return 0
}
