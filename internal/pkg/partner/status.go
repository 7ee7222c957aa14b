package partner

import (
	"strings"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// MapPaymentStatus translates the gateway payment vocabulary into the local
// transaction vocabulary. The mapping is total: anything unknown lands on
// pending rather than failing ingestion.
func MapPaymentStatus(gatewayStatus string) string {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case gateway.PaymentStatusSucceeded:
		return models.TransactionStatusCompleted
	case gateway.PaymentStatusCanceled:
		return models.TransactionStatusCancelled
	case gateway.PaymentStatusWaitingForCapture, gateway.PaymentStatusPending:
		return models.TransactionStatusPending
	default:
		return models.TransactionStatusPending
	}
}

// MapMerchantStatus normalizes the gateway merchant status into the local
// lifecycle vocabulary. Unknown statuses keep the merchant pending.
func MapMerchantStatus(gatewayStatus string) string {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case gateway.MerchantStatusActive:
		return models.MerchantStatusActive
	case gateway.MerchantStatusPending, "":
		return models.MerchantStatusPending
	default:
		return models.MerchantStatusPending
	}
}
