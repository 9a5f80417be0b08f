package iapflow

import (
	"fmt"
	"strings"
)

const (
	WorkflowName = "iap_processing"

	ActivityVerifyReceipt    = "iap_verify_receipt"
	ActivityGrantEntitlement = "iap_grant_entitlement"
	ActivityCompensateGrant  = "iap_compensate_grant_entitlement"
	ActivityConfirmInventory = "iap_confirm_inventory"
	ActivityTrackEvent       = "iap_track_event"
)

// Input carries everything the purchase workflow needs; it is immutable after
// trigger time. TransactionID doubles as the idempotency key for every
// side-effecting call.
type Input struct {
	PlayerID      string `json:"playerId"`
	ProductID     string `json:"productId"`
	TransactionID string `json:"transactionId"`
	Platform      string `json:"platform"`
	ReceiptData   string `json:"receiptData"`
	Quantity      int    `json:"quantity"`
	PriceInCents  int64  `json:"priceInCents"`
	Currency      string `json:"currency"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.PlayerID) == "" {
		return fmt.Errorf("missing playerId")
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("missing productId")
	}
	if strings.TrimSpace(in.TransactionID) == "" {
		return fmt.Errorf("missing transactionId")
	}
	if strings.TrimSpace(in.Platform) == "" {
		return fmt.Errorf("missing platform")
	}
	if strings.TrimSpace(in.ReceiptData) == "" {
		return fmt.Errorf("missing receiptData")
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return nil
}

type Result struct {
	TransactionID   string   `json:"transactionId"`
	PlayerID        string   `json:"playerId"`
	ProductID       string   `json:"productId"`
	CurrencyGranted int64    `json:"currencyGranted"`
	ItemsGranted    []string `json:"itemsGranted,omitempty"`
	EventTracked    bool     `json:"eventTracked"`
	Outcome         string   `json:"outcome"`
}
