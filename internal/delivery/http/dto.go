package httpd

import (
	"github.com/shopspring/decimal"
)

type DocumentPayload struct {
	Type   string `json:"type"`
	Number string `json:"number" validate:"required"`
}

type CustomerPayload struct {
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Phone    string          `json:"phone"`
	Document DocumentPayload `json:"document"`
}

type UTMPayload struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Content  string `json:"content"`
	Term     string `json:"term"`
}

type CreateDonationReq struct {
	Amount   decimal.Decimal  `json:"amount" validate:"required"`
	Customer *CustomerPayload `json:"customer"`
	UTM      *UTMPayload      `json:"utm"`
}

type CreateDonationResp struct {
	DonationID    string  `json:"donationId"`
	TransactionID string  `json:"transactionId"`
	SecureURL     *string `json:"secureUrl"`
	CopyPaste     *string `json:"copyPaste"`
	QRCodeURL     *string `json:"qrCodeUrl"`
	ExpiresAt     *string `json:"expiresAt"`
	Status        string  `json:"status"`
}

type GetDonationResp struct {
	DonationID string  `json:"donationId"`
	Status     string  `json:"status"`
	Amount     string  `json:"amount"`
	SecureURL  *string `json:"secureUrl"`
	QRCodeURL  *string `json:"qrCodeUrl"`
	CopyPaste  *string `json:"copyPaste"`
}

type SyncDonationResp struct {
	DonationID string `json:"donationId"`
	Status     string `json:"status"`
	SkalePay   string `json:"skalepay"`
}

type WebhookResp struct {
	Received bool `json:"received"`
}

type DebugDonationItem struct {
	DonationID   string `json:"donationId"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	SkalePayTx   string `json:"skalepayTxId"`
	CreatedAtUTC string `json:"createdAtUtc"`
}

type DebugDonationsResp struct {
	Count int                 `json:"count"`
	Items []DebugDonationItem `json:"items"`
}

// nullable mirrors the wire format of absent gateway artifacts: explicit
// JSON null rather than an empty string.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
