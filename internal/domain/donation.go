package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationStatus string

const (
	StatusPending DonationStatus = "pending"
	StatusPaid    DonationStatus = "paid"
)

// PixArtifacts is the gateway-supplied presentation data for a PIX charge.
// Any field may be empty depending on what the provider returned.
type PixArtifacts struct {
	CopyPaste string
	SecureURL string
	QRCodeURL string
	ExpiresAt string
}

// UTMParams are opaque tracking parameters supplied by the client at
// creation and passed through unchanged to every attribution report.
type UTMParams struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
}

// Donation is the unit of state. Everything except Status is immutable
// once the record is inserted.
type Donation struct {
	ID          string
	Amount      decimal.Decimal // major currency units
	Status      DonationStatus
	GatewayTxID string
	Pix         PixArtifacts
	UTM         *UTMParams
	CreatedAt   time.Time
}

// AmountMinor converts the stored major-unit amount to minor units
// (centavos), rounding to the nearest cent.
func (d Donation) AmountMinor() int64 {
	return d.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
