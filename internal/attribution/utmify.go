// Package attribution reports order lifecycle events to UTMify. The order
// shape is fixed business policy: one line item for the donation, the full
// amount attributed as commission, zero gateway fee.
package attribution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doacao112-dotcom/Freefire/internal/domain"
)

const (
	StatusWaitingPayment = "waiting_payment"
	StatusPaid           = "paid"

	platform      = "produto teste"
	paymentMethod = "pix"

	productName = "Doação"
	planID      = "doacao_unica"
	planName    = "Doação Única"

	donorName  = "Doação Anônima"
	donorEmail = "anon@donations.local"
)

// Error is a non-success response from UTMify. Callers on the asynchronous
// paths log it and move on; only the synchronous paths surface it.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return "utmify: " + e.Body
	}
	return fmt.Sprintf("utmify: status %d: %s", e.StatusCode, e.Body)
}

// Order is one lifecycle event for a donation.
type Order struct {
	OrderID       string
	Status        string // StatusWaitingPayment or StatusPaid
	AmountMinor   int64
	TransactionID string
	UTM           *domain.UTMParams
	CreatedAt     time.Time
	ApprovedAt    *time.Time
	CustomerIP    string
	IsTest        bool
}

type Reporter struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

func NewReporter(baseURL, apiToken string) *Reporter {
	return &Reporter{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type orderCustomer struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Document *string `json:"document"`
	Country  string  `json:"country"`
	IP       string  `json:"ip"`
}

type orderProduct struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PlanID       string `json:"planId"`
	PlanName     string `json:"planName"`
	Quantity     int    `json:"quantity"`
	PriceInCents int64  `json:"priceInCents"`
}

type trackingParameters struct {
	Src         *string `json:"src"`
	Sck         *string `json:"sck"`
	UTMSource   *string `json:"utm_source"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMMedium   *string `json:"utm_medium"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

type orderCommission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

type orderRequest struct {
	OrderID            string             `json:"orderId"`
	Platform           string             `json:"platform"`
	PaymentMethod      string             `json:"paymentMethod"`
	Status             string             `json:"status"`
	CreatedAt          string             `json:"createdAt"`
	ApprovedDate       *string            `json:"approvedDate"`
	RefundedAt         *string            `json:"refundedAt"`
	Customer           orderCustomer      `json:"customer"`
	Products           []orderProduct     `json:"products"`
	TrackingParameters trackingParameters `json:"trackingParameters"`
	Commission         orderCommission    `json:"commission"`
	IsTest             bool               `json:"isTest"`
}

// utcString is the timestamp format UTMify expects, always UTC.
func utcString(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ReportOrder submits one order event. Non-2xx responses come back as
// *Error; transport failures likewise.
func (r *Reporter) ReportOrder(ctx context.Context, o Order) error {
	var approved *string
	if o.ApprovedAt != nil {
		s := utcString(*o.ApprovedAt)
		approved = &s
	}

	tracking := trackingParameters{}
	if o.UTM != nil {
		tracking.UTMSource = optional(o.UTM.Source)
		tracking.UTMCampaign = optional(o.UTM.Campaign)
		tracking.UTMMedium = optional(o.UTM.Medium)
		tracking.UTMContent = optional(o.UTM.Content)
		tracking.UTMTerm = optional(o.UTM.Term)
	}

	ip := o.CustomerIP
	if ip == "" {
		ip = "0.0.0.0"
	}

	body := orderRequest{
		OrderID:       o.OrderID,
		Platform:      platform,
		PaymentMethod: paymentMethod,
		Status:        o.Status,
		CreatedAt:     utcString(o.CreatedAt),
		ApprovedDate:  approved,
		Customer: orderCustomer{
			Name:    donorName,
			Email:   donorEmail,
			Country: "BR",
			IP:      ip,
		},
		Products: []orderProduct{{
			ID:           o.TransactionID,
			Name:         productName,
			PlanID:       planID,
			PlanName:     planName,
			Quantity:     1,
			PriceInCents: o.AmountMinor,
		}},
		TrackingParameters: tracking,
		Commission: orderCommission{
			TotalPriceInCents:     o.AmountMinor,
			GatewayFeeInCents:     0,
			UserCommissionInCents: o.AmountMinor,
		},
		IsTest: o.IsTest,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api-credentials/orders", bytes.NewReader(payload))
	if err != nil {
		return &Error{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", r.apiToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return &Error{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &Error{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}
