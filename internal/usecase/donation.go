package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/doacao112-dotcom/Freefire/internal/attribution"
	"github.com/doacao112-dotcom/Freefire/internal/domain"
	"github.com/doacao112-dotcom/Freefire/internal/gateway"
	"github.com/doacao112-dotcom/Freefire/internal/store"
)

// gatewayStatusPaid is the single status string SkalePay uses for settled
// payments. Every other value leaves local state untouched.
const gatewayStatusPaid = "paid"

var (
	ErrInvalidAmount        = errors.New("amount must be a positive number")
	ErrMissingTransactionID = errors.New("event payload has no transaction id")
)

// Gateway is the payment-gateway surface the lifecycle manager needs.
type Gateway interface {
	CreateTransaction(ctx context.Context, amountMinor int64, items []gateway.Item, customer gateway.Customer) (gateway.CreateResult, error)
	GetStatus(ctx context.Context, transactionID string) (string, error)
}

// Reporter submits order lifecycle events to the attribution provider.
type Reporter interface {
	ReportOrder(ctx context.Context, o attribution.Order) error
}

// DonationUsecase orchestrates the donation lifecycle:
// created -> waiting payment -> paid. Webhook delivery and manual sync can
// race; both completion paths funnel through markPaidAndReport, where the
// store's TryMarkPaid decides which caller owns the transition and its
// single paid report.
type DonationUsecase struct {
	store    *store.MemoryStore
	gateway  Gateway
	reporter Reporter
	log      *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewDonationUsecase(s *store.MemoryStore, g Gateway, r Reporter) *DonationUsecase {
	return &DonationUsecase{
		store:    s,
		gateway:  g,
		reporter: r,
		log:      slog.Default(),
		now:      time.Now,
	}
}

type CreateInput struct {
	Amount   decimal.Decimal
	Customer *gateway.Customer
	UTM      *domain.UTMParams
	ClientIP string
}

// defaultCustomer is the synthetic payer used when the client sends none.
// The CPF is syntactically valid test data.
var defaultCustomer = gateway.Customer{
	Name:     "Cliente Teste",
	Email:    "cliente@teste.com",
	Phone:    "11999999999",
	Document: gateway.Document{Type: "cpf", Number: "15350946056"},
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Create validates the amount, creates the gateway transaction, inserts the
// record and fires the waiting_payment report without blocking the caller.
// A gateway failure aborts the whole operation; nothing is stored.
func (u *DonationUsecase) Create(ctx context.Context, in CreateInput) (domain.Donation, error) {
	if !in.Amount.IsPositive() {
		return domain.Donation{}, ErrInvalidAmount
	}

	amountMinor := in.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	customer := defaultCustomer
	if in.Customer != nil {
		customer = *in.Customer
	}
	customer.Document.Type = "cpf"
	customer.Document.Number = digitsOnly(customer.Document.Number)

	items := []gateway.Item{{
		Title:     "Doação",
		UnitPrice: amountMinor,
		Quantity:  1,
		Tangible:  false,
	}}

	tx, err := u.gateway.CreateTransaction(ctx, amountMinor, items, customer)
	if err != nil {
		return domain.Donation{}, err
	}

	status := domain.StatusPending
	if tx.Status == gatewayStatusPaid {
		status = domain.StatusPaid
	}

	d := domain.Donation{
		ID:          uuid.New().String(),
		Amount:      in.Amount,
		Status:      status,
		GatewayTxID: tx.TransactionID,
		Pix: domain.PixArtifacts{
			CopyPaste: tx.CopyPaste,
			SecureURL: tx.SecureURL,
			ExpiresAt: tx.ExpiresAt,
		},
		UTM:       in.UTM,
		CreatedAt: u.now().UTC(),
	}

	if err := u.store.Insert(d); err != nil {
		return domain.Donation{}, err
	}

	u.report(ctx, attribution.Order{
		OrderID:       orderID(d.ID),
		Status:        attribution.StatusWaitingPayment,
		AmountMinor:   amountMinor,
		TransactionID: d.GatewayTxID,
		UTM:           d.UTM,
		CreatedAt:     d.CreatedAt,
		CustomerIP:    in.ClientIP,
	}, true)

	return d, nil
}

func (u *DonationUsecase) Get(id string) (domain.Donation, error) {
	return u.store.GetByID(id)
}

func (u *DonationUsecase) List() []domain.Donation {
	return u.store.Snapshot()
}

// WebhookEvent carries the fields the provider may use for the transaction
// identifier; payloads have been seen with any of the three names.
type WebhookEvent struct {
	ID            string `json:"id"`
	SecureID      string `json:"secureId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

func (e WebhookEvent) txID() string {
	switch {
	case e.ID != "":
		return e.ID
	case e.SecureID != "":
		return e.SecureID
	default:
		return e.TransactionID
	}
}

// HandleWebhook processes an inbound gateway postback. Safe to receive the
// same event any number of times: redeliveries observe the transition
// already done and send nothing.
func (u *DonationUsecase) HandleWebhook(ctx context.Context, ev WebhookEvent) error {
	txID := ev.txID()
	if txID == "" {
		return ErrMissingTransactionID
	}

	d, err := u.store.GetByGatewayTxID(txID)
	if err != nil {
		return err
	}

	if ev.Status != gatewayStatusPaid {
		return nil
	}
	return u.markPaidAndReport(ctx, d, true)
}

// Sync polls the gateway for the donation's current status and reconciles
// local state. Unlike the webhook path the paid report is awaited here, so
// a reporter failure is the caller's failure.
func (u *DonationUsecase) Sync(ctx context.Context, id string) (domain.DonationStatus, string, error) {
	d, err := u.store.GetByID(id)
	if err != nil {
		return "", "", err
	}
	if d.GatewayTxID == "" {
		return "", "", store.ErrNotFound
	}

	gwStatus, err := u.gateway.GetStatus(ctx, d.GatewayTxID)
	if err != nil {
		return "", "", err
	}

	if gwStatus == gatewayStatusPaid {
		if err := u.markPaidAndReport(ctx, d, false); err != nil {
			return "", "", err
		}
	}

	cur, err := u.store.GetByID(id)
	if err != nil {
		return "", "", err
	}
	return cur.Status, gwStatus, nil
}

// DebugPing sends a synchronous test order to the attribution provider and
// surfaces its failure, unlike every other call site.
func (u *DonationUsecase) DebugPing(ctx context.Context, clientIP string) (string, error) {
	id := "debug_" + uuid.New().String()
	err := u.reporter.ReportOrder(ctx, attribution.Order{
		OrderID:       id,
		Status:        attribution.StatusWaitingPayment,
		AmountMinor:   100,
		TransactionID: "tx_debug",
		UTM:           &domain.UTMParams{Source: "debug", Medium: "local", Campaign: "ping"},
		CreatedAt:     u.now().UTC(),
		CustomerIP:    clientIP,
		IsTest:        true,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// markPaidAndReport is the serialization point for the two completion
// triggers. TryMarkPaid guarantees exactly one caller sees a fresh
// transition, and only that caller sends the paid report.
func (u *DonationUsecase) markPaidAndReport(ctx context.Context, d domain.Donation, detach bool) error {
	alreadyPaid, err := u.store.TryMarkPaid(d.ID)
	if err != nil {
		return err
	}
	if alreadyPaid {
		return nil
	}

	approvedAt := u.now().UTC()
	order := attribution.Order{
		OrderID:       orderID(d.ID),
		Status:        attribution.StatusPaid,
		AmountMinor:   d.AmountMinor(),
		TransactionID: d.GatewayTxID,
		UTM:           d.UTM,
		CreatedAt:     d.CreatedAt,
		ApprovedAt:    &approvedAt,
	}
	return u.report(ctx, order, detach)
}

// report sends an order event, either awaited (failure propagates to the
// caller) or detached (runs in its own goroutine with a fresh context,
// since the triggering request may be long gone, and a failure is only
// logged). Wait drains the detached reports before shutdown.
func (u *DonationUsecase) report(ctx context.Context, order attribution.Order, detach bool) error {
	if !detach {
		return u.reporter.ReportOrder(ctx, order)
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if err := u.reporter.ReportOrder(context.Background(), order); err != nil {
			u.log.Error("attribution report failed",
				"order_id", order.OrderID,
				"status", order.Status,
				"transaction_id", order.TransactionID,
				"err", err)
		}
	}()
	return nil
}

// Wait blocks until all detached attribution reports have finished.
func (u *DonationUsecase) Wait() {
	u.wg.Wait()
}

func orderID(donationID string) string {
	return "donation_" + donationID
}
