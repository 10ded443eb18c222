package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doacao112-dotcom/Freefire/internal/attribution"
	"github.com/doacao112-dotcom/Freefire/internal/domain"
	"github.com/doacao112-dotcom/Freefire/internal/gateway"
	"github.com/doacao112-dotcom/Freefire/internal/store"
)

type createCall struct {
	amountMinor int64
	items       []gateway.Item
	customer    gateway.Customer
}

type fakeGateway struct {
	mu          sync.Mutex
	createRes   gateway.CreateResult
	createErr   error
	status      string
	statusErr   error
	createCalls []createCall
}

func (f *fakeGateway) CreateTransaction(ctx context.Context, amountMinor int64, items []gateway.Item, customer gateway.Customer) (gateway.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{amountMinor, items, customer})
	return f.createRes, f.createErr
}

func (f *fakeGateway) GetStatus(ctx context.Context, transactionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

type fakeReporter struct {
	mu     sync.Mutex
	orders []attribution.Order
	err    error
}

func (f *fakeReporter) ReportOrder(ctx context.Context, o attribution.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return f.err
}

func (f *fakeReporter) byStatus(status string) []attribution.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []attribution.Order
	for _, o := range f.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

func newTestUsecase(gw *fakeGateway, rep *fakeReporter) *DonationUsecase {
	u := NewDonationUsecase(store.NewMemoryStore(), gw, rep)
	u.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return u
}

func waitingGateway() *fakeGateway {
	return &fakeGateway{
		createRes: gateway.CreateResult{
			TransactionID: "tx_1",
			Status:        "waiting_payment",
			CopyPaste:     "00020101emv",
			SecureURL:     "https://pay.example/tx_1",
		},
		status: "waiting_payment",
	}
}

func TestCreate_MinorUnitConversion(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromFloat(10.50)})
	require.NoError(t, err)

	require.Len(t, gw.createCalls, 1)
	assert.Equal(t, int64(1050), gw.createCalls[0].amountMinor)
	require.Len(t, gw.createCalls[0].items, 1)
	assert.Equal(t, int64(1050), gw.createCalls[0].items[0].UnitPrice)

	assert.Equal(t, domain.StatusPending, d.Status)
	assert.Equal(t, "tx_1", d.GatewayTxID)
	assert.True(t, d.Amount.Equal(decimal.NewFromFloat(10.50)), "record keeps major units")

	got, err := u.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(10.50)))

	u.Wait()
	waiting := rep.byStatus(attribution.StatusWaitingPayment)
	require.Len(t, waiting, 1)
	assert.Equal(t, "donation_"+d.ID, waiting[0].OrderID)
	assert.Equal(t, int64(1050), waiting[0].AmountMinor)
	assert.Equal(t, "tx_1", waiting[0].TransactionID)
}

func TestCreate_InvalidAmount(t *testing.T) {
	gw := waitingGateway()
	u := newTestUsecase(gw, &fakeReporter{})

	for _, amount := range []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromFloat(-3),
	} {
		_, err := u.Create(context.Background(), CreateInput{Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Empty(t, gw.createCalls, "gateway must not be called for invalid amounts")
	assert.Empty(t, u.List())
}

func TestCreate_GatewayFailureStoresNothing(t *testing.T) {
	gw := &fakeGateway{createErr: &gateway.Error{StatusCode: 500, Body: "boom"}}
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	_, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(5)})

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Empty(t, u.List(), "no partial record after a gateway failure")
	u.Wait()
	assert.Empty(t, rep.orders)
}

func TestCreate_DefaultCustomer(t *testing.T) {
	gw := waitingGateway()
	u := newTestUsecase(gw, &fakeReporter{})

	_, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	require.Len(t, gw.createCalls, 1)
	got := gw.createCalls[0].customer
	assert.Equal(t, "Cliente Teste", got.Name)
	assert.Equal(t, "cpf", got.Document.Type)
	assert.Equal(t, "15350946056", got.Document.Number)
}

func TestCreate_NormalizesDocumentNumber(t *testing.T) {
	gw := waitingGateway()
	u := newTestUsecase(gw, &fakeReporter{})

	_, err := u.Create(context.Background(), CreateInput{
		Amount: decimal.NewFromInt(10),
		Customer: &gateway.Customer{
			Name:     "Fulano",
			Email:    "fulano@example.com",
			Document: gateway.Document{Type: "CPF", Number: "153.509.460-56"},
		},
	})
	require.NoError(t, err)

	require.Len(t, gw.createCalls, 1)
	assert.Equal(t, "15350946056", gw.createCalls[0].customer.Document.Number, "document number is digits only")
}

func TestHandleWebhook_PaidIsIdempotent(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromFloat(10.50)})
	require.NoError(t, err)

	ev := WebhookEvent{ID: "tx_1", Status: "paid"}
	require.NoError(t, u.HandleWebhook(context.Background(), ev))
	require.NoError(t, u.HandleWebhook(context.Background(), ev))
	u.Wait()

	got, err := u.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)

	paid := rep.byStatus(attribution.StatusPaid)
	require.Len(t, paid, 1, "redelivered webhook must not report twice")
	assert.Equal(t, "donation_"+d.ID, paid[0].OrderID)
	assert.Equal(t, int64(1050), paid[0].AmountMinor)
	require.NotNil(t, paid[0].ApprovedAt)
}

func TestHandleWebhook_AlternativeIDFields(t *testing.T) {
	for _, ev := range []WebhookEvent{
		{SecureID: "tx_1", Status: "paid"},
		{TransactionID: "tx_1", Status: "paid"},
	} {
		gw := waitingGateway()
		rep := &fakeReporter{}
		u := newTestUsecase(gw, rep)

		d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
		require.NoError(t, err)

		require.NoError(t, u.HandleWebhook(context.Background(), ev))

		got, err := u.Get(d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, got.Status)
	}
}

func TestHandleWebhook_MissingID(t *testing.T) {
	u := newTestUsecase(waitingGateway(), &fakeReporter{})

	err := u.HandleWebhook(context.Background(), WebhookEvent{Status: "paid"})
	assert.ErrorIs(t, err, ErrMissingTransactionID)
}

func TestHandleWebhook_UnknownTransaction(t *testing.T) {
	u := newTestUsecase(waitingGateway(), &fakeReporter{})

	err := u.HandleWebhook(context.Background(), WebhookEvent{ID: "tx_ghost", Status: "paid"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleWebhook_NonPaidStatusIsNoOp(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	require.NoError(t, u.HandleWebhook(context.Background(), WebhookEvent{ID: "tx_1", Status: "refused"}))
	u.Wait()

	got, err := u.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Empty(t, rep.byStatus(attribution.StatusPaid))
}

func TestHandleWebhook_SwallowsReportFailure(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{err: &attribution.Error{StatusCode: 500, Body: "down"}}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	err = u.HandleWebhook(context.Background(), WebhookEvent{ID: "tx_1", Status: "paid"})
	assert.NoError(t, err, "detached report failures never fail the webhook")
	u.Wait()

	got, err := u.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
}

func TestSync_PaidReportsAwaited(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromFloat(10.50)})
	require.NoError(t, err)
	u.Wait()

	gw.status = "paid"
	status, gwStatus, err := u.Sync(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, status)
	assert.Equal(t, "paid", gwStatus)

	// awaited: the paid report is already there, no Wait needed
	paid := rep.byStatus(attribution.StatusPaid)
	require.Len(t, paid, 1)
	assert.Equal(t, "tx_1", paid[0].TransactionID)
}

func TestSync_WaitingLeavesStateAlone(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	u.Wait()

	status, gwStatus, err := u.Sync(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status)
	assert.Equal(t, "waiting_payment", gwStatus)
	assert.Empty(t, rep.byStatus(attribution.StatusPaid))
}

func TestSync_UnknownDonation(t *testing.T) {
	u := newTestUsecase(waitingGateway(), &fakeReporter{})

	_, _, err := u.Sync(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSync_SurfacesReportFailure(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	u.Wait()

	rep.mu.Lock()
	rep.err = &attribution.Error{StatusCode: 500, Body: "down"}
	rep.mu.Unlock()

	gw.status = "paid"
	_, _, err = u.Sync(context.Background(), d.ID)

	var repErr *attribution.Error
	require.ErrorAs(t, err, &repErr, "the sync path awaits the report and propagates its failure")
}

func TestSync_MonotonicOncePaid(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	require.NoError(t, u.HandleWebhook(context.Background(), WebhookEvent{ID: "tx_1", Status: "paid"}))
	u.Wait()

	// gateway later reports anything else; paid never reverts
	gw.status = "waiting_payment"
	status, gwStatus, err := u.Sync(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, status)
	assert.Equal(t, "waiting_payment", gwStatus)

	require.Len(t, rep.byStatus(attribution.StatusPaid), 1)
}

func TestConcurrentCompletion_SingleReport(t *testing.T) {
	gw := waitingGateway()
	rep := &fakeReporter{}
	u := newTestUsecase(gw, rep)

	d, err := u.Create(context.Background(), CreateInput{Amount: decimal.NewFromFloat(10.50)})
	require.NoError(t, err)
	u.Wait()

	gw.mu.Lock()
	gw.status = "paid"
	gw.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = u.HandleWebhook(context.Background(), WebhookEvent{ID: "tx_1", Status: "paid"})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = u.Sync(context.Background(), d.ID)
		}()
	}
	wg.Wait()
	u.Wait()

	got, err := u.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.Len(t, rep.byStatus(attribution.StatusPaid), 1,
		"racing completion triggers must produce exactly one paid report")
}

func TestDebugPing(t *testing.T) {
	rep := &fakeReporter{}
	u := newTestUsecase(waitingGateway(), rep)

	orderID, err := u.DebugPing(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.Contains(t, orderID, "debug_")

	require.Len(t, rep.orders, 1)
	assert.True(t, rep.orders[0].IsTest)
	assert.Equal(t, "tx_debug", rep.orders[0].TransactionID)
}

func TestDebugPing_SurfacesFailure(t *testing.T) {
	rep := &fakeReporter{err: errors.New("nope")}
	u := newTestUsecase(waitingGateway(), rep)

	_, err := u.DebugPing(context.Background(), "")
	assert.Error(t, err)
}
