package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sessionID = "cs_test_a1"

var owner = models.Principal{UserID: "user-1"}

type reconFixture struct {
	repo    *repositories.MockOrderRepository
	gw      *MockGateway
	pub     *recordingPublisher
	service *services.ReconciliationService
	order   *models.Order
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	repo := repositories.NewMockOrderRepository()
	order := &models.Order{
		OwnerID:          owner.UserID,
		Items:            []models.OrderItem{{ProductRef: "p1", Name: "Lamp", Quantity: 1, UnitPrice: dec("100")}},
		ShippingAddress:  address(),
		PaymentMethod:    "Stripe",
		Amounts:          models.Amounts{ItemsTotal: dec("100"), GrandTotal: dec("100")},
		PaymentSessionID: sessionID,
		PaymentState:     models.PaymentPending,
		DeliveryState:    models.DeliveryUndelivered,
	}
	require.NoError(t, repo.Create(context.Background(), order))

	gw := new(MockGateway)
	pub := &recordingPublisher{}
	return &reconFixture{
		repo:    repo,
		gw:      gw,
		pub:     pub,
		service: services.NewReconciliationService(repo, gw, pub),
		order:   order,
	}
}

func completed(id, status string) *payment.Event {
	return &payment.Event{
		ID:      "evt_1",
		Type:    payment.EventCheckoutCompleted,
		Session: &payment.Session{ID: id, PaymentStatus: payment.PaymentStatus(status), CustomerEmail: "buyer@example.com"},
	}
}

func (f *reconFixture) stored(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.repo.GetByID(context.Background(), f.order.ID)
	require.NoError(t, err)
	return order
}

func TestHandleWebhook_MarksOrderPaid(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("VerifyEvent", []byte("payload"), "sig").Return(completed(sessionID, "paid"), nil)

	outcome, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")

	require.NoError(t, err)
	assert.Equal(t, services.WebhookMarkedPaid, outcome)
	order := f.stored(t)
	assert.Equal(t, models.PaymentPaid, order.PaymentState)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, models.PaymentConfirmation{ExternalID: sessionID, Status: "paid", PayerEmail: "buyer@example.com"}, order.PaymentConfirmation)
	assert.Len(t, f.pub.ofType(events.OrderPaid), 1)
}

func TestHandleWebhook_ReplayIsNoop(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(completed(sessionID, "paid"), nil)

	_, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")
	require.NoError(t, err)
	first := f.stored(t)

	outcome, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")

	require.NoError(t, err)
	assert.Equal(t, services.WebhookAlreadyPaid, outcome)
	second := f.stored(t)
	assert.Equal(t, first.PaidAt, second.PaidAt)
	assert.Equal(t, first.PaymentConfirmation, second.PaymentConfirmation)
	assert.Len(t, f.pub.ofType(events.OrderPaid), 1)
}

func TestHandleWebhook_RejectsForgedSignature(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("VerifyEvent", mock.Anything, "forged").Return(nil, fmt.Errorf("%w: no matching v1", payment.ErrSignature))

	_, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "forged")

	assert.ErrorIs(t, err, services.ErrSignatureInvalid)
	assert.Equal(t, models.PaymentPending, f.stored(t).PaymentState)
	assert.Empty(t, f.pub.ofType(events.OrderPaid))
}

func TestHandleWebhook_AcknowledgesUndecodableEvent(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("VerifyEvent", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: checkout session in event evt_1: bad id", payment.ErrMalformedEvent))

	outcome, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")

	assert.NoError(t, err)
	assert.Equal(t, services.WebhookIgnored, outcome)
	assert.Equal(t, models.PaymentPending, f.stored(t).PaymentState)
	assert.Empty(t, f.pub.ofType(events.OrderPaid))
}

func TestHandleWebhook_AcknowledgesWithoutMutation(t *testing.T) {
	tests := []struct {
		name    string
		event   *payment.Event
		outcome services.WebhookOutcome
	}{
		{"unpaid session", completed(sessionID, "unpaid"), services.WebhookUnpaid},
		{"unrelated event", &payment.Event{ID: "evt_2", Type: "payment_intent.created"}, services.WebhookIgnored},
		{"expired session", &payment.Event{ID: "evt_3", Type: "checkout.session.expired", Session: &payment.Session{ID: sessionID}}, services.WebhookIgnored},
		{"unknown session", completed("cs_unknown", "paid"), services.WebhookUnknownOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconFixture(t)
			f.gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(tt.event, nil)

			outcome, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")

			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, models.PaymentPending, f.stored(t).PaymentState)
			assert.Empty(t, f.pub.ofType(events.OrderPaid))
		})
	}
}

func TestHandleWebhook_AsyncPaymentSucceeded(t *testing.T) {
	f := newReconFixture(t)
	evt := completed(sessionID, "paid")
	evt.Type = payment.EventCheckoutAsyncPaymentSucceeded
	f.gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(evt, nil)

	outcome, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")

	require.NoError(t, err)
	assert.Equal(t, services.WebhookMarkedPaid, outcome)
}

func TestHandleWebhook_StoreFailureIsRetryable(t *testing.T) {
	repo := new(MockOrderRepository)
	gw := new(MockGateway)
	service := services.NewReconciliationService(repo, gw, nil)

	gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(completed(sessionID, "paid"), nil)
	repo.On("MarkPaidIfPending", sessionID, mock.Anything).Return(nil, false, errors.New("deadline exceeded"))

	_, err := service.HandleWebhook(context.Background(), []byte("payload"), "sig")

	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrSignatureInvalid)
	assert.NotErrorIs(t, err, services.ErrOrderNotFound)
}

func TestConfirmPayment_MarksOrderPaid(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("RetrieveSession", sessionID).Return(&payment.Session{ID: sessionID, PaymentStatus: payment.StatusPaid, CustomerEmail: "buyer@example.com"}, nil).Once()

	order, err := f.service.ConfirmPayment(context.Background(), owner, sessionID)

	require.NoError(t, err)
	assert.True(t, order.IsPaid())
	assert.NotNil(t, order.PaidAt)
	assert.Len(t, f.pub.ofType(events.OrderPaid), 1)
	f.gw.AssertExpectations(t)
}

func TestConfirmPayment_NoPrematurePayment(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("RetrieveSession", sessionID).Return(&payment.Session{ID: sessionID, PaymentStatus: payment.StatusUnpaid}, nil).Once()

	_, err := f.service.ConfirmPayment(context.Background(), owner, sessionID)

	assert.ErrorIs(t, err, services.ErrPaymentNotCompleted)
	order := f.stored(t)
	assert.Equal(t, models.PaymentPending, order.PaymentState)
	assert.Nil(t, order.PaidAt)
	assert.Empty(t, f.pub.ofType(events.OrderPaid))
}

func TestConfirmPayment_UnknownSession(t *testing.T) {
	f := newReconFixture(t)

	_, err := f.service.ConfirmPayment(context.Background(), owner, "cs_missing")

	assert.ErrorIs(t, err, services.ErrOrderNotFound)
	f.gw.AssertNotCalled(t, "RetrieveSession", mock.Anything)
	assert.Equal(t, models.PaymentPending, f.stored(t).PaymentState)
}

func TestConfirmPayment_EmptySession(t *testing.T) {
	f := newReconFixture(t)

	_, err := f.service.ConfirmPayment(context.Background(), owner, "  ")

	var vErr *services.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestConfirmPayment_OtherUsersOrder(t *testing.T) {
	f := newReconFixture(t)

	_, err := f.service.ConfirmPayment(context.Background(), models.Principal{UserID: "user-2"}, sessionID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	f.gw.AssertNotCalled(t, "RetrieveSession", mock.Anything)

	f.gw.On("RetrieveSession", sessionID).Return(&payment.Session{ID: sessionID, PaymentStatus: payment.StatusPaid}, nil).Once()
	order, err := f.service.ConfirmPayment(context.Background(), models.Principal{UserID: "admin", IsAdmin: true}, sessionID)
	require.NoError(t, err)
	assert.True(t, order.IsPaid())
}

func TestConfirmPayment_AlreadyPaidSkipsGateway(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(completed(sessionID, "paid"), nil)
	_, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")
	require.NoError(t, err)
	paidAt := f.stored(t).PaidAt

	order, err := f.service.ConfirmPayment(context.Background(), owner, sessionID)

	require.NoError(t, err)
	assert.True(t, order.IsPaid())
	assert.Equal(t, paidAt, order.PaidAt)
	f.gw.AssertNotCalled(t, "RetrieveSession", mock.Anything)
	assert.Len(t, f.pub.ofType(events.OrderPaid), 1)
}

func TestConfirmPayment_GatewayUnavailable(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("RetrieveSession", sessionID).Return(nil, fmt.Errorf("retrieve: %w", payment.ErrUnavailable)).Once()

	_, err := f.service.ConfirmPayment(context.Background(), owner, sessionID)

	assert.ErrorIs(t, err, services.ErrGatewayUnavailable)
	assert.Equal(t, models.PaymentPending, f.stored(t).PaymentState)
}

func TestReconciliation_ConcurrentTriggersTransitionOnce(t *testing.T) {
	f := newReconFixture(t)
	f.gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(completed(sessionID, "paid"), nil)
	f.gw.On("RetrieveSession", sessionID).Return(&payment.Session{ID: sessionID, PaymentStatus: payment.StatusPaid, CustomerEmail: "buyer@example.com"}, nil)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := f.service.HandleWebhook(context.Background(), []byte("payload"), "sig")
				errs <- err
				return
			}
			order, err := f.service.ConfirmPayment(context.Background(), owner, sessionID)
			if err == nil && !order.IsPaid() {
				err = errors.New("confirm returned an unpaid order")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, f.stored(t).IsPaid())
	assert.Len(t, f.pub.ofType(events.OrderPaid), 1)
}

func TestCheckoutThenReconcile_EndToEnd(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	gw := new(MockGateway)
	pub := &recordingPublisher{}
	checkout := services.NewCheckoutService(repo, gw, pub, services.PricingPolicy{}, checkoutCfg)
	recon := services.NewReconciliationService(repo, gw, pub)

	// A: checkout creates a pending order bound to the session.
	gw.On("CreateSession", mock.Anything).Return(&payment.Session{ID: "cs_e2e", URL: "https://pay/cs_e2e"}, nil).Once()
	result, err := checkout.InitiateCheckout(context.Background(), "user-1", models.CheckoutRequest{
		Items:           []models.CartItem{{ProductID: "p1", Name: "Lamp", Quantity: 1, Price: dec("100")}},
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	order, err := repo.GetBySessionID(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, order.PaymentState)
	assert.True(t, order.Amounts.GrandTotal.Equal(dec("100")))

	// B: the completed webhook marks it paid.
	gw.On("VerifyEvent", mock.Anything, mock.Anything).Return(completed("cs_e2e", "paid"), nil).Once()
	_, err = recon.HandleWebhook(context.Background(), []byte("payload"), "sig")
	require.NoError(t, err)
	order, err = repo.GetBySessionID(context.Background(), "cs_e2e")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentState)
	assert.NotNil(t, order.PaidAt)
	assert.Equal(t, "paid", order.PaymentConfirmation.Status)

	// C: confirming a session nobody created is a 404 with no side effects.
	_, err = recon.ConfirmPayment(context.Background(), owner, "cs_nobody")
	assert.ErrorIs(t, err, services.ErrOrderNotFound)
	gw.AssertNotCalled(t, "RetrieveSession", mock.Anything)
	assert.Len(t, pub.ofType(events.OrderPaid), 1)
}
