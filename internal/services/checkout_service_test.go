package services_test

import (
	"context"
	"errors"
	"fmt"
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

var checkoutCfg = services.CheckoutConfig{
	SuccessURL:    "http://localhost:3000/payment-success?session_id={CHECKOUT_SESSION_ID}",
	CancelURL:     "http://localhost:3000/payment-failed",
	PaymentMethod: "Stripe",
}

func address() models.ShippingAddress {
	return models.ShippingAddress{Street: "1 MG Road", City: "Bengaluru", PostalCode: "560001", Country: "IN"}
}

func cart() models.CheckoutRequest {
	return models.CheckoutRequest{
		Items: []models.CartItem{
			{ID: "p1", Name: "Keyboard", Quantity: 2, Price: dec("10")},
			{ProductID: "p2", Name: "Mouse", Quantity: 1, Price: dec("15")},
		},
		ShippingAddress: address(),
	}
}

func TestCheckoutService_InitiateCheckout(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	gw := new(MockGateway)
	pub := &recordingPublisher{}
	service := services.NewCheckoutService(repo, gw, pub, services.PricingPolicy{}, checkoutCfg)

	gw.On("CreateSession", mock.MatchedBy(func(req payment.SessionRequest) bool {
		return len(req.LineItems) == 2 &&
			req.LineItems[0].Quantity == 2 &&
			req.SuccessURL == checkoutCfg.SuccessURL &&
			req.ClientReference == "user-1"
	})).Return(&payment.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", PaymentStatus: payment.StatusUnpaid}, nil).Once()

	result, err := service.InitiateCheckout(context.Background(), "user-1", cart())

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", result.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", result.RedirectURL)
	gw.AssertExpectations(t)

	order, err := repo.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", order.OwnerID)
	assert.Equal(t, models.PaymentPending, order.PaymentState)
	assert.Equal(t, models.DeliveryUndelivered, order.DeliveryState)
	assert.Nil(t, order.PaidAt)
	assert.Equal(t, "Stripe", order.PaymentMethod)
	assert.True(t, order.Amounts.GrandTotal.Equal(dec("35")))
	assert.Equal(t, "p1", order.Items[0].ProductRef)
	assert.Equal(t, "p2", order.Items[1].ProductRef)

	created := pub.ofType(events.OrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, order.ID, created[0].OrderID)
}

func TestCheckoutService_ChargesTaxAndShippingAsLines(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	gw := new(MockGateway)
	policy := services.PricingPolicy{TaxRate: dec("0.1"), ShippingFlat: dec("5")}
	service := services.NewCheckoutService(repo, gw, nil, policy, checkoutCfg)

	gw.On("CreateSession", mock.MatchedBy(func(req payment.SessionRequest) bool {
		if len(req.LineItems) != 4 {
			return false
		}
		return req.LineItems[2].Name == "Tax" && req.LineItems[2].UnitPrice.Equal(dec("3.5")) &&
			req.LineItems[3].Name == "Shipping" && req.LineItems[3].UnitPrice.Equal(dec("5"))
	})).Return(&payment.Session{ID: "cs_test_2", URL: "https://pay"}, nil).Once()

	_, err := service.InitiateCheckout(context.Background(), "user-1", cart())
	require.NoError(t, err)
	gw.AssertExpectations(t)

	order, err := repo.GetBySessionID(context.Background(), "cs_test_2")
	require.NoError(t, err)
	assert.True(t, order.Amounts.GrandTotal.Equal(dec("43.5")))
}

func TestCheckoutService_RejectsInvalidCarts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CheckoutRequest)
	}{
		{"empty cart", func(r *models.CheckoutRequest) { r.Items = nil }},
		{"zero quantity", func(r *models.CheckoutRequest) { r.Items[0].Quantity = 0 }},
		{"negative price", func(r *models.CheckoutRequest) { r.Items[1].Price = dec("-1") }},
		{"sub-cent price", func(r *models.CheckoutRequest) { r.Items[0].Price = dec("0.005") }},
		{"price beyond column range", func(r *models.CheckoutRequest) { r.Items[0].Price = dec("10000000000") }},
		{"total beyond column range", func(r *models.CheckoutRequest) { r.Items[0].Price = dec("9999999999.99") }},
		{"missing name", func(r *models.CheckoutRequest) { r.Items[0].Name = "" }},
		{"missing city", func(r *models.CheckoutRequest) { r.ShippingAddress.City = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repositories.NewMockOrderRepository()
			gw := new(MockGateway)
			service := services.NewCheckoutService(repo, gw, nil, services.PricingPolicy{}, checkoutCfg)

			req := cart()
			tt.mutate(&req)
			_, err := service.InitiateCheckout(context.Background(), "user-1", req)

			var vErr *services.ValidationError
			assert.ErrorAs(t, err, &vErr)
			gw.AssertNotCalled(t, "CreateSession", mock.Anything)
			orders, _ := repo.ListAll(context.Background())
			assert.Empty(t, orders)
		})
	}
}

func TestCheckoutService_GatewayUnavailable(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	gw := new(MockGateway)
	service := services.NewCheckoutService(repo, gw, nil, services.PricingPolicy{}, checkoutCfg)

	gw.On("CreateSession", mock.Anything).Return(nil, fmt.Errorf("create checkout session: %w", payment.ErrUnavailable)).Once()

	_, err := service.InitiateCheckout(context.Background(), "user-1", cart())

	assert.ErrorIs(t, err, services.ErrGatewayUnavailable)
	orders, _ := repo.ListAll(context.Background())
	assert.Empty(t, orders)
}

func TestCheckoutService_GatewayRejection(t *testing.T) {
	gw := new(MockGateway)
	service := services.NewCheckoutService(repositories.NewMockOrderRepository(), gw, nil, services.PricingPolicy{}, checkoutCfg)

	gw.On("CreateSession", mock.Anything).Return(nil, errors.New("invalid currency")).Once()

	_, err := service.InitiateCheckout(context.Background(), "user-1", cart())

	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrGatewayUnavailable)
}

func TestCheckoutService_StoreFailureAfterSession(t *testing.T) {
	repo := new(MockOrderRepository)
	gw := new(MockGateway)
	pub := &recordingPublisher{}
	service := services.NewCheckoutService(repo, gw, pub, services.PricingPolicy{}, checkoutCfg)

	gw.On("CreateSession", mock.Anything).Return(&payment.Session{ID: "cs_orphan", URL: "https://pay"}, nil).Once()
	repo.On("Create", mock.AnythingOfType("*models.Order")).Return(errors.New("connection reset")).Once()

	result, err := service.InitiateCheckout(context.Background(), "user-1", cart())

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "cs_orphan")
	assert.Empty(t, pub.ofType(events.OrderCreated))
	repo.AssertExpectations(t)
}
