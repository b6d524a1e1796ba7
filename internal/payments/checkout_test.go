package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mollieapi "github.com/VictorAvelar/mollie-api-go/v4/mollie"
	"github.com/sirupsen/logrus"
)

func checkoutPayment(id, href string) *mollieapi.Payment {
	return &mollieapi.Payment{
		ID: id,
		Links: mollieapi.PaymentLinks{
			Checkout: &mollieapi.URL{Href: href},
		},
	}
}

func newTestCheckout(t *testing.T, gateway Gateway) (*CheckoutService, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	logger := logrus.New()
	svc := NewCheckoutService(gateway,
		NewTransactionLedger(mockDB, logger),
		NewPlanCatalog(mockDB),
		CheckoutConfig{
			RedirectURL:    "https://app.example.com/billing/return",
			WebhookURL:     "https://api.example.com/payments/webhook",
			UnitPriceCents: 50,
			Currency:       "EUR",
		}, logger)
	return svc, mock
}

func TestCreateCreditCheckout(t *testing.T) {
	gateway := &fakeGateway{payment: checkoutPayment("tr_abc", "https://pay.example.com/tr_abc")}
	svc, mock := newTestCheckout(t, gateway)

	mock.ExpectQuery("INSERT INTO bursar.payment_transactions").
		WithArgs("user-1", "tr_abc", int64(5000), "EUR", "100 Credits - MotionMaker", int64(100), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("tx-1", testTime(), testTime()))

	result, err := svc.CreateCreditCheckout(context.Background(), "user-1", 100)
	if err != nil {
		t.Fatalf("CreateCreditCheckout failed: %v", err)
	}
	if result.PaymentID != "tr_abc" {
		t.Fatalf("expected payment id tr_abc, got %q", result.PaymentID)
	}
	if result.PaymentURL != "https://pay.example.com/tr_abc" {
		t.Fatalf("unexpected checkout url %q", result.PaymentURL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateCreditCheckoutRejectsNonPositiveQuantity(t *testing.T) {
	svc, _ := newTestCheckout(t, &fakeGateway{})

	if _, err := svc.CreateCreditCheckout(context.Background(), "user-1", 0); !errors.Is(err, ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase, got %v", err)
	}
}

func TestCreatePlanCheckout(t *testing.T) {
	gateway := &fakeGateway{payment: checkoutPayment("tr_plan", "https://pay.example.com/tr_plan")}
	svc, mock := newTestCheckout(t, gateway)

	mock.ExpectQuery("SELECT id, name, price_cents").
		WithArgs("plan-pro").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "price_cents", "currency", "credits_included",
			"is_active", "sort_order", "created_at", "updated_at",
		}).AddRow("plan-pro", "Pro", 2900, "EUR", 500, true, 2, testTime(), testTime()))
	mock.ExpectQuery("INSERT INTO bursar.payment_transactions").
		WithArgs("user-1", "tr_plan", int64(2900), "EUR", "Pro Plan - MotionMaker", int64(500), "plan-pro").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("tx-2", testTime(), testTime()))

	result, err := svc.CreatePlanCheckout(context.Background(), "user-1", "plan-pro")
	if err != nil {
		t.Fatalf("CreatePlanCheckout failed: %v", err)
	}
	if result.PaymentID != "tr_plan" {
		t.Fatalf("expected payment id tr_plan, got %q", result.PaymentID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePlanCheckoutRejectsUnknownPlan(t *testing.T) {
	svc, mock := newTestCheckout(t, &fakeGateway{})

	mock.ExpectQuery("SELECT id, name, price_cents").
		WithArgs("plan-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := svc.CreatePlanCheckout(context.Background(), "user-1", "plan-missing"); !errors.Is(err, ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase, got %v", err)
	}
}

func TestCreatePlanCheckoutRejectsInactivePlan(t *testing.T) {
	svc, mock := newTestCheckout(t, &fakeGateway{})

	mock.ExpectQuery("SELECT id, name, price_cents").
		WithArgs("plan-legacy").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "price_cents", "currency", "credits_included",
			"is_active", "sort_order", "created_at", "updated_at",
		}).AddRow("plan-legacy", "Legacy", 900, "EUR", 100, false, 9, testTime(), testTime()))

	if _, err := svc.CreatePlanCheckout(context.Background(), "user-1", "plan-legacy"); !errors.Is(err, ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase, got %v", err)
	}
}

func TestCreateCheckoutGatewayFailureSkipsLedger(t *testing.T) {
	gateway := &fakeGateway{err: fmt.Errorf("gateway down")}
	svc, mock := newTestCheckout(t, gateway)

	if _, err := svc.CreateCreditCheckout(context.Background(), "user-1", 100); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ledger must stay untouched on gateway failure: %v", err)
	}
}
