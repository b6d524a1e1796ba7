package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mollieapi "github.com/VictorAvelar/mollie-api-go/v4/mollie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"motionmaker/billing/internal/payments"
	"motionmaker/billing/pkg/ctxkeys"
)

func testStamp() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func checkoutTestPayment(id, href string) *mollieapi.Payment {
	return &mollieapi.Payment{
		ID: id,
		Links: mollieapi.PaymentLinks{
			Checkout: &mollieapi.URL{Href: href},
		},
	}
}

func setupAPIRouter(t *testing.T, gateway payments.Gateway) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	log := logrus.New()
	txLedger := payments.NewTransactionLedger(mockDB, log)
	credits := payments.NewCreditStore(mockDB, log)
	plans := payments.NewPlanCatalog(mockDB)
	checkout := payments.NewCheckoutService(gateway, txLedger, plans, payments.CheckoutConfig{
		RedirectURL:    "https://app.example.com/billing/return",
		WebhookURL:     "https://api.example.com/payments/webhook",
		UnitPriceCents: 50,
		Currency:       "EUR",
	}, log)

	Init(mockDB, log, nil, Services{
		Checkout: checkout,
		Credits:  credits,
		Plans:    plans,
		Ledger:   txLedger,
	}, 10)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyUserID), "user-1")
		c.Next()
	})
	router.GET("/payments/plans", GetPlans)
	router.GET("/billing/status", GetBillingStatus)
	router.POST("/payments/create-payment", CreatePayment)
	router.POST("/payments/buy-credits", BuyCredits)
	router.POST("/credits/consume", ConsumeCredits)
	router.POST("/accounts/ensure", EnsureAccount)
	return router, mock
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetPlans(t *testing.T) {
	router, mock := setupAPIRouter(t, &stubGateway{})

	mock.ExpectQuery("SELECT id, name, price_cents").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "price_cents", "currency", "credits_included",
			"is_active", "sort_order", "created_at", "updated_at",
		}).AddRow("plan-starter", "Starter", 900, "EUR", 100, true, 1, testStamp(), testStamp()).
			AddRow("plan-pro", "Pro", 2900, "EUR", 500, true, 2, testStamp(), testStamp()))

	w := doJSON(router, http.MethodGet, "/payments/plans", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "plan-pro") {
		t.Fatalf("expected plan list in body, got %s", w.Body.String())
	}
}

func TestBuyCreditsReturnsCheckoutURL(t *testing.T) {
	gateway := &stubGateway{payment: checkoutTestPayment("tr_abc", "https://pay.example.com/tr_abc")}
	router, mock := setupAPIRouter(t, gateway)

	mock.ExpectQuery("INSERT INTO bursar.payment_transactions").
		WithArgs("user-1", "tr_abc", int64(5000), "EUR", "100 Credits - MotionMaker", int64(100), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("tx-1", testStamp(), testStamp()))

	w := doJSON(router, http.MethodPost, "/payments/buy-credits", `{"credits":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "https://pay.example.com/tr_abc") {
		t.Fatalf("expected checkout url in body, got %s", w.Body.String())
	}
}

func TestBuyCreditsRejectsMissingQuantity(t *testing.T) {
	router, _ := setupAPIRouter(t, &stubGateway{})

	w := doJSON(router, http.MethodPost, "/payments/buy-credits", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreatePaymentUnknownPlan(t *testing.T) {
	router, mock := setupAPIRouter(t, &stubGateway{})

	mock.ExpectQuery("SELECT id, name, price_cents").
		WithArgs("plan-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(router, http.MethodPost, "/payments/create-payment", `{"plan_id":"plan-missing"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetBillingStatus(t *testing.T) {
	router, mock := setupAPIRouter(t, &stubGateway{})

	mock.ExpectQuery("SELECT id, user_id, plan_id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "plan_id", "status", "credits_remaining", "credits_total",
			"current_period_start", "current_period_end", "created_at", "updated_at",
		}).AddRow("sub-1", "user-1", "plan-pro", "active", 420, 500,
			testStamp(), testStamp().Add(30*24*time.Hour), testStamp(), testStamp()))

	w := doJSON(router, http.MethodGet, "/billing/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"credits_remaining":420`) {
		t.Fatalf("expected balance in body, got %s", w.Body.String())
	}
}

func TestConsumeCreditsInsufficient(t *testing.T) {
	router, mock := setupAPIRouter(t, &stubGateway{})

	mock.ExpectQuery("UPDATE bursar.user_subscriptions").
		WithArgs(int64(500), "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining"}))

	w := doJSON(router, http.MethodPost, "/credits/consume", `{"user_id":"user-2","credits":500}`)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
}

func TestConsumeCreditsDebitsBalance(t *testing.T) {
	router, mock := setupAPIRouter(t, &stubGateway{})

	mock.ExpectQuery("UPDATE bursar.user_subscriptions").
		WithArgs(int64(5), "user-2").
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining"}).AddRow(95))

	w := doJSON(router, http.MethodPost, "/credits/consume", `{"user_id":"user-2","credits":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"credits_remaining":95`) {
		t.Fatalf("expected remaining balance in body, got %s", w.Body.String())
	}
}

func TestEnsureAccountGrantsSignupCredits(t *testing.T) {
	router, mock := setupAPIRouter(t, &stubGateway{})

	mock.ExpectExec("INSERT INTO bursar.user_subscriptions").
		WithArgs("user-new", int64(10)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := doJSON(router, http.MethodPost, "/accounts/ensure", `{"user_id":"user-new"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
