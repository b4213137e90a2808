package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/api"
	"ezshop/terminal/internal/domain"
	"ezshop/terminal/internal/shoptest"
)

func newClient(t *testing.T, baseURL string, token *string, opts ...api.Option) *api.Client {
	t.Helper()
	opts = append([]api.Option{api.WithTokenSource(api.TokenFunc(func() string { return *token }))}, opts...)
	client, err := api.New(baseURL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewRejectsRelativeURL(t *testing.T) {
	for _, raw := range []string{"", "/api/v1", "ftp://example.com", "http://"} {
		if _, err := api.New(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	client, err := api.New("http://127.0.0.1:8000/api/v1/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if client.BaseURL() != "http://127.0.0.1:8000/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %s", client.BaseURL())
	}
}

func TestLoginAndListSales(t *testing.T) {
	b, url := shoptest.Start(t)
	token := ""
	client := newClient(t, url, &token)
	ctx := context.Background()

	got, err := client.Auth.Login(ctx, "cashier", shoptest.CashierPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	token = got

	b.PaidSale(t, map[string]int{shoptest.BarcodeCola: 2})
	sales, err := client.Sales.List(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || sales[0].Status != domain.SaleStatusPaid {
		t.Fatalf("unexpected sales: %+v", sales)
	}
	if !sales[0].Lines[0].PricePerUnit.Equal(decimal.RequireFromString("0.99")) {
		t.Fatalf("unexpected price: %s", sales[0].Lines[0].PricePerUnit)
	}
}

func TestLoginFailureDoesNotTriggerUnauthorizedHandler(t *testing.T) {
	_, url := shoptest.Start(t)
	token := ""
	var fired atomic.Int32
	client := newClient(t, url, &token, api.WithUnauthorizedHandler(func() { fired.Add(1) }))

	_, err := client.Auth.Login(context.Background(), "cashier", "wrong")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if msg := api.MessageOf(err, "Login failed"); msg != "Invalid username or password" {
		t.Fatalf("unexpected message %q", msg)
	}
	if fired.Load() != 0 {
		t.Fatalf("unauthorized handler must not fire for login")
	}
}

func TestUnauthorizedHandlerFiresOnRejectedToken(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "cashier")
	var fired atomic.Int32
	client := newClient(t, url, &token, api.WithUnauthorizedHandler(func() { fired.Add(1) }))

	b.RevokeTokens()
	_, err := client.Sales.List(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected handler to fire once, got %d", fired.Load())
	}
}

func TestForbiddenAndNotFound(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "cashier")
	client := newClient(t, url, &token)
	ctx := context.Background()

	if _, err := client.Users.List(ctx); !errors.Is(err, api.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err := client.Products.GetByBarcode(ctx, "00000000")
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Name != "NotFoundError" || apiErr.Code != 404 {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestMessageOfFallsBack(t *testing.T) {
	if got := api.MessageOf(errors.New("dial tcp"), "Failed"); got != "Failed" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := api.MessageOf(&api.Error{StatusCode: 400}, "Failed"); got != "Failed" {
		t.Fatalf("expected fallback for empty message, got %q", got)
	}
	if got := api.MessageOf(&api.Error{StatusCode: 400, Message: "Bad"}, "Failed"); got != "Bad" {
		t.Fatalf("expected server message, got %q", got)
	}
}

func TestErrorBodyVariants(t *testing.T) {
	bodies := map[string]string{
		`{"code":400,"message":"from message","name":"BadRequestError"}`: "from message",
		`{"error":"from error"}`:  "from error",
		`{"detail":"from detail"}`: "from detail",
		`{"detail":[{"msg":"x"}]}`: "",
		`not json`:                 "",
	}
	for body, want := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(body))
		}))
		client, err := api.New(srv.URL)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		err = client.Sales.Close(context.Background(), 1)
		srv.Close()

		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *api.Error for %s, got %v", body, err)
		}
		if apiErr.Message != want {
			t.Fatalf("body %s: expected %q, got %q", body, want, apiErr.Message)
		}
	}
}

func TestOrderTransitionsAcceptBothShapes(t *testing.T) {
	for _, acks := range []bool{false, true} {
		var opts []shoptest.Option
		if acks {
			opts = append(opts, shoptest.WithSuccessAcks())
		}
		b, url := shoptest.Start(t, opts...)
		b.SetBalance(decimal.NewFromInt(500))
		token := b.Token(t, "manager")
		client := newClient(t, url, &token)
		ctx := context.Background()

		order, err := client.Orders.Create(ctx, domain.Order{ProductBarcode: shoptest.BarcodeBeans, Quantity: 5, PricePerUnit: decimal.NewFromInt(12)})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		paid, err := client.Orders.Pay(ctx, order.ID)
		if err != nil {
			t.Fatalf("pay order: %v", err)
		}
		if !paid.Acked {
			t.Fatalf("expected ack")
		}
		if acks != (paid.Order == nil) {
			t.Fatalf("acks=%v: unexpected order %+v", acks, paid.Order)
		}
		if !acks && paid.Order.Status != domain.OrderStatusPaid {
			t.Fatalf("expected PAID order, got %s", paid.Order.Status)
		}

		arrived, err := client.Orders.RecordArrival(ctx, order.ID)
		if err != nil || !arrived.Acked {
			t.Fatalf("record arrival: %+v %v", arrived, err)
		}
		if product, _ := b.Product(shoptest.BarcodeBeans); product.Quantity != 25 {
			t.Fatalf("expected stock 25, got %d", product.Quantity)
		}
	}
}

func TestOrderTransitionNotAcked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := client.Orders.Pay(context.Background(), 1); !errors.Is(err, api.ErrNotAcked) {
		t.Fatalf("expected ErrNotAcked, got %v", err)
	}
}

func TestOrderTransitionEmptyBodyIsAcked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := client.Orders.RecordArrival(context.Background(), 1)
	if err != nil || !result.Acked || result.Order != nil {
		t.Fatalf("expected bare ack, got %+v %v", result, err)
	}
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotRequestID, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	token := "abc"
	client := newClient(t, srv.URL+"/api/v1", &token)
	if err := client.Sales.AddItem(context.Background(), 3, "12345678", 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatalf("expected a request id")
	}
	if gotQuery != "amount=2&barcode=12345678" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
}

func TestMetricsRecordRoutes(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "cashier")
	metrics := api.NewMetrics(prometheus.NewRegistry())
	client := newClient(t, url, &token, api.WithMetrics(metrics))
	ctx := context.Background()

	sale, err := client.Sales.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Sales.Get(ctx, sale.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := client.Sales.Get(ctx, 99); err == nil {
		t.Fatalf("expected not found")
	}

	if got := testutil.ToFloat64(metrics.Requests().WithLabelValues("GET", "/sales/{id}", "200")); got != 1 {
		t.Fatalf("expected one 200 for /sales/{id}, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Requests().WithLabelValues("GET", "/sales/{id}", "404")); got != 1 {
		t.Fatalf("expected one 404 for /sales/{id}, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Requests().WithLabelValues("POST", "/sales/", "201")); got != 1 {
		t.Fatalf("expected one create, got %v", got)
	}

	for _, barcode := range []string{"abc-1", "abc-2"} {
		if _, err := client.Products.GetByBarcode(ctx, barcode); !errors.Is(err, api.ErrNotFound) {
			t.Fatalf("expected not found for %s, got %v", barcode, err)
		}
	}
	if got := testutil.ToFloat64(metrics.Requests().WithLabelValues("GET", "/products/barcode/{barcode}", "404")); got != 2 {
		t.Fatalf("expected barcodes folded into one label, got %v", got)
	}
}

func TestAccountingAndDashboard(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "admin")
	client := newClient(t, url, &token)
	ctx := context.Background()

	if err := client.Accounting.SetBalance(ctx, decimal.RequireFromString("250.50")); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, err := client.Accounting.Balance(ctx)
	if err != nil || !balance.Equal(decimal.RequireFromString("250.50")) {
		t.Fatalf("unexpected balance %s err=%v", balance, err)
	}

	b.PaidSale(t, map[string]int{shoptest.BarcodeBeans: 2})
	stats, err := client.Dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSales.Value != 1 || stats.TotalProducts.Value != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.TopProducts) != 1 || stats.TopProducts[0].Barcode != shoptest.BarcodeBeans || stats.TopProducts[0].QuantitySold != 2 {
		t.Fatalf("unexpected top products: %+v", stats.TopProducts)
	}
}

func TestCustomersAndCards(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "cashier")
	client := newClient(t, url, &token)
	ctx := context.Background()

	customer, err := client.Customers.Create(ctx, "Ada")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	cardID, err := client.Customers.CreateCard(ctx)
	if err != nil || cardID == "" {
		t.Fatalf("create card: %q %v", cardID, err)
	}
	if err := client.Customers.AttachCard(ctx, customer.ID, cardID); err != nil {
		t.Fatalf("attach card: %v", err)
	}
	customers, err := client.Customers.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(customers) != 1 || customers[0].Card == nil || customers[0].Card.CardID != cardID {
		t.Fatalf("unexpected customers: %+v", customers)
	}
}

func TestProductSearchAndPosition(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "manager")
	client := newClient(t, url, &token)
	ctx := context.Background()

	found, err := client.Products.Search(ctx, "cola")
	if err != nil || len(found) != 1 || found[0].Barcode != shoptest.BarcodeCola {
		t.Fatalf("unexpected search result %+v %v", found, err)
	}
	if err := client.Products.SetPosition(ctx, found[0].ID, "9-Z-9"); err != nil {
		t.Fatalf("set position: %v", err)
	}
	if product, _ := b.Product(shoptest.BarcodeCola); product.Position != "9-Z-9" {
		t.Fatalf("expected position to be stored, got %q", product.Position)
	}
}

func TestProductGetUpdateDelete(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "manager")
	client := newClient(t, url, &token)
	ctx := context.Background()

	seeded, _ := b.Product(shoptest.BarcodePen)
	got, err := client.Products.Get(ctx, seeded.ID)
	if err != nil || got.Barcode != shoptest.BarcodePen {
		t.Fatalf("get product: %+v %v", got, err)
	}

	price := decimal.RequireFromString("1.75")
	note := "blue ink"
	updated, err := client.Products.Update(ctx, seeded.ID, domain.ProductUpdateRequest{PricePerUnit: &price, Note: &note})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if !updated.PricePerUnit.Equal(price) || updated.Note != note || updated.Description != seeded.Description {
		t.Fatalf("unexpected update result %+v", updated)
	}

	taken := shoptest.BarcodeCola
	if _, err := client.Products.Update(ctx, seeded.ID, domain.ProductUpdateRequest{Barcode: &taken}); !errors.Is(err, api.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate barcode, got %v", err)
	}

	if err := client.Products.Delete(ctx, seeded.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := client.Products.Get(ctx, seeded.ID); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, ok := b.Product(shoptest.BarcodePen); ok {
		t.Fatalf("expected product removed from backend")
	}
}

func TestCustomerUpdateDelete(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "cashier")
	client := newClient(t, url, &token)
	ctx := context.Background()

	customer, err := client.Customers.Create(ctx, "Ada")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	renamed, err := client.Customers.Update(ctx, customer.ID, "Ada Lovelace")
	if err != nil || renamed.ID != customer.ID || renamed.Name != "Ada Lovelace" {
		t.Fatalf("update customer: %+v %v", renamed, err)
	}

	cardID, err := client.Customers.CreateCard(ctx)
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	if err := client.Customers.AttachCard(ctx, customer.ID, cardID); err != nil {
		t.Fatalf("attach card: %v", err)
	}
	if err := client.Customers.Delete(ctx, customer.ID); err != nil {
		t.Fatalf("delete customer: %v", err)
	}
	customers, err := client.Customers.List(ctx)
	if err != nil || len(customers) != 0 {
		t.Fatalf("expected no customers, got %+v %v", customers, err)
	}
	if _, err := client.Customers.Update(ctx, customer.ID, "Ghost"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := client.Customers.AttachCard(ctx, 99, "nosuchcard"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
}

func TestOrderGet(t *testing.T) {
	b, url := shoptest.Start(t)
	token := b.Token(t, "manager")
	client := newClient(t, url, &token)
	ctx := context.Background()

	created, err := client.Orders.Create(ctx, domain.Order{ProductBarcode: shoptest.BarcodeBeans, Quantity: 3, PricePerUnit: decimal.NewFromInt(4)})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	order, err := client.Orders.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.ID != created.ID || order.Status != domain.OrderStatusIssued || order.Quantity != 3 || !order.PricePerUnit.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("unexpected order %+v", order)
	}
	if _, err := client.Orders.Get(ctx, created.ID+1); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
