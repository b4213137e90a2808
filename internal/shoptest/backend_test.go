package shoptest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

func serve(t *testing.T, b *Backend, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		payload = raw
	}
	req := httptest.NewRequest(method, BasePath+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var body domain.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestLoginIssuesToken(t *testing.T) {
	b := New()
	rec := serve(t, b, http.MethodPost, "/auth", "", domain.LoginRequest{Username: "cashier", Password: CashierPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	principal, err := b.auth.parse(resp.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if principal.Username != "cashier" || principal.Role != domain.UserTypeCashier {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	b := New()
	rec := serve(t, b, http.MethodPost, "/auth", "", domain.LoginRequest{Username: "cashier", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Code != 401 || body.Name != "UnauthorizedError" || body.Message == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestRequireAuth(t *testing.T) {
	b := New()
	if rec := serve(t, b, http.MethodGet, "/sales/", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	cashier := b.Token(t, "cashier")
	if rec := serve(t, b, http.MethodGet, "/users/", cashier, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on users, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodGet, "/orders/", cashier, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on orders, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodGet, "/orders/", b.Token(t, "manager"), nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager on orders, got %d", rec.Code)
	}

	b.RevokeTokens()
	if rec := serve(t, b, http.MethodGet, "/sales/", cashier, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", rec.Code)
	}
}

func TestSaleLifecycle(t *testing.T) {
	b := New()
	token := b.Token(t, "cashier")

	rec := serve(t, b, http.MethodPost, "/sales/", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var sale domain.Sale
	if err := json.NewDecoder(rec.Body).Decode(&sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	rec = serve(t, b, http.MethodPost, "/sales/1/items?barcode="+BarcodePen+"&amount=4", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding item, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if product, _ := b.Product(BarcodePen); product.Quantity != 96 {
		t.Fatalf("expected stock 96, got %d", product.Quantity)
	}

	rec = serve(t, b, http.MethodPatch, "/sales/1/pay?cash_amount=100", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 paying an open sale, got %d", rec.Code)
	}

	if rec := serve(t, b, http.MethodPatch, "/sales/1/close", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 closing, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPost, "/sales/1/items?barcode="+BarcodePen+"&amount=1", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 editing a pending sale, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPatch, "/sales/1/pay?cash_amount=5", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient cash, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPatch, "/sales/1/pay?cash_amount=10", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 paying, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	paid, _ := b.Sale(1)
	if paid.Status != domain.SaleStatusPaid {
		t.Fatalf("expected PAID, got %s", paid.Status)
	}
	if !b.Balance().Equal(decimal.RequireFromString("6")) {
		t.Fatalf("expected balance 6, got %s", b.Balance())
	}
}

func TestAddItemOutOfStock(t *testing.T) {
	b := New()
	token := b.Token(t, "cashier")
	serve(t, b, http.MethodPost, "/sales/", token, nil)

	rec := serve(t, b, http.MethodPost, "/sales/1/items?barcode="+BarcodeChocolate+"&amount=1", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message == "" {
		t.Fatalf("expected a message in the error body")
	}
	sale, _ := b.Sale(1)
	if len(sale.Lines) != 0 {
		t.Fatalf("expected no lines after rejected add, got %+v", sale.Lines)
	}
}

func TestReturnLifecycle(t *testing.T) {
	b := New()
	token := b.Token(t, "cashier")
	sale := b.PaidSale(t, map[string]int{BarcodeCola: 3})

	rec := serve(t, b, http.MethodPost, "/returns/?sale_id=1", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	if rec := serve(t, b, http.MethodPost, "/returns/1/items?barcode="+BarcodeCola+"&amount=4", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 returning more than sold, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPost, "/returns/1/items?barcode="+BarcodeCola+"&amount=2", token, nil); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPatch, "/returns/1/reimburse", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 reimbursing an open return, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPatch, "/returns/1/close", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 closing, got %d", rec.Code)
	}
	if rec := serve(t, b, http.MethodPatch, "/returns/1/reimburse", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reimbursing, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	ret, _ := b.Return(1)
	if ret.Status != domain.ReturnStatusReimbursed || ret.SaleID != sale.ID {
		t.Fatalf("unexpected return: %+v", ret)
	}
	// 3*0.99 paid, 2*0.99 refunded
	if !b.Balance().Equal(decimal.RequireFromString("0.99")) {
		t.Fatalf("expected balance 0.99, got %s", b.Balance())
	}
}

func TestFaultInjection(t *testing.T) {
	b := New()
	token := b.Token(t, "cashier")
	b.Fail(http.MethodGet, "/sales/", http.StatusConflict, "try later")

	rec := serve(t, b, http.MethodGet, "/sales/", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected injected 409, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message != "try later" || body.Name != "ConflictError" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if rec := serve(t, b, http.MethodGet, "/sales/", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected fault to be consumed, got %d", rec.Code)
	}
	if got := b.Calls(http.MethodGet, "/sales/"); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestOrderAckShapes(t *testing.T) {
	for _, acks := range []bool{false, true} {
		var opts []Option
		if acks {
			opts = append(opts, WithSuccessAcks())
		}
		b := New(opts...)
		b.SetBalance(decimal.NewFromInt(100))
		token := b.Token(t, "manager")

		order := domain.Order{ProductBarcode: BarcodeBeans, Quantity: 2, PricePerUnit: decimal.NewFromInt(10)}
		if rec := serve(t, b, http.MethodPost, "/orders/", token, order); rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
		}
		rec := serve(t, b, http.MethodPatch, "/orders/1/pay", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, hasSuccess := body["success"]; hasSuccess != acks {
			t.Fatalf("acks=%v: unexpected body %v", acks, body)
		}
		if !b.Balance().Equal(decimal.NewFromInt(80)) {
			t.Fatalf("expected balance 80, got %s", b.Balance())
		}
	}
}

func TestCannotDeleteSelf(t *testing.T) {
	b := New()
	rec := serve(t, b, http.MethodDelete, "/users/1", b.Token(t, "admin"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
