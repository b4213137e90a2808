// Package shoptest runs an in-memory EZShop backend for tests.
//
// It speaks the same JSON contract as the real service: bearer tokens signed
// with HS256, {code, message, name} error bodies and the sale/return status
// rules. Faults and slow responses can be injected per route.
package shoptest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

const (
	BasePath = "/api/v1"

	AdminPassword   = "admin123"
	ManagerPassword = "manager123"
	CashierPassword = "cashier123"
)

// Seeded barcodes.
const (
	BarcodePen       = "4006381333931"
	BarcodeBeans     = "8001505005592"
	BarcodeCola      = "5449000000996"
	BarcodeChocolate = "7622210449283"
)

type fault struct {
	status  int
	message string
	empty   bool
}

type Backend struct {
	state *state
	auth  *authManager

	mu          sync.Mutex
	faults      map[string][]fault
	gates       map[string]*gate
	calls       map[string]int
	successAcks bool
}

type Option func(*Backend)

// WithSuccessAcks makes order pay and arrival answer {"success": true}
// instead of the updated order.
func WithSuccessAcks() Option {
	return func(b *Backend) { b.successAcks = true }
}

func WithNow(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.state.now = now
		}
	}
}

func New(opts ...Option) *Backend {
	b := &Backend{
		state:  newState(time.Now),
		auth:   newAuthManager("shoptest-secret", time.Hour),
		faults: make(map[string][]fault),
		gates:  make(map[string]*gate),
		calls:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.seed()
	return b
}

// Start serves a new Backend on a local port for the duration of the test.
// The returned URL includes BasePath.
func Start(tb testing.TB, opts ...Option) (*Backend, string) {
	tb.Helper()
	b := New(opts...)
	srv := httptest.NewServer(b.Handler())
	tb.Cleanup(func() {
		b.releaseAll()
		srv.Close()
	})
	return b, srv.URL + BasePath
}

func (b *Backend) seed() {
	for _, u := range []struct {
		username string
		password string
		role     domain.UserType
	}{
		{"admin", AdminPassword, domain.UserTypeAdministrator},
		{"manager", ManagerPassword, domain.UserTypeShopManager},
		{"cashier", CashierPassword, domain.UserTypeCashier},
	} {
		user, err := b.state.addUser(u.username, u.role)
		if err != nil {
			panic(err)
		}
		if err := b.auth.register(user.ID, u.username, u.password, u.role); err != nil {
			panic(err)
		}
	}

	for _, p := range []domain.Product{
		{Barcode: BarcodePen, Description: "Stabilo Pen", PricePerUnit: decimal.RequireFromString("1.50"), Quantity: 100, Position: "1-A-1"},
		{Barcode: BarcodeBeans, Description: "Espresso Beans 1kg", PricePerUnit: decimal.RequireFromString("18.90"), Quantity: 20, Position: "2-B-1"},
		{Barcode: BarcodeCola, Description: "Cola 330ml", PricePerUnit: decimal.RequireFromString("0.99"), Quantity: 200, Position: "3-C-4"},
		{Barcode: BarcodeChocolate, Description: "Chocolate Bar", PricePerUnit: decimal.RequireFromString("2.49"), Quantity: 0},
	} {
		if _, err := b.state.createProduct(p); err != nil {
			panic(err)
		}
	}
}

// Token signs a token for a seeded user without going through login.
func (b *Backend) Token(tb testing.TB, username string) string {
	tb.Helper()
	b.auth.mu.RLock()
	cred, ok := b.auth.users[username]
	b.auth.mu.RUnlock()
	if !ok {
		tb.Fatalf("unknown user %q", username)
	}
	token, err := b.auth.sign(username, cred.role, time.Now().UTC().Add(b.auth.tokenTTL))
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return token
}

// RevokeTokens invalidates every token issued so far.
func (b *Backend) RevokeTokens() {
	b.auth.rotate()
}

func routeKey(method string, path string) string {
	return method + " " + path
}

// Fail makes the next call to method path answer with status and message.
// path is relative to BasePath, e.g. "/sales/1/items".
func (b *Backend) Fail(method string, path string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := routeKey(method, path)
	b.faults[key] = append(b.faults[key], fault{status: status, message: message})
}

// FailEmpty is like Fail but the error response has no body.
func (b *Backend) FailEmpty(method string, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := routeKey(method, path)
	b.faults[key] = append(b.faults[key], fault{status: status, empty: true})
}

type gate struct {
	ch   chan struct{}
	once sync.Once
}

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

// Hold blocks calls to method path until the returned release func runs.
func (b *Backend) Hold(method string, path string) (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := &gate{ch: make(chan struct{})}
	key := routeKey(method, path)
	b.gates[key] = g
	return func() {
		b.mu.Lock()
		if b.gates[key] == g {
			delete(b.gates, key)
		}
		b.mu.Unlock()
		g.open()
	}
}

func (b *Backend) releaseAll() {
	b.mu.Lock()
	gates := b.gates
	b.gates = make(map[string]*gate)
	b.mu.Unlock()
	for _, g := range gates {
		g.open()
	}
}

// Calls reports how many requests reached method path.
func (b *Backend) Calls(method string, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[routeKey(method, path)]
}

// intercept records the call and applies any injected fault or hold. It
// reports whether the handler should continue.
func (b *Backend) intercept(w http.ResponseWriter, r *http.Request) bool {
	path := strings.TrimPrefix(r.URL.Path, BasePath)
	key := routeKey(r.Method, path)

	b.mu.Lock()
	b.calls[key]++
	held := b.gates[key]
	var injected *fault
	if queue := b.faults[key]; len(queue) > 0 {
		injected = &queue[0]
		b.faults[key] = queue[1:]
	}
	b.mu.Unlock()

	if held != nil {
		select {
		case <-held.ch:
		case <-r.Context().Done():
			return false
		}
	}
	if injected != nil {
		if injected.empty {
			w.WriteHeader(injected.status)
			return false
		}
		writeError(w, &apiError{status: injected.status, message: injected.message})
		return false
	}
	return true
}

// Sale returns the stored sale for assertions.
func (b *Backend) Sale(id int) (domain.Sale, bool) {
	sale, err := b.state.getSale(id)
	return sale, err == nil
}

func (b *Backend) Return(id int) (domain.Return, bool) {
	ret, err := b.state.getReturn(id)
	return ret, err == nil
}

func (b *Backend) Product(barcode string) (domain.Product, bool) {
	product, err := b.state.getProductByBarcode(barcode)
	return product, err == nil
}

func (b *Backend) Balance() decimal.Decimal {
	return b.state.getBalance()
}

func (b *Backend) SetBalance(amount decimal.Decimal) {
	if err := b.state.setBalance(amount); err != nil {
		panic(err)
	}
}

// PaidSale creates a sale with the given barcode quantities and settles it.
func (b *Backend) PaidSale(tb testing.TB, quantities map[string]int) domain.Sale {
	tb.Helper()
	sale := b.state.createSale()
	for barcode, qty := range quantities {
		if err := b.state.addSaleItem(sale.ID, barcode, qty); err != nil {
			tb.Fatalf("add %s to sale: %v", barcode, err)
		}
	}
	if err := b.state.closeSale(sale.ID); err != nil {
		tb.Fatalf("close sale: %v", err)
	}
	if _, err := b.state.paySale(sale.ID, decimal.NewFromInt(1_000_000)); err != nil {
		tb.Fatalf("pay sale: %v", err)
	}
	paid, _ := b.state.getSale(sale.ID)
	return paid
}

// OpenSale creates an OPEN sale holding the given barcode quantities.
func (b *Backend) OpenSale(tb testing.TB, quantities map[string]int) domain.Sale {
	tb.Helper()
	sale := b.state.createSale()
	for barcode, qty := range quantities {
		if err := b.state.addSaleItem(sale.ID, barcode, qty); err != nil {
			tb.Fatalf("add %s to sale: %v", barcode, err)
		}
	}
	open, _ := b.state.getSale(sale.ID)
	return open
}

type principalKey struct{}

func withPrincipal(ctx context.Context, a actor) context.Context {
	return context.WithValue(ctx, principalKey{}, a)
}

func principalFrom(ctx context.Context) (actor, bool) {
	a, ok := ctx.Value(principalKey{}).(actor)
	return a, ok
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return badRequest("Invalid request body: %v", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		apiErr = &apiError{status: http.StatusInternalServerError, message: "internal server error"}
	}
	writeJSON(w, apiErr.status, domain.ErrorResponse{
		Code:    apiErr.status,
		Message: apiErr.message,
		Name:    apiErr.name(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
