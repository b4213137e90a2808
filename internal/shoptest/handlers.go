package shoptest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

var (
	allRoles   = []domain.UserType{domain.UserTypeAdministrator, domain.UserTypeShopManager, domain.UserTypeCashier}
	backOffice = []domain.UserType{domain.UserTypeAdministrator, domain.UserTypeShopManager}
	adminOnly  = []domain.UserType{domain.UserTypeAdministrator}
)

func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, next http.HandlerFunc, roles ...domain.UserType) {
		method, path, _ := strings.Cut(pattern, " ")
		handler := next
		if roles != nil {
			handler = b.requireAuth(next, roles...)
		}
		mux.HandleFunc(method+" "+BasePath+path, handler)
	}

	route("POST /auth", b.handleLogin)

	route("GET /sales/{$}", b.handleListSales, allRoles...)
	route("POST /sales/{$}", b.handleCreateSale, allRoles...)
	route("GET /sales/{id}", b.handleGetSale, allRoles...)
	route("POST /sales/{id}/items", b.handleAddSaleItem, allRoles...)
	route("DELETE /sales/{id}/items", b.handleRemoveSaleItem, allRoles...)
	route("PATCH /sales/{id}/discount", b.handleSaleDiscount, allRoles...)
	route("PATCH /sales/{id}/items/{barcode}/discount", b.handleLineDiscount, allRoles...)
	route("PATCH /sales/{id}/close", b.handleCloseSale, allRoles...)
	route("PATCH /sales/{id}/pay", b.handlePaySale, allRoles...)

	route("GET /returns/{$}", b.handleListReturns, allRoles...)
	route("POST /returns/{$}", b.handleCreateReturn, allRoles...)
	route("GET /returns/{id}", b.handleGetReturn, allRoles...)
	route("POST /returns/{id}/items", b.handleAddReturnItem, allRoles...)
	route("DELETE /returns/{id}/items", b.handleRemoveReturnItem, allRoles...)
	route("PATCH /returns/{id}/close", b.handleCloseReturn, allRoles...)
	route("PATCH /returns/{id}/reimburse", b.handleReimburse, allRoles...)

	route("GET /products/{$}", b.handleListProducts, allRoles...)
	route("POST /products/{$}", b.handleCreateProduct, backOffice...)
	route("GET /products/search", b.handleSearchProducts, allRoles...)
	route("GET /products/barcode/{barcode}", b.handleProductByBarcode, allRoles...)
	route("GET /products/{id}", b.handleGetProduct, allRoles...)
	route("PUT /products/{id}", b.handleUpdateProduct, backOffice...)
	route("DELETE /products/{id}", b.handleDeleteProduct, backOffice...)
	route("PATCH /products/{id}/position", b.handleSetPosition, backOffice...)

	route("GET /orders/{$}", b.handleListOrders, backOffice...)
	route("POST /orders/{$}", b.handleCreateOrder, backOffice...)
	route("GET /orders/{id}", b.handleGetOrder, backOffice...)
	route("PATCH /orders/{id}/pay", b.handlePayOrder, backOffice...)
	route("PATCH /orders/{id}/arrival", b.handleOrderArrival, backOffice...)

	route("GET /customers/{$}", b.handleListCustomers, allRoles...)
	route("POST /customers/{$}", b.handleCreateCustomer, allRoles...)
	route("POST /customers/cards", b.handleCreateCard, allRoles...)
	route("PUT /customers/{id}", b.handleUpdateCustomer, allRoles...)
	route("DELETE /customers/{id}", b.handleDeleteCustomer, allRoles...)
	route("PATCH /customers/{id}/attach-card/{card}", b.handleAttachCard, allRoles...)

	route("GET /users/{$}", b.handleListUsers, adminOnly...)
	route("POST /users/{$}", b.handleCreateUser, adminOnly...)
	route("PUT /users/{id}", b.handleUpdateUser, adminOnly...)
	route("DELETE /users/{id}", b.handleDeleteUser, adminOnly...)

	route("GET /accounting/{$}", b.handleBalance, backOffice...)
	route("POST /accounting/set/{$}", b.handleSetBalance, backOffice...)
	route("POST /accounting/reset/{$}", b.handleResetBalance, backOffice...)

	route("GET /dashboard/stats", b.handleDashboard, backOffice...)

	return b.withIntercept(mux)
}

func (b *Backend) withIntercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.intercept(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireAuth(next http.HandlerFunc, roles ...domain.UserType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, &apiError{status: http.StatusUnauthorized, message: "Not authenticated"})
			return
		}

		principal, err := b.auth.parse(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, err)
			return
		}
		if !roleAllowed(principal.Role, roles) {
			writeError(w, &apiError{status: http.StatusForbidden, message: "Insufficient permissions"})
			return
		}

		next(w, r.WithContext(withPrincipal(r.Context(), principal)))
	}
}

func roleAllowed(role domain.UserType, allowed []domain.UserType) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("Query parameter %s must be an integer", key)
	}
	return n, nil
}

func queryDecimal(r *http.Request, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, badRequest("Query parameter %s must be a number", key)
	}
	return d, nil
}

func queryString(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", badRequest("Query parameter %s is required", key)
	}
	return raw, nil
}

func itemParams(r *http.Request) (int, string, int, error) {
	id, err := pathID(r)
	if err != nil {
		return 0, "", 0, err
	}
	barcode, err := queryString(r, "barcode")
	if err != nil {
		return 0, "", 0, err
	}
	amount, err := queryInt(r, "amount")
	if err != nil {
		return 0, "", 0, err
	}
	return id, barcode, amount, nil
}

func respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if payload == nil {
		writeJSON(w, status, domain.SuccessResponse{Success: true})
		return
	}
	writeJSON(w, status, payload)
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := b.auth.login(req.Username, req.Password)
	respond(w, http.StatusOK, domain.TokenResponse{Token: token}, err)
}

// sales

func (b *Backend) handleListSales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.listSales())
}

func (b *Backend) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, b.state.createSale())
}

func (b *Backend) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sale, err := b.state.getSale(id)
	respond(w, http.StatusOK, sale, err)
}

func (b *Backend) handleAddSaleItem(w http.ResponseWriter, r *http.Request) {
	id, barcode, amount, err := itemParams(r)
	if err == nil {
		err = b.state.addSaleItem(id, barcode, amount)
	}
	respond(w, http.StatusCreated, nil, err)
}

func (b *Backend) handleRemoveSaleItem(w http.ResponseWriter, r *http.Request) {
	id, barcode, amount, err := itemParams(r)
	if err == nil {
		err = b.state.removeSaleItem(id, barcode, amount)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleSaleDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rate, err := queryDecimal(r, "discount_rate")
	if err == nil {
		err = b.state.setSaleDiscount(id, rate)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleLineDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rate, err := queryDecimal(r, "discount_rate")
	if err == nil {
		err = b.state.setLineDiscount(id, r.PathValue("barcode"), rate)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleCloseSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.closeSale(id)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handlePaySale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cash, err := queryDecimal(r, "cash_amount")
	if err != nil {
		writeError(w, err)
		return
	}
	change, err := b.state.paySale(id, cash)
	respond(w, http.StatusOK, map[string]decimal.Decimal{"change": change}, err)
}

// returns

func (b *Backend) handleListReturns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.listReturns())
}

func (b *Backend) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	saleID, err := queryInt(r, "sale_id")
	if err != nil {
		writeError(w, err)
		return
	}
	ret, err := b.state.createReturn(saleID)
	respond(w, http.StatusCreated, ret, err)
}

func (b *Backend) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ret, err := b.state.getReturn(id)
	respond(w, http.StatusOK, ret, err)
}

func (b *Backend) handleAddReturnItem(w http.ResponseWriter, r *http.Request) {
	id, barcode, amount, err := itemParams(r)
	if err == nil {
		err = b.state.addReturnItem(id, barcode, amount)
	}
	respond(w, http.StatusCreated, nil, err)
}

func (b *Backend) handleRemoveReturnItem(w http.ResponseWriter, r *http.Request) {
	id, barcode, amount, err := itemParams(r)
	if err == nil {
		err = b.state.removeReturnItem(id, barcode, amount)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleCloseReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.closeReturn(id)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleReimburse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.reimburseReturn(id)
	}
	respond(w, http.StatusOK, nil, err)
}

// products

func (b *Backend) handleListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.listProducts())
}

func (b *Backend) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if err := decodeJSON(r, &product); err != nil {
		writeError(w, err)
		return
	}
	created, err := b.state.createProduct(product)
	respond(w, http.StatusCreated, created, err)
}

func (b *Backend) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.searchProducts(r.URL.Query().Get("query")))
}

func (b *Backend) handleProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := b.state.getProductByBarcode(r.PathValue("barcode"))
	respond(w, http.StatusOK, product, err)
}

func (b *Backend) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	product, err := b.state.getProduct(id)
	respond(w, http.StatusOK, product, err)
}

func (b *Backend) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updated, err := b.state.updateProduct(id, req)
	respond(w, http.StatusOK, updated, err)
}

func (b *Backend) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.deleteProduct(id)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.setPosition(id, strings.TrimSpace(r.URL.Query().Get("position")))
	}
	respond(w, http.StatusOK, nil, err)
}

// orders

func (b *Backend) handleListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.listOrders())
}

func (b *Backend) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.Order
	if err := decodeJSON(r, &order); err != nil {
		writeError(w, err)
		return
	}
	created, err := b.state.createOrder(order)
	respond(w, http.StatusCreated, created, err)
}

func (b *Backend) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := b.state.getOrder(id)
	respond(w, http.StatusOK, order, err)
}

func (b *Backend) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := b.state.payOrder(id)
	b.respondOrder(w, order, err)
}

func (b *Backend) handleOrderArrival(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := b.state.recordArrival(id)
	b.respondOrder(w, order, err)
}

func (b *Backend) respondOrder(w http.ResponseWriter, order domain.Order, err error) {
	if err == nil && b.successAcks {
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true})
		return
	}
	respond(w, http.StatusOK, order, err)
}

// customers

type customerRequest struct {
	Name string `json:"name"`
}

func (b *Backend) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.listCustomers())
}

func (b *Backend) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	customer, err := b.state.createCustomer(req.Name)
	respond(w, http.StatusCreated, customer, err)
}

func (b *Backend) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, domain.CardResponse{CardID: b.state.createCard()})
}

func (b *Backend) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	customer, err := b.state.updateCustomer(id, req.Name)
	respond(w, http.StatusOK, customer, err)
}

func (b *Backend) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.deleteCustomer(id)
	}
	respond(w, http.StatusOK, nil, err)
}

func (b *Backend) handleAttachCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = b.state.attachCard(id, r.PathValue("card"))
	}
	respond(w, http.StatusOK, nil, err)
}

// users

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.listUsers())
}

func (b *Backend) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Password) < 6 {
		writeError(w, badRequest("Password must be at least 6 characters"))
		return
	}
	user, err := b.state.addUser(strings.TrimSpace(req.Username), req.Type)
	if err == nil {
		err = b.auth.register(user.ID, user.Username, req.Password, user.Type)
	}
	respond(w, http.StatusCreated, user, err)
}

func (b *Backend) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req domain.UserUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	before, after, err := b.state.updateUser(id, req.Username, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}

	b.auth.mu.RLock()
	cred := b.auth.users[before.Username]
	b.auth.mu.RUnlock()
	b.auth.forget(before.Username)
	if req.Password != nil {
		err = b.auth.register(after.ID, after.Username, *req.Password, after.Type)
	} else {
		cred.role = after.Type
		b.auth.mu.Lock()
		b.auth.users[after.Username] = cred
		b.auth.mu.Unlock()
	}
	respond(w, http.StatusOK, after, err)
}

func (b *Backend) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if principal, ok := principalFrom(r.Context()); ok {
		if user, found := b.state.userByName(principal.Username); found && user.ID == id {
			writeError(w, badRequest("You cannot delete your own account"))
			return
		}
	}
	user, err := b.state.deleteUser(id)
	if err == nil {
		b.auth.forget(user.Username)
	}
	respond(w, http.StatusOK, nil, err)
}

// accounting

func (b *Backend) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.BalanceResponse{Balance: b.state.getBalance()})
}

func (b *Backend) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	var req domain.BalanceSetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, nil, b.state.setBalance(req.Amount))
}

func (b *Backend) handleResetBalance(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, nil, b.state.setBalance(decimal.Zero))
}

func (b *Backend) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.state.dashboard())
}
