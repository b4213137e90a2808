package shoptest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
)

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

func (e *apiError) name() string {
	switch e.status {
	case http.StatusBadRequest:
		return "BadRequestError"
	case http.StatusUnauthorized:
		return "UnauthorizedError"
	case http.StatusForbidden:
		return "ForbiddenError"
	case http.StatusNotFound:
		return "NotFoundError"
	case http.StatusConflict:
		return "ConflictError"
	}
	return "Error"
}

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &apiError{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &apiError{status: http.StatusConflict, message: fmt.Sprintf(format, args...)}
}

// state is the backend's data. Every method takes the lock itself.
type state struct {
	mu        sync.Mutex
	now       func() time.Time
	seq       map[string]int
	products  map[int]domain.Product
	sales     map[int]domain.Sale
	returns   map[int]domain.Return
	orders    map[int]domain.Order
	customers map[int]domain.Customer
	cards     map[string]int
	users     map[int]domain.User
	balance   decimal.Decimal
}

func newState(now func() time.Time) *state {
	return &state{
		now:       now,
		seq:       make(map[string]int),
		products:  make(map[int]domain.Product),
		sales:     make(map[int]domain.Sale),
		returns:   make(map[int]domain.Return),
		orders:    make(map[int]domain.Order),
		customers: make(map[int]domain.Customer),
		cards:     make(map[string]int),
		users:     make(map[int]domain.User),
	}
}

func (s *state) nextID(kind string) int {
	s.seq[kind]++
	return s.seq[kind]
}

func (s *state) timestamp() *time.Time {
	now := s.now().UTC()
	return &now
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	return sale
}

func cloneReturn(ret domain.Return) domain.Return {
	ret.Lines = append([]domain.ReturnLine(nil), ret.Lines...)
	return ret
}

// products

func (s *state) listProducts() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, id := range sortedKeys(s.products) {
		out = append(out, s.products[id])
	}
	return out
}

func (s *state) productByIDLocked(id int) (domain.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, notFound("Product %d not found", id)
	}
	return product, nil
}

func (s *state) getProduct(id int) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productByIDLocked(id)
}

func (s *state) productByBarcodeLocked(barcode string) (domain.Product, error) {
	for _, product := range s.products {
		if product.Barcode == barcode {
			return product, nil
		}
	}
	return domain.Product{}, notFound("Product with barcode %s not found", barcode)
}

func (s *state) getProductByBarcode(barcode string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productByBarcodeLocked(barcode)
}

func (s *state) searchProducts(query string) []domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0)
	for _, id := range sortedKeys(s.products) {
		product := s.products[id]
		if strings.Contains(strings.ToLower(product.Description), query) || strings.Contains(product.Barcode, query) {
			out = append(out, product)
		}
	}
	return out
}

func validateProduct(product domain.Product) error {
	if strings.TrimSpace(product.Description) == "" {
		return badRequest("Description is required")
	}
	if strings.TrimSpace(product.Barcode) == "" {
		return badRequest("Barcode is required")
	}
	if !product.PricePerUnit.IsPositive() {
		return badRequest("Price per unit must be positive")
	}
	if product.Quantity < 0 {
		return badRequest("Quantity cannot be negative")
	}
	return nil
}

func (s *state) createProduct(product domain.Product) (domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.productByBarcodeLocked(product.Barcode); err == nil {
		return domain.Product{}, conflict("Product with barcode %s already exists", product.Barcode)
	}
	product.ID = s.nextID("product")
	s.products[product.ID] = product
	return product, nil
}

func (s *state) updateProduct(id int, req domain.ProductUpdateRequest) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, err := s.productByIDLocked(id)
	if err != nil {
		return domain.Product{}, err
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Barcode != nil && *req.Barcode != product.Barcode {
		if _, err := s.productByBarcodeLocked(*req.Barcode); err == nil {
			return domain.Product{}, conflict("Product with barcode %s already exists", *req.Barcode)
		}
		product.Barcode = *req.Barcode
	}
	if req.PricePerUnit != nil {
		product.PricePerUnit = *req.PricePerUnit
	}
	if req.Note != nil {
		product.Note = *req.Note
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.Position != nil {
		product.Position = *req.Position
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	s.products[id] = product
	return product, nil
}

func (s *state) deleteProduct(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.productByIDLocked(id); err != nil {
		return err
	}
	delete(s.products, id)
	return nil
}

func (s *state) setPosition(id int, position string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, err := s.productByIDLocked(id)
	if err != nil {
		return err
	}
	for otherID, other := range s.products {
		if otherID != id && position != "" && other.Position == position {
			return conflict("Position %s is already assigned", position)
		}
	}
	product.Position = position
	s.products[id] = product
	return nil
}

func (s *state) adjustStockLocked(barcode string, delta int) error {
	product, err := s.productByBarcodeLocked(barcode)
	if err != nil {
		return err
	}
	if product.Quantity+delta < 0 {
		return badRequest("Insufficient stock for product %s", barcode)
	}
	product.Quantity += delta
	s.products[product.ID] = product
	return nil
}

// sales

func (s *state) listSales() []domain.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Sale, 0, len(s.sales))
	for _, id := range sortedKeys(s.sales) {
		out = append(out, cloneSale(s.sales[id]))
	}
	return out
}

func (s *state) saleLocked(id int) (domain.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return domain.Sale{}, notFound("Sale %d not found", id)
	}
	return sale, nil
}

func (s *state) getSale(id int) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.saleLocked(id)
	return cloneSale(sale), err
}

func (s *state) createSale() domain.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale := domain.Sale{
		ID:           s.nextID("sale"),
		Status:       domain.SaleStatusOpen,
		DiscountRate: decimal.Zero,
		CreatedAt:    s.timestamp(),
		Lines:        []domain.SaleLine{},
	}
	s.sales[sale.ID] = sale
	return cloneSale(sale)
}

func (s *state) openSaleLocked(id int) (domain.Sale, error) {
	sale, err := s.saleLocked(id)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.Status != domain.SaleStatusOpen {
		return domain.Sale{}, badRequest("Sale %d is not open", id)
	}
	return sale, nil
}

func (s *state) addSaleItem(id int, barcode string, amount int) error {
	if amount <= 0 {
		return badRequest("Amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.openSaleLocked(id)
	if err != nil {
		return err
	}
	product, err := s.productByBarcodeLocked(barcode)
	if err != nil {
		return err
	}
	if err := s.adjustStockLocked(barcode, -amount); err != nil {
		return err
	}

	sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	for i := range sale.Lines {
		if sale.Lines[i].ProductBarcode == barcode {
			sale.Lines[i].Quantity += amount
			s.sales[id] = sale
			return nil
		}
	}
	sale.Lines = append(sale.Lines, domain.SaleLine{
		ID:             s.nextID("sale_line"),
		SaleID:         id,
		ProductBarcode: barcode,
		Quantity:       amount,
		PricePerUnit:   product.PricePerUnit,
		DiscountRate:   decimal.Zero,
	})
	s.sales[id] = sale
	return nil
}

func (s *state) removeSaleItem(id int, barcode string, amount int) error {
	if amount <= 0 {
		return badRequest("Amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.openSaleLocked(id)
	if err != nil {
		return err
	}

	lines := make([]domain.SaleLine, 0, len(sale.Lines))
	found := false
	for _, line := range sale.Lines {
		if line.ProductBarcode != barcode {
			lines = append(lines, line)
			continue
		}
		found = true
		if amount > line.Quantity {
			return badRequest("Cannot remove %d units, only %d in sale", amount, line.Quantity)
		}
		line.Quantity -= amount
		if line.Quantity > 0 {
			lines = append(lines, line)
		}
	}
	if !found {
		return notFound("Product %s is not in sale %d", barcode, id)
	}
	if err := s.adjustStockLocked(barcode, amount); err != nil {
		return err
	}
	sale.Lines = lines
	s.sales[id] = sale
	return nil
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(1))
}

func (s *state) setSaleDiscount(id int, rate decimal.Decimal) error {
	if !validRate(rate) {
		return badRequest("Discount rate must be between 0 and 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.openSaleLocked(id)
	if err != nil {
		return err
	}
	sale.DiscountRate = rate
	s.sales[id] = sale
	return nil
}

func (s *state) setLineDiscount(id int, barcode string, rate decimal.Decimal) error {
	if !validRate(rate) {
		return badRequest("Discount rate must be between 0 and 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.openSaleLocked(id)
	if err != nil {
		return err
	}
	sale.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	for i := range sale.Lines {
		if sale.Lines[i].ProductBarcode == barcode {
			sale.Lines[i].DiscountRate = rate
			s.sales[id] = sale
			return nil
		}
	}
	return notFound("Product %s is not in sale %d", barcode, id)
}

func (s *state) closeSale(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.openSaleLocked(id)
	if err != nil {
		return err
	}
	if len(sale.Lines) == 0 {
		return badRequest("Sale %d has no items", id)
	}
	sale.Status = domain.SaleStatusPending
	sale.ClosedAt = s.timestamp()
	s.sales[id] = sale
	return nil
}

func (s *state) paySale(id int, cash decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.saleLocked(id)
	if err != nil {
		return decimal.Zero, err
	}
	switch sale.Status {
	case domain.SaleStatusOpen:
		return decimal.Zero, badRequest("Sale %d must be closed before payment", id)
	case domain.SaleStatusPaid:
		return decimal.Zero, badRequest("Sale %d is already paid", id)
	}
	total := cart.Total(sale)
	if cash.LessThan(total) {
		return decimal.Zero, badRequest("Insufficient cash: total is %s", cart.Format(total))
	}
	sale.Status = domain.SaleStatusPaid
	s.sales[id] = sale
	s.balance = s.balance.Add(total)
	return cash.Sub(total), nil
}

// returns

func (s *state) listReturns() []domain.Return {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Return, 0, len(s.returns))
	for _, id := range sortedKeys(s.returns) {
		out = append(out, cloneReturn(s.returns[id]))
	}
	return out
}

func (s *state) returnLocked(id int) (domain.Return, error) {
	ret, ok := s.returns[id]
	if !ok {
		return domain.Return{}, notFound("Return %d not found", id)
	}
	return ret, nil
}

func (s *state) getReturn(id int) (domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.returnLocked(id)
	return cloneReturn(ret), err
}

func (s *state) createReturn(saleID int) (domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.saleLocked(saleID)
	if err != nil {
		return domain.Return{}, err
	}
	if sale.Status != domain.SaleStatusPaid {
		return domain.Return{}, badRequest("Sale %d is not paid", saleID)
	}
	ret := domain.Return{
		ID:        s.nextID("return"),
		SaleID:    saleID,
		Status:    domain.ReturnStatusOpen,
		CreatedAt: s.timestamp(),
		Lines:     []domain.ReturnLine{},
	}
	s.returns[ret.ID] = ret
	return cloneReturn(ret), nil
}

func (s *state) openReturnLocked(id int) (domain.Return, error) {
	ret, err := s.returnLocked(id)
	if err != nil {
		return domain.Return{}, err
	}
	if ret.Status != domain.ReturnStatusOpen {
		return domain.Return{}, badRequest("Return %d is not open", id)
	}
	return ret, nil
}

// returnedLocked counts units of barcode already on returns of saleID,
// excluding the return being edited.
func (s *state) returnedLocked(saleID int, barcode string, except int) int {
	total := 0
	for id, ret := range s.returns {
		if id == except || ret.SaleID != saleID {
			continue
		}
		for _, line := range ret.Lines {
			if line.ProductBarcode == barcode {
				total += line.Quantity
			}
		}
	}
	return total
}

func (s *state) addReturnItem(id int, barcode string, amount int) error {
	if amount <= 0 {
		return badRequest("Amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.openReturnLocked(id)
	if err != nil {
		return err
	}
	sale, err := s.saleLocked(ret.SaleID)
	if err != nil {
		return err
	}
	saleLine, ok := sale.Line(barcode)
	if !ok {
		return notFound("Product %s was not sold in sale %d", barcode, sale.ID)
	}

	ret.Lines = append([]domain.ReturnLine(nil), ret.Lines...)
	current := 0
	idx := -1
	for i, line := range ret.Lines {
		if line.ProductBarcode == barcode {
			current = line.Quantity
			idx = i
		}
	}
	if current+amount+s.returnedLocked(ret.SaleID, barcode, id) > saleLine.Quantity {
		return badRequest("Cannot return more than the %d units sold", saleLine.Quantity)
	}
	if idx >= 0 {
		ret.Lines[idx].Quantity += amount
	} else {
		ret.Lines = append(ret.Lines, domain.ReturnLine{
			ID:             s.nextID("return_line"),
			ReturnID:       id,
			ProductBarcode: barcode,
			Quantity:       amount,
			PricePerUnit:   saleLine.PricePerUnit,
		})
	}
	s.returns[id] = ret
	return nil
}

func (s *state) removeReturnItem(id int, barcode string, amount int) error {
	if amount <= 0 {
		return badRequest("Amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.openReturnLocked(id)
	if err != nil {
		return err
	}
	lines := make([]domain.ReturnLine, 0, len(ret.Lines))
	found := false
	for _, line := range ret.Lines {
		if line.ProductBarcode != barcode {
			lines = append(lines, line)
			continue
		}
		found = true
		if amount > line.Quantity {
			return badRequest("Cannot remove %d units, only %d in return", amount, line.Quantity)
		}
		line.Quantity -= amount
		if line.Quantity > 0 {
			lines = append(lines, line)
		}
	}
	if !found {
		return notFound("Product %s is not in return %d", barcode, id)
	}
	ret.Lines = lines
	s.returns[id] = ret
	return nil
}

func (s *state) closeReturn(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.openReturnLocked(id)
	if err != nil {
		return err
	}
	if len(ret.Lines) == 0 {
		return badRequest("Return %d has no items", id)
	}
	for _, line := range ret.Lines {
		if err := s.adjustStockLocked(line.ProductBarcode, line.Quantity); err != nil {
			return err
		}
	}
	ret.Status = domain.ReturnStatusClosed
	ret.ClosedAt = s.timestamp()
	s.returns[id] = ret
	return nil
}

func (s *state) reimburseReturn(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.returnLocked(id)
	if err != nil {
		return err
	}
	if ret.Status != domain.ReturnStatusClosed {
		return badRequest("Return %d must be closed before reimbursement", id)
	}
	refund := cart.RefundTotal(ret)
	if s.balance.LessThan(refund) {
		return badRequest("Insufficient balance to reimburse %s", cart.Format(refund))
	}
	s.balance = s.balance.Sub(refund)
	ret.Status = domain.ReturnStatusReimbursed
	s.returns[id] = ret
	return nil
}

// orders

func (s *state) listOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, id := range sortedKeys(s.orders) {
		out = append(out, s.orders[id])
	}
	return out
}

func (s *state) orderLocked(id int) (domain.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, notFound("Order %d not found", id)
	}
	return order, nil
}

func (s *state) getOrder(id int) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderLocked(id)
}

func (s *state) createOrder(order domain.Order) (domain.Order, error) {
	if order.Quantity <= 0 {
		return domain.Order{}, badRequest("Quantity must be positive")
	}
	if !order.PricePerUnit.IsPositive() {
		return domain.Order{}, badRequest("Price per unit must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.productByBarcodeLocked(order.ProductBarcode); err != nil {
		return domain.Order{}, err
	}
	order.ID = s.nextID("order")
	order.Status = domain.OrderStatusIssued
	order.IssueDate = s.now().UTC().Format("2006-01-02")
	s.orders[order.ID] = order
	return order, nil
}

func (s *state) payOrder(id int) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := s.orderLocked(id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusIssued {
		return domain.Order{}, badRequest("Order %d is not issued", id)
	}
	total := cart.OrderTotal(order)
	if s.balance.LessThan(total) {
		return domain.Order{}, badRequest("Insufficient balance to pay order %d", id)
	}
	s.balance = s.balance.Sub(total)
	order.Status = domain.OrderStatusPaid
	s.orders[id] = order
	return order, nil
}

func (s *state) recordArrival(id int) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := s.orderLocked(id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusPaid {
		return domain.Order{}, badRequest("Order %d is not paid", id)
	}
	product, err := s.productByBarcodeLocked(order.ProductBarcode)
	if err != nil {
		return domain.Order{}, err
	}
	if product.Position == "" {
		return domain.Order{}, badRequest("Product %s has no position", product.Barcode)
	}
	if err := s.adjustStockLocked(order.ProductBarcode, order.Quantity); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatusCompleted
	s.orders[id] = order
	return order, nil
}

// customers

func (s *state) listCustomers() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, id := range sortedKeys(s.customers) {
		out = append(out, s.customers[id])
	}
	return out
}

func (s *state) createCustomer(name string) (domain.Customer, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Customer{}, badRequest("Name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	customer := domain.Customer{ID: s.nextID("customer"), Name: strings.TrimSpace(name)}
	s.customers[customer.ID] = customer
	return customer, nil
}

func (s *state) updateCustomer(id int, name string) (domain.Customer, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Customer{}, badRequest("Name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, notFound("Customer %d not found", id)
	}
	customer.Name = strings.TrimSpace(name)
	s.customers[id] = customer
	return customer, nil
}

func (s *state) deleteCustomer(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok {
		return notFound("Customer %d not found", id)
	}
	if customer.Card != nil {
		delete(s.cards, customer.Card.CardID)
	}
	delete(s.customers, id)
	return nil
}

func (s *state) createCard() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cardID := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	s.cards[cardID] = 0
	return cardID
}

func (s *state) attachCard(customerID int, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[customerID]
	if !ok {
		return notFound("Customer %d not found", customerID)
	}
	owner, ok := s.cards[cardID]
	if !ok {
		return notFound("Card %s not found", cardID)
	}
	if owner != 0 && owner != customerID {
		return conflict("Card %s is already attached", cardID)
	}
	s.cards[cardID] = customerID
	customer.Card = &domain.CustomerCard{CardID: cardID}
	s.customers[customerID] = customer
	return nil
}

// users

func (s *state) listUsers() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, id := range sortedKeys(s.users) {
		out = append(out, s.users[id])
	}
	return out
}

func (s *state) userLocked(id int) (domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, notFound("User %d not found", id)
	}
	return user, nil
}

func (s *state) addUser(username string, role domain.UserType) (domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return domain.User{}, badRequest("Username is required")
	}
	if !role.Valid() {
		return domain.User{}, badRequest("Invalid user type %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return domain.User{}, conflict("Username %s already exists", username)
		}
	}
	user := domain.User{ID: s.nextID("user"), Username: username, Type: role}
	s.users[user.ID] = user
	return user, nil
}

func (s *state) updateUser(id int, username *string, role *domain.UserType) (domain.User, domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, err := s.userLocked(id)
	if err != nil {
		return domain.User{}, domain.User{}, err
	}
	after := before
	if username != nil && *username != before.Username {
		for _, user := range s.users {
			if user.Username == *username {
				return domain.User{}, domain.User{}, conflict("Username %s already exists", *username)
			}
		}
		after.Username = *username
	}
	if role != nil {
		if !role.Valid() {
			return domain.User{}, domain.User{}, badRequest("Invalid user type %q", *role)
		}
		after.Type = *role
	}
	s.users[id] = after
	return before, after, nil
}

func (s *state) userByName(username string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, true
		}
	}
	return domain.User{}, false
}

func (s *state) deleteUser(id int) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.userLocked(id)
	if err != nil {
		return domain.User{}, err
	}
	delete(s.users, id)
	return user, nil
}

// accounting

func (s *state) getBalance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *state) setBalance(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return badRequest("Balance cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = amount
	return nil
}

// dashboard

func (s *state) dashboard() domain.Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	revenue := decimal.Zero
	paid := 0
	byDay := map[string]decimal.Decimal{}
	sold := map[string]*domain.ProductStat{}
	for _, id := range sortedKeys(s.sales) {
		sale := s.sales[id]
		if sale.Status != domain.SaleStatusPaid {
			continue
		}
		paid++
		total := cart.Total(sale)
		revenue = revenue.Add(total)
		day := ""
		if sale.CreatedAt != nil {
			day = sale.CreatedAt.Format("2006-01-02")
		}
		byDay[day] = byDay[day].Add(total)
		for _, line := range sale.Lines {
			stat, ok := sold[line.ProductBarcode]
			if !ok {
				stat = &domain.ProductStat{Barcode: line.ProductBarcode}
				if product, err := s.productByBarcodeLocked(line.ProductBarcode); err == nil {
					stat.Description = product.Description
				}
				sold[line.ProductBarcode] = stat
			}
			stat.QuantitySold += line.Quantity
			stat.Revenue += cart.SaleLineTotal(line).InexactFloat64()
		}
	}

	active := 0
	for _, order := range s.orders {
		if order.Status != domain.OrderStatusCompleted {
			active++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	trend := make([]domain.ChartDataPoint, 0, len(days))
	for _, day := range days {
		trend = append(trend, domain.ChartDataPoint{Label: day, Value: byDay[day].InexactFloat64()})
	}

	top := make([]domain.ProductStat, 0, len(sold))
	for _, stat := range sold {
		top = append(top, *stat)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Revenue == top[j].Revenue {
			return top[i].Barcode < top[j].Barcode
		}
		return top[i].Revenue > top[j].Revenue
	})
	if len(top) > 5 {
		top = top[:5]
	}

	return domain.Dashboard{
		TotalRevenue:  domain.KPI{Value: revenue.InexactFloat64()},
		TotalSales:    domain.KPI{Value: float64(paid)},
		ActiveOrders:  domain.KPI{Value: float64(active)},
		TotalProducts: domain.KPI{Value: float64(len(s.products))},
		EarningsTrend: trend,
		TopProducts:   top,
	}
}
