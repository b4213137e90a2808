// Package form validates operator input before it is sent to the backend.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

// Errors maps a field's JSON name to the message shown next to it.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, e[field])
	}
	return strings.Join(parts, "; ")
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("amount", validPositiveAmount)
		_ = validate.RegisterValidation("balance", validBalance)
		_ = validate.RegisterValidation("rate", validRate)
	})
	return validate
}

func parseDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	return d, err == nil
}

func validPositiveAmount(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && d.IsPositive()
}

func validBalance(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && !d.IsNegative()
}

func validRate(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}

// Validate checks v against its validate tags. It returns nil or Errors.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, len(verrs))
	labels := labelsOf(v)
	for _, fe := range verrs {
		label := labels[fe.StructField()]
		if label == "" {
			label = fe.Field()
		}
		out[fe.Field()] = message(label, fe)
	}
	return out
}

func labelsOf(v any) map[string]string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	labels := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		labels[f.Name] = f.Tag.Get("label")
	}
	return labels
}

func message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "amount":
		return label + " must be greater than 0"
	case "balance", "gte":
		return label + " cannot be negative"
	case "rate":
		return label + " must be between 0 and 1"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", label)
}

func mustDecimal(raw string) decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(raw))
}

type Product struct {
	Description string `json:"description" label:"Description" validate:"required"`
	Barcode     string `json:"barcode" label:"Barcode" validate:"required"`
	Price       string `json:"price_per_unit" label:"Price" validate:"required,amount"`
	Quantity    int    `json:"quantity" label:"Quantity" validate:"gte=0"`
	Position    string `json:"position"`
	Note        string `json:"note"`
}

// ToProduct validates f and converts it.
func (f Product) ToProduct() (domain.Product, error) {
	f.Description = strings.TrimSpace(f.Description)
	f.Barcode = strings.TrimSpace(f.Barcode)
	if err := Validate(f); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		Description:  f.Description,
		Barcode:      f.Barcode,
		PricePerUnit: mustDecimal(f.Price),
		Quantity:     f.Quantity,
		Position:     strings.TrimSpace(f.Position),
		Note:         strings.TrimSpace(f.Note),
	}, nil
}

// ProductUpdate leaves nil and empty fields unchanged.
type ProductUpdate struct {
	Description *string `json:"description"`
	Barcode     *string `json:"barcode"`
	Price       string  `json:"price_per_unit" label:"Price" validate:"omitempty,amount"`
	Quantity    *int    `json:"quantity" label:"Quantity" validate:"omitempty,gte=0"`
	Position    *string `json:"position"`
	Note        *string `json:"note"`
}

func (f ProductUpdate) ToRequest() (domain.ProductUpdateRequest, error) {
	errs := Errors{}
	if err := Validate(f); err != nil && !errors.As(err, &errs) {
		return domain.ProductUpdateRequest{}, err
	}
	trimmed := func(field string, label string, p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		if v == "" {
			errs[field] = label + " is required"
		}
		return &v
	}
	req := domain.ProductUpdateRequest{
		Description: trimmed("description", "Description", f.Description),
		Barcode:     trimmed("barcode", "Barcode", f.Barcode),
		Quantity:    f.Quantity,
	}
	if len(errs) > 0 {
		return domain.ProductUpdateRequest{}, errs
	}
	if f.Price != "" {
		price := mustDecimal(f.Price)
		req.PricePerUnit = &price
	}
	if f.Position != nil {
		position := strings.TrimSpace(*f.Position)
		req.Position = &position
	}
	if f.Note != nil {
		note := strings.TrimSpace(*f.Note)
		req.Note = &note
	}
	return req, nil
}

type Order struct {
	ProductBarcode string `json:"product_barcode" label:"Product" validate:"required"`
	Quantity       int    `json:"quantity" label:"Quantity" validate:"min=1"`
	Price          string `json:"price_per_unit" label:"Price" validate:"required,amount"`
}

func (f Order) ToOrder() (domain.Order, error) {
	f.ProductBarcode = strings.TrimSpace(f.ProductBarcode)
	if err := Validate(f); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		ProductBarcode: f.ProductBarcode,
		Quantity:       f.Quantity,
		PricePerUnit:   mustDecimal(f.Price),
	}, nil
}

type UserCreate struct {
	Username string `json:"username" label:"Username" validate:"required"`
	Password string `json:"password" label:"Password" validate:"required,min=6"`
	Type     string `json:"type" label:"Role" validate:"required,oneof=Administrator ShopManager Cashier"`
}

func (f UserCreate) ToRequest() (domain.UserCreateRequest, error) {
	f.Username = strings.TrimSpace(f.Username)
	if err := Validate(f); err != nil {
		return domain.UserCreateRequest{}, err
	}
	return domain.UserCreateRequest{Username: f.Username, Password: f.Password, Type: domain.UserType(f.Type)}, nil
}

// UserUpdate leaves empty fields unchanged.
type UserUpdate struct {
	Username string `json:"username"`
	Password string `json:"password" label:"Password" validate:"omitempty,min=6"`
	Type     string `json:"type" label:"Role" validate:"omitempty,oneof=Administrator ShopManager Cashier"`
}

func (f UserUpdate) ToRequest() (domain.UserUpdateRequest, error) {
	if err := Validate(f); err != nil {
		return domain.UserUpdateRequest{}, err
	}
	var req domain.UserUpdateRequest
	if name := strings.TrimSpace(f.Username); name != "" {
		req.Username = &name
	}
	if f.Password != "" {
		password := f.Password
		req.Password = &password
	}
	if f.Type != "" {
		role := domain.UserType(f.Type)
		req.Type = &role
	}
	return req, nil
}

type Customer struct {
	Name string `json:"name" label:"Name" validate:"required"`
}

type Balance struct {
	Amount string `json:"amount" label:"Amount" validate:"required,balance"`
}

func (f Balance) Value() (decimal.Decimal, error) {
	if err := Validate(f); err != nil {
		return decimal.Zero, err
	}
	return mustDecimal(f.Amount), nil
}

type Payment struct {
	Cash string `json:"cash_amount" label:"Cash" validate:"required,amount"`
}

func (f Payment) Value() (decimal.Decimal, error) {
	if err := Validate(f); err != nil {
		return decimal.Zero, err
	}
	return mustDecimal(f.Cash), nil
}

type Discount struct {
	Rate string `json:"discount_rate" label:"Discount" validate:"required,rate"`
}

func (f Discount) Value() (decimal.Decimal, error) {
	if err := Validate(f); err != nil {
		return decimal.Zero, err
	}
	return mustDecimal(f.Rate), nil
}
