// Package fault holds the business errors shared by the storefront
// components. Every error renders itself as a structured response, so
// handlers return them unchanged and the errors middleware does the rest.
package fault

import (
	"fmt"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/api/weberr"
)

// ValidationError is a user-correctable problem with the input.
type ValidationError struct {
	Message string
}

func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Response() (any, int) {
	return weberr.ErrorResponse{Error: true, Message: e.Message}, http.StatusBadRequest
}

// NotFoundError reports a missing cart, product, order or print request.
type NotFoundError struct {
	What string
	ID   string
}

func NotFound(what, id string) *NotFoundError {
	return &NotFoundError{What: what, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.What + " not found"
	}
	return fmt.Sprintf("%s[%s] not found", e.What, e.ID)
}

func (e *NotFoundError) Response() (any, int) {
	return weberr.ErrorResponse{Error: true, Message: e.What + " not found"}, http.StatusNotFound
}

func (e *NotFoundError) Fields() map[string]any {
	return map[string]any{"resource": e.What, "resource_id": e.ID}
}

// StockExceededError rejects a cart change that asks for more than is left.
type StockExceededError struct {
	ProductID string
	Available int
	InCart    int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("We only have %d left. You already have %d in your cart.", e.Available, e.InCart)
}

func (e *StockExceededError) Response() (any, int) {
	data := map[string]any{"productId": e.ProductID, "available": e.Available, "inCart": e.InCart}
	return weberr.ErrorResponse{Error: true, Message: e.Error(), Data: data}, http.StatusConflict
}

func (e *StockExceededError) Fields() map[string]any {
	return map[string]any{"product_id": e.ProductID, "available": e.Available, "in_cart": e.InCart}
}

// OutOfStockError rejects a checkout whose line exceeds the live stock.
type OutOfStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product[%s] out of stock: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *OutOfStockError) Response() (any, int) {
	data := map[string]any{"productId": e.ProductID, "available": e.Available, "requested": e.Requested}
	msg := "Unable to checkout. One or more products in the cart are out of stock."
	return weberr.ErrorResponse{Error: true, Message: msg, Data: data}, http.StatusConflict
}

func (e *OutOfStockError) Fields() map[string]any {
	return map[string]any{"product_id": e.ProductID, "available": e.Available, "requested": e.Requested}
}

// AmountMismatchError rejects a payment whose amount disagrees with the quote.
type AmountMismatchError struct {
	Expected int
	Got      int
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount %d does not match latest quote %d", e.Got, e.Expected)
}

func (e *AmountMismatchError) Response() (any, int) {
	data := map[string]any{"latestQuote": e.Expected}
	return weberr.ErrorResponse{Error: true, Message: "Amount does not match latest quote", Data: data}, http.StatusBadRequest
}

// ConflictError reports a lost race against a concurrent request or a state
// that no longer allows the operation.
type ConflictError struct {
	Message string
}

func Conflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Response() (any, int) {
	return weberr.ErrorResponse{Error: true, Message: e.Message}, http.StatusConflict
}

// ForbiddenError reports an identity acting on something it does not own.
type ForbiddenError struct {
	Message string
}

func Forbidden(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

func (e *ForbiddenError) Error() string { return e.Message }

func (e *ForbiddenError) Response() (any, int) {
	return weberr.ErrorResponse{Error: true, Message: e.Message}, http.StatusForbidden
}

// QuotaExceededError rejects a request once the daily allowance is used up.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit of %d reached", e.Limit)
}

func (e *QuotaExceededError) Response() (any, int) {
	msg := fmt.Sprintf("You can submit %d print requests per day. Try again tomorrow.", e.Limit)
	return weberr.ErrorResponse{Error: true, Message: msg, Data: map[string]any{"limit": e.Limit}}, http.StatusTooManyRequests
}
