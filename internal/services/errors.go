package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfmarket/api/internal/repositories"
)

var (
	// ErrInvalidInput indicates the caller supplied a missing or malformed argument.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrInvalidQuantity indicates a quantity outside the accepted range.
	ErrInvalidQuantity = errors.New("services: invalid quantity")
	// ErrInvalidAddress indicates a shipping address with missing required fields.
	ErrInvalidAddress = errors.New("services: invalid address")
	// ErrUnavailable indicates a persistence or collaborator fault. Nothing was applied.
	ErrUnavailable = errors.New("services: unavailable")
)

var (
	// ErrCartConflict indicates the cart changed concurrently and the update was not applied.
	ErrCartConflict = errors.New("cart: conflict")

	// ErrItemNotFound indicates the catalog has no item with the requested identifier.
	ErrItemNotFound = errors.New("checkout: item not found")
	// ErrEmptyCart indicates a cart checkout was attempted on a cart with no items.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrItemsUnavailable indicates one or more cart items no longer resolve in the catalog.
	ErrItemsUnavailable = errors.New("checkout: items unavailable")
	// ErrCheckoutInProgress indicates another checkout for the same buyer holds the lock.
	ErrCheckoutInProgress = errors.New("checkout: already in progress")

	// ErrOrderNotFound indicates no order with the identifier exists within the caller's scope.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrInvalidTransition indicates the requested status change is not permitted for the caller.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the order status changed between read and write.
	ErrOrderConflict = errors.New("order: conflict")
)

// UnavailableItemsError lists the cart items that no longer resolve in the catalog. It matches
// ErrItemsUnavailable under errors.Is.
type UnavailableItemsError struct {
	ItemIDs []string
}

func (e *UnavailableItemsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrItemsUnavailable, strings.Join(e.ItemIDs, ", "))
}

func (e *UnavailableItemsError) Unwrap() error { return ErrItemsUnavailable }

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

// translateRepoError maps repository categories onto service sentinels. Errors that already carry a
// service sentinel pass through so transactional callbacks can return typed outcomes.
func translateRepoError(err error, notFound, conflict error) error {
	if err == nil {
		return nil
	}
	if isServiceError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return notFound
		case repoErr.IsConflict() && conflict != nil:
			return conflict
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isServiceError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		ErrInvalidQuantity,
		ErrInvalidAddress,
		ErrUnavailable,
		ErrCartConflict,
		ErrItemNotFound,
		ErrEmptyCart,
		ErrItemsUnavailable,
		ErrCheckoutInProgress,
		ErrOrderNotFound,
		ErrInvalidTransition,
		ErrOrderConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// failureReason returns a low-cardinality label for metrics.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrItemsUnavailable):
		return "items_unavailable"
	case errors.Is(err, ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, ErrCartConflict):
		return "conflict"
	default:
		return "unavailable"
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type noopMetrics struct{}

func (noopMetrics) CheckoutSucceeded(string, int) {}
func (noopMetrics) CheckoutFailed(string, string) {}
func (noopMetrics) StatusChanged(string, OrderStatus, OrderStatus) {}

func noopLogger(context.Context, string, map[string]any) {}
