package services

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	maxNotesLength        = 500
	maxContactPhoneLength = 32
	maxAddressLineLength  = 200
)

func normalizeShipping(details ShippingDetails) (ShippingDetails, error) {
	addr, err := normalizeAddress(details.Address)
	if err != nil {
		return ShippingDetails{}, err
	}

	out := ShippingDetails{Address: addr}

	if phone := trimmedPointer(details.ContactPhone); phone != nil {
		if utf8.RuneCountInString(*phone) > maxContactPhoneLength {
			return ShippingDetails{}, fmt.Errorf("%w: contact phone must be at most %d characters", ErrInvalidInput, maxContactPhoneLength)
		}
		out.ContactPhone = phone
	}
	if notes := trimmedPointer(details.Notes); notes != nil {
		if utf8.RuneCountInString(*notes) > maxNotesLength {
			return ShippingDetails{}, fmt.Errorf("%w: notes must be at most %d characters", ErrInvalidInput, maxNotesLength)
		}
		out.Notes = notes
	}
	return out, nil
}

func normalizeAddress(addr Address) (Address, error) {
	out := Address{
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      trimmedPointer(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
	}

	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"line1", out.Line1},
		{"city", out.City},
		{"state", out.State},
		{"postalCode", out.PostalCode},
		{"country", out.Country},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
			continue
		}
		if utf8.RuneCountInString(field.value) > maxAddressLineLength {
			return Address{}, fmt.Errorf("%w: %s is too long", ErrInvalidAddress, field.name)
		}
	}
	if len(missing) > 0 {
		return Address{}, fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}
	return out, nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
	}
	return nil
}

// mergeQuantity adds a further quantity to an existing line. Only int overflow is rejected.
func mergeQuantity(current, added int) (int, error) {
	if added > math.MaxInt-current {
		return 0, fmt.Errorf("%w: merged quantity overflows", ErrInvalidQuantity)
	}
	return current + added, nil
}

func requireID(value, name string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	return trimmed, nil
}

func trimmedPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func valuePtr[T any](value T) *T {
	return &value
}

func cloneAddress(addr Address) Address {
	out := addr
	if addr.Line2 != nil {
		out.Line2 = valuePtr(*addr.Line2)
	}
	return out
}
