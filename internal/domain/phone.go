package domain

import (
	"regexp"
	"strings"
)

// CountryCode is the E.164 prefix for Uganda.
const CountryCode = "+256"

// MTN numbers start with 7, Airtel ranges with 3 or 7.
var ugandaMSISDN = regexp.MustCompile(`^\+256[37]\d{8}$`)

// ErrInvalidPhone is returned for numbers outside the Uganda mobile ranges.
var ErrInvalidPhone = ErrValidation("Please enter a valid Ugandan phone number (e.g., 0771234567)")

// NormalizePhone converts a user-entered number to +256 form.
// A leading 0 is replaced by the country code; any other input without
// a leading + gets the country code prepended unchanged.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(phone, "0"):
		phone = CountryCode + phone[1:]
	case !strings.HasPrefix(phone, "+"):
		phone = CountryCode + phone
	}

	if !ugandaMSISDN.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// MaskPhone hides the middle digits of a normalized number for logs.
func MaskPhone(phone string) string {
	if len(phone) < 10 {
		return "****"
	}
	return phone[:6] + strings.Repeat("*", len(phone)-9) + phone[len(phone)-3:]
}
