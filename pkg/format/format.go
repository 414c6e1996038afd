// Package format normalizes raw field input into canonical display
// forms and validates completed values against format rules. All
// functions are pure and never panic.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	Phone      Kind = "phone"
	EIN        Kind = "ein"
	SSN        Kind = "ssn"
	CardNumber Kind = "card_number"
	Expiry     Kind = "expiry"
	CVV        Kind = "cvv"
	Email      Kind = "email"
)

// Error is a field-scoped validation failure with a human-readable message.
type Error struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// Format rewrites raw keystrokes into the canonical display form for
// kind. Unknown kinds pass through unchanged.
func Format(kind Kind, raw string) string {
	switch kind {
	case Phone:
		return formatPhone(raw)
	case EIN:
		return formatEIN(raw)
	case SSN:
		return formatSSN(raw)
	case CardNumber:
		return formatCardNumber(raw)
	case Expiry:
		return formatExpiry(raw)
	case CVV:
		return digitsOnly(raw, 3)
	case Email:
		return strings.TrimSpace(raw)
	default:
		return raw
	}
}

// Validate checks a completed value. A nil return means valid. Expiry
// is validated against the current wall clock; use ValidateAt in tests.
func Validate(kind Kind, value string) error {
	return ValidateAt(kind, value, time.Now())
}

// ValidateAt is Validate with an explicit reference time for the
// expiry check.
func ValidateAt(kind Kind, value string, now time.Time) error {
	switch kind {
	case Phone:
		if len(digitsOnly(value, 10)) != 10 {
			return &Error{Field: "phone", Code: "invalid_phone", Message: "enter a 10-digit phone number"}
		}
	case EIN:
		if len(digitsOnly(value, 9)) != 9 {
			return &Error{Field: "ein", Code: "invalid_ein", Message: "enter a 9-digit EIN"}
		}
	case SSN:
		if len(digitsOnly(value, 9)) != 9 {
			return &Error{Field: "ssn", Code: "invalid_ssn", Message: "enter a 9-digit SSN"}
		}
	case CardNumber:
		if len(digitsOnly(value, 16)) != 16 {
			return &Error{Field: "card_number", Code: "invalid_card_number", Message: "enter a 16-digit card number"}
		}
	case Expiry:
		return validateExpiry(value, now)
	case CVV:
		if len(digitsOnly(value, 3)) != 3 {
			return &Error{Field: "card_cvv", Code: "invalid_cvv", Message: "enter the 3-digit security code"}
		}
	case Email:
		if !emailRe.MatchString(strings.TrimSpace(value)) {
			return &Error{Field: "email", Code: "invalid_email", Message: "enter a valid email address"}
		}
	default:
		return &Error{Field: string(kind), Code: "unknown_kind", Message: fmt.Sprintf("unknown field kind %q", kind)}
	}
	return nil
}

// NormalizeDOTNumber strips an optional "USDOT" prefix and whitespace
// and requires exactly 7 digits, rejecting before any network call.
func NormalizeDOTNumber(raw string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "USDOT")
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, " ", "")

	if len(v) != 7 {
		return "", &Error{Field: "dot_number", Code: "invalid_dot_number", Message: "USDOT number must be 7 digits"}
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return "", &Error{Field: "dot_number", Code: "invalid_dot_number", Message: "USDOT number must be 7 digits"}
		}
	}
	return v, nil
}

func digitsOnly(raw string, max int) string {
	var b strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if max > 0 && b.Len() == max {
			break
		}
	}
	return b.String()
}

// formatPhone masks as (XXX) XXX-XXXX, leaving the area-code paren
// open while fewer than four digits have been typed.
func formatPhone(raw string) string {
	d := digitsOnly(raw, 10)
	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 3:
		return "(" + d
	case len(d) <= 6:
		return fmt.Sprintf("(%s) %s", d[:3], d[3:])
	default:
		return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
	}
}

// formatEIN masks as XX-XXXXXXX, length-bounded at 10 characters
// including the dash.
func formatEIN(raw string) string {
	d := digitsOnly(raw, 9)
	if len(d) <= 2 {
		return d
	}
	return d[:2] + "-" + d[2:]
}

func formatSSN(raw string) string {
	d := digitsOnly(raw, 9)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 5:
		return d[:3] + "-" + d[3:]
	default:
		return d[:3] + "-" + d[3:5] + "-" + d[5:]
	}
}

func formatCardNumber(raw string) string {
	d := digitsOnly(raw, 16)
	var groups []string
	for i := 0; i < len(d); i += 4 {
		end := i + 4
		if end > len(d) {
			end = len(d)
		}
		groups = append(groups, d[i:end])
	}
	return strings.Join(groups, " ")
}

func formatExpiry(raw string) string {
	d := digitsOnly(raw, 4)
	if len(d) <= 2 {
		return d
	}
	return d[:2] + "/" + d[2:]
}

func validateExpiry(value string, now time.Time) error {
	invalid := &Error{Field: "card_expiry", Code: "invalid_expiry", Message: "enter a valid MM/YY expiration"}
	expired := &Error{Field: "card_expiry", Code: "card_expired", Message: "card expiration is in the past"}

	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return invalid
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return invalid
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return invalid
	}
	year += 2000

	if year < now.Year() {
		return expired
	}
	if year == now.Year() && month < int(now.Month()) {
		return expired
	}
	return nil
}
