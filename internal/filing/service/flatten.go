package service

import (
	"encoding/json"
	"strings"

	"github.com/dotfilings/dotfilings/internal/wizard"
	"gorm.io/datatypes"
)

// sanitizeState strips raw payment-card fields before anything is
// persisted, keeping only the last four digits and the expiry.
func sanitizeState(state wizard.FormState) wizard.FormState {
	if digits := digitsOf(state.Billing.CardNumber); len(digits) >= 4 {
		state.Billing.CardLast4 = digits[len(digits)-4:]
	}
	state.Billing.CardNumber = ""
	state.Billing.CardCVV = ""
	return state
}

func digitsOf(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// marshalState renders the nested snapshot and its single-level mirror
// used by downstream reporting.
func marshalState(state wizard.FormState) (datatypes.JSON, datatypes.JSON, error) {
	formData, err := json.Marshal(state)
	if err != nil {
		return nil, nil, err
	}

	var nested map[string]any
	if err := json.Unmarshal(formData, &nested); err != nil {
		return nil, nil, err
	}

	flat := make(map[string]any)
	flatten("", nested, flat)

	flatData, err := json.Marshal(flat)
	if err != nil {
		return nil, nil, err
	}
	return formData, flatData, nil
}

// flatten joins nested keys with underscores; non-object leaves
// (including arrays) are copied as-is.
func flatten(prefix string, value map[string]any, out map[string]any) {
	for key, v := range value {
		name := key
		if prefix != "" {
			name = prefix + "_" + key
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(name, nested, out)
			continue
		}
		out[name] = v
	}
}
