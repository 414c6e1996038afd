package wizard

// Patch is a section-granular update to a FormState. Nil sections are
// left untouched; present sections replace the stored section whole,
// which is the only merge depth the wizard supports.
type Patch struct {
	ReasonForFiling *string           `json:"reasonForFiling,omitempty"`
	HasChanges      *string           `json:"hasChanges,omitempty"`
	ChangesToMake   *ChangeFlags      `json:"changesToMake,omitempty"`
	CompanyInfo     *CompanySection   `json:"companyInfo,omitempty"`
	OperatingInfo   *OperatingSection `json:"operatingInfo,omitempty"`
	Operator        *OperatorSection  `json:"operator,omitempty"`
	Billing         *BillingSection   `json:"billing,omitempty"`
	UCR             *UCRSection       `json:"ucr,omitempty"`
}

// Apply merges the patch into state and returns the result.
func Apply(state FormState, patch Patch) FormState {
	if patch.ReasonForFiling != nil {
		state.ReasonForFiling = *patch.ReasonForFiling
	}
	if patch.HasChanges != nil {
		state.HasChanges = *patch.HasChanges
	}
	if patch.ChangesToMake != nil {
		state.ChangesToMake = *patch.ChangesToMake
	}
	if patch.CompanyInfo != nil {
		state.CompanyInfo = *patch.CompanyInfo
	}
	if patch.OperatingInfo != nil {
		state.OperatingInfo = *patch.OperatingInfo
	}
	if patch.Operator != nil {
		op := *patch.Operator
		// Attachment references are owned by the upload flow, not the
		// step patch; keep whatever the filing already recorded.
		if op.LicenseFileURL == "" {
			op.LicenseFileURL = state.Operator.LicenseFileURL
		}
		state.Operator = op
	}
	if patch.Billing != nil {
		state.Billing = *patch.Billing
	}
	if patch.UCR != nil {
		state.UCR = *patch.UCR
	}
	return state
}
