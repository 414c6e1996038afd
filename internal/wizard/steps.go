package wizard

// MCS-150 wizard steps.
const (
	StepReason    = 1
	StepChanges   = 2
	StepCompany   = 3
	StepOperating = 4
	StepOperator  = 5
	StepBilling   = 6
)

// UCR wizard steps.
const (
	UCRStepCarrier  = 1
	UCRStepVehicles = 2
	UCRStepOperator = 3
	UCRStepBilling  = 4
)

// StepCount is the terminal step index for a filing type.
func StepCount(t FilingType) int {
	if t == FilingTypeUCR {
		return 4
	}
	return 6
}

// IsStepComplete reports whether the step's required fields are present
// in state. It never mutates state and unknown step indices are
// complete by default.
func IsStepComplete(t FilingType, step int, state FormState) bool {
	if t == FilingTypeUCR {
		return isUCRStepComplete(step, state)
	}
	return isMCS150StepComplete(step, state)
}

func isMCS150StepComplete(step int, state FormState) bool {
	switch step {
	case StepReason:
		return validReason(state.ReasonForFiling)
	case StepChanges:
		return state.HasChanges == AnswerYes || state.HasChanges == AnswerNo
	case StepCompany, StepOperating:
		// Field-level checks are the formatters' job; the step gates
		// only on whether the user opted in, and an opted-in step has
		// no required presence beyond what the sequencer already saw.
		return true
	case StepOperator:
		return operatorComplete(state.Operator)
	case StepBilling:
		return billingComplete(state.Billing)
	default:
		return true
	}
}

func isUCRStepComplete(step int, state FormState) bool {
	switch step {
	case UCRStepCarrier:
		return state.UCR.CarrierConfirmed
	case UCRStepVehicles:
		return state.UCR.VehicleCount > 0
	case UCRStepOperator:
		return operatorComplete(state.Operator)
	case UCRStepBilling:
		return billingComplete(state.Billing)
	default:
		return true
	}
}

func operatorComplete(op OperatorSection) bool {
	return op.FirstName != "" &&
		op.LastName != "" &&
		op.Email != "" &&
		op.LicenseFileURL != "" &&
		op.Signature != ""
}

func billingComplete(b BillingSection) bool {
	return b.PaymentMethod != "" && b.TermsAccepted
}

// NextStep computes the step that follows current, applying the skip
// rules for conditionally-irrelevant steps. An incomplete current step
// blocks the advance and is returned unchanged.
func NextStep(t FilingType, current int, state FormState) int {
	if !IsStepComplete(t, current, state) {
		return current
	}

	last := StepCount(t)
	if t == FilingTypeUCR {
		return min(current+1, last)
	}

	switch current {
	case StepReason:
		// An out-of-business notification needs only operator
		// sign-off and payment.
		if state.ReasonForFiling == ReasonOutOfBusiness {
			return StepOperator
		}
	case StepChanges:
		if state.HasChanges == AnswerNo {
			return StepOperator
		}
		if !state.ChangesToMake.CompanyInfo && !state.ChangesToMake.OperatingInfo {
			return StepOperator
		}
		if !state.ChangesToMake.CompanyInfo {
			return StepOperating
		}
		return StepCompany
	case StepCompany:
		if !state.ChangesToMake.OperatingInfo {
			return StepOperator
		}
	}

	return min(current+1, last)
}

// PrevStep mirrors NextStep's skip predicates in reverse so a user
// always retraces exactly the steps they were shown. Floored at step 1.
func PrevStep(t FilingType, current int, state FormState) int {
	if t == FilingTypeUCR {
		return max(current-1, 1)
	}

	switch current {
	case StepOperator:
		if state.ReasonForFiling == ReasonOutOfBusiness {
			return StepReason
		}
		if state.HasChanges == AnswerNo {
			return StepChanges
		}
		if !state.ChangesToMake.CompanyInfo && !state.ChangesToMake.OperatingInfo {
			return StepChanges
		}
		if !state.ChangesToMake.OperatingInfo {
			return StepCompany
		}
		return StepOperating
	case StepOperating:
		if !state.ChangesToMake.CompanyInfo {
			return StepChanges
		}
		return StepCompany
	}

	return max(current-1, 1)
}
