// Package wizard owns the multi-step form state and the single
// authoritative step sequencer used by every entry point.
package wizard

// FilingType selects which wizard a filing walks through.
type FilingType string

const (
	FilingTypeUCR    FilingType = "ucr"
	FilingTypeMCS150 FilingType = "mcs150"
)

func (t FilingType) Valid() bool {
	return t == FilingTypeUCR || t == FilingTypeMCS150
}

// Reasons for an MCS-150 filing.
const (
	ReasonBiennialUpdate = "biennialUpdate"
	ReasonReactivate     = "reactivate"
	ReasonReapplication  = "reapplication"
	ReasonOutOfBusiness  = "outOfBusiness"
)

// Answers to the has-changes gate.
const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

// ChangeFlags records which data-collection steps the user opted into.
type ChangeFlags struct {
	CompanyInfo   bool `json:"companyInfo"`
	OperatingInfo bool `json:"operatingInfo"`
}

type CompanySection struct {
	LegalName     string `json:"legalName"`
	DBAName       string `json:"dbaName"`
	EIN           string `json:"ein"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
}

type OperatingSection struct {
	PowerUnits  int    `json:"powerUnits"`
	DriverTotal int    `json:"driverTotal"`
	DriverCDL   int    `json:"driverCdl"`
	Mileage     int    `json:"mileage"`
	MileageYear string `json:"mileageYear"`
}

type OperatorSection struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Title          string `json:"title"`
	LicenseFileURL string `json:"licenseFileUrl"`
	Signature      string `json:"signature"`
}

type BillingSection struct {
	PaymentMethod  string `json:"paymentMethod"`
	CardholderName string `json:"cardholderName"`
	CardNumber     string `json:"cardNumber"`
	CardExpiry     string `json:"cardExpiry"`
	CardCVV        string `json:"cardCvv"`
	CardLast4      string `json:"cardLast4"`
	TermsAccepted  bool   `json:"termsAccepted"`
}

// UCRSection holds the fields specific to the UCR registration wizard.
type UCRSection struct {
	CarrierConfirmed bool `json:"carrierConfirmed"`
	VehicleCount     int  `json:"vehicleCount"`
}

// FormState is the accumulated wizard answers. Every section is a
// value (never a pointer), so a state built by NewFormState or decoded
// from a snapshot always has all sections present and defaulted.
type FormState struct {
	ReasonForFiling string           `json:"reasonForFiling"`
	HasChanges      string           `json:"hasChanges"`
	ChangesToMake   ChangeFlags      `json:"changesToMake"`
	CompanyInfo     CompanySection   `json:"companyInfo"`
	OperatingInfo   OperatingSection `json:"operatingInfo"`
	Operator        OperatorSection  `json:"operator"`
	Billing         BillingSection   `json:"billing"`
	UCR             UCRSection       `json:"ucr"`
}

// NewFormState returns a fully-populated state with every leaf at its
// zero value.
func NewFormState() FormState {
	return FormState{}
}

func validReason(reason string) bool {
	switch reason {
	case ReasonBiennialUpdate, ReasonReactivate, ReasonReapplication, ReasonOutOfBusiness:
		return true
	default:
		return false
	}
}
