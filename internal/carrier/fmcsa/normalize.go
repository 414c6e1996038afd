package fmcsa

import (
	"strconv"
	"strings"

	"github.com/dotfilings/dotfilings/internal/carrier/domain"
)

// Normalize maps a raw upstream payload into the canonical record.
// The upstream answers in two field-name shapes depending on which of
// its backends served the request, so every field is resolved through
// an ordered key list. A payload with neither a legal name nor a DBA
// name fails the shape check and is never returned.
func Normalize(dotNumber string, raw map[string]any) (domain.Record, error) {
	// Some responses nest the carrier under a "carrier" or "content" key.
	if nested, ok := raw["carrier"].(map[string]any); ok {
		raw = nested
	} else if nested, ok := raw["content"].(map[string]any); ok {
		raw = nested
	}

	record := domain.Record{
		USDOTNumber:      dotNumber,
		LegalName:        pickString(raw, "legalName", "legal_name", "dot_legal_name"),
		DBAName:          pickString(raw, "dbaName", "dba_name", "dot_dba_name"),
		EntityType:       pickString(raw, "entityType", "entity_type"),
		OperatingStatus:  pickString(raw, "operatingStatus", "operating_status", "statusCode"),
		OutOfServiceDate: pickString(raw, "outOfServiceDate", "out_of_service_date", "oosDate"),
		MCNumber:         pickString(raw, "mcNumber", "mc_number", "docketNumber"),
		Telephone:        pickString(raw, "telephone", "phone", "telephone_number"),
		EmailAddress:     pickString(raw, "emailAddress", "email_address", "email"),
		StreetAddress:    pickString(raw, "phyStreet", "physical_address", "streetAddress"),
		City:             pickString(raw, "phyCity", "physical_city", "city"),
		State:            pickString(raw, "phyState", "physical_state", "state"),
		ZipCode:          pickString(raw, "phyZipcode", "physical_zip", "zipCode"),
		PowerUnits:       pickInt(raw, "totalPowerUnits", "power_units", "powerUnits"),
		DriverTotal:      pickInt(raw, "totalDrivers", "driver_total", "totalDriverCount"),
		DriverCDL:        pickInt(raw, "cdlDrivers", "driver_cdl", "cdlDriverCount"),
		ComplaintCount:   pickInt(raw, "complaintCount", "complaint_count"),
		MCS150LastUpdate: pickString(raw, "mcs150FormDate", "mcs150_last_update", "mcs150Date"),
		Mileage:          pickInt(raw, "mcs150Mileage", "mcs150_mileage", "mileage"),
		MileageYear:      pickString(raw, "mcs150MileageYear", "mcs150_mileage_year", "mileageYear"),
	}

	oos := pickString(raw, "oosStatus", "out_of_service", "outOfService")
	record.OutOfService = record.OutOfServiceDate != "" ||
		strings.EqualFold(oos, "true") || oos == "1" || strings.EqualFold(oos, "yes")

	if subtypes, ok := raw["vehicleBreakdown"].(map[string]any); ok {
		record.VehicleSubtypes = toIntMap(subtypes)
	} else if subtypes, ok := raw["vehicle_subtypes"].(map[string]any); ok {
		record.VehicleSubtypes = toIntMap(subtypes)
	}

	if record.LegalName == "" && record.DBAName == "" {
		return domain.Record{}, domain.ErrBadUpstream
	}
	return record, nil
}

func pickString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func pickInt(raw map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

func toIntMap(raw map[string]any) map[string]int {
	out := make(map[string]int, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case float64:
			out[key] = int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				out[key] = n
			}
		}
	}
	return out
}
