package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Record is the canonical carrier shape every lookup source is
// normalized into before caching or returning.
type Record struct {
	USDOTNumber      string         `json:"usdotNumber"`
	LegalName        string         `json:"legalName"`
	DBAName          string         `json:"dbaName"`
	EntityType       string         `json:"entityType"`
	OperatingStatus  string         `json:"operatingStatus"`
	OutOfService     bool           `json:"outOfService"`
	OutOfServiceDate string         `json:"outOfServiceDate"`
	MCNumber         string         `json:"mcNumber"`
	Telephone        string         `json:"telephone"`
	EmailAddress     string         `json:"emailAddress"`
	StreetAddress    string         `json:"streetAddress"`
	City             string         `json:"city"`
	State            string         `json:"state"`
	ZipCode          string         `json:"zipCode"`
	PowerUnits       int            `json:"powerUnits"`
	DriverTotal      int            `json:"driverTotal"`
	DriverCDL        int            `json:"driverCdl"`
	VehicleSubtypes  map[string]int `json:"vehicleSubtypes"`
	ComplaintCount   int            `json:"complaintCount"`
	MCS150LastUpdate string         `json:"mcs150LastUpdate"`
	Mileage          int            `json:"mileage"`
	MileageYear      string         `json:"mileageYear"`
}

// Snapshot is the persisted write-through cache of a remote lookup.
type Snapshot struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	USDOTNumber string         `gorm:"column:usdot_number;uniqueIndex;not null" json:"usdot_number"`
	Data        datatypes.JSON `gorm:"type:jsonb;not null" json:"data"`
	FetchedAt   time.Time      `gorm:"not null" json:"fetched_at"`
}

func (Snapshot) TableName() string { return "carrier_snapshots" }
