package model

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

const (
	DefaultFirstName   = "Auto"
	DefaultLastName    = "User"
	DefaultDateOfBirth = "2000-01-01"
	LocationSourceCSV  = "CSV"
)

// DefaultLocation is sent when the feed row carries no geolocation hint.
var DefaultLocation = Location{Lat: 10.7, Lon: 106.6, Source: LocationSourceCSV}

// ParseGender accepts any casing and falls back to MALE.
func ParseGender(raw string) Gender {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(raw))); g {
	case GenderMale, GenderFemale, GenderOther:
		return g
	default:
		return GenderMale
	}
}

type Location struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Source string  `json:"source"`
}

// CsvCandidate is one row of the pending-user feed.
type CsvCandidate struct {
	Phone       string
	Password    string
	FirstName   string
	LastName    string
	Gender      Gender
	DateOfBirth string
	Location    *Location
}

func (c CsvCandidate) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Phone, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// WithDefaults fills every optional field the feed left empty.
func (c CsvCandidate) WithDefaults() CsvCandidate {
	if c.FirstName == "" {
		c.FirstName = DefaultFirstName
	}
	if c.LastName == "" {
		c.LastName = DefaultLastName
	}
	c.Gender = ParseGender(string(c.Gender))
	if c.DateOfBirth == "" {
		c.DateOfBirth = DefaultDateOfBirth
	}
	if c.Location == nil {
		loc := DefaultLocation
		c.Location = &loc
	}
	return c
}

// NewDeviceID returns a fresh opaque device identifier. A new one is drawn
// for every candidate on every run.
func NewDeviceID() string {
	return uuid.NewString()
}

// LoginCandidate is a persisted user selected for a login retry.
type LoginCandidate struct {
	ID       int64  `db:"id"`
	Phone    string `db:"phone"`
	Password string `db:"password"`
	DeviceID string `db:"device_id"`
}
