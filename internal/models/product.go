package models

import (
	"time"
)

// CheckKind identifies which cadence produced a check
type CheckKind string

const (
	KindAvailability CheckKind = "availability"
	KindPrice        CheckKind = "price"
)

// Outcome is the result classification of a single check attempt
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFetchError Outcome = "fetch_error"
	OutcomeParseError Outcome = "parse_error"
)

// Product represents a tracked product in the database
type Product struct {
	ID                    uint       `gorm:"primarykey" json:"id"`
	URL                   string     `gorm:"uniqueIndex;not null" json:"url"`         // Product page URL
	Name                  string     `json:"name"`                                    // Display name (user-supplied or auto-detected)
	NameAutoDetected      bool       `gorm:"default:false" json:"name_auto_detected"` // Name came from a scrape, may be refreshed
	LastAvailable         *bool      `json:"last_available"`                          // nil until first successful availability check
	LastPrice             *float64   `json:"last_price"`                              // nil until first successful price check
	Currency              string     `json:"currency"`                                // Currency of LastPrice
	LastStatus            string     `json:"last_status"`                             // Outcome of the most recent check attempt
	LastAvailabilityCheck *time.Time `json:"last_availability_check"`
	LastPriceCheck        *time.Time `json:"last_price_check"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// CheckRecord is an immutable audit entry for one check attempt.
// Records are append-only and deleted only when their product is removed.
type CheckRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	Kind      CheckKind `gorm:"not null" json:"kind"`    // availability/price
	Available *bool     `json:"available"`               // Observed availability (nil on failure)
	Price     *float64  `json:"price"`                   // Observed price (nil on failure)
	Currency  string    `json:"currency"`
	Outcome   Outcome   `gorm:"not null" json:"outcome"` // success/fetch_error/parse_error
	Detail    string    `json:"detail"`                  // Error detail for failed checks
	CheckedAt time.Time `json:"checked_at"`
}

// Notification represents a notification attempt record
type Notification struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ProductID  uint      `json:"product_id"`  // Associated product
	Transition string    `json:"transition"`  // Transition that triggered the alert
	Message    string    `json:"message"`     // Notification content
	Priority   string    `json:"priority"`    // normal/high
	Status     string    `json:"status"`      // Send status (success/failed)
	SentAt     time.Time `json:"sent_at"`
}

// Setting represents system configuration
type Setting struct {
	Key   string `gorm:"primarykey" json:"key"`
	Value string `json:"value"`
}
