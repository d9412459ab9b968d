package models

import "time"

// SettingsID is the fixed document id of the settings singleton. A single
// well-known key replaces the source's unique index over an empty filter.
const SettingsID = "global"

// Settings is the global shipping/discount configuration. At most one
// document exists, keyed by SettingsID.
type Settings struct {
	ID                    string    `bson:"_id" json:"id"`
	DefaultShippingMethod string    `bson:"defaultShippingMethod" json:"defaultShippingMethod"`
	DefaultShippingCost   float64   `bson:"defaultShippingCost" json:"defaultShippingCost"`
	FreeShippingThreshold float64   `bson:"freeShippingThreshold" json:"freeShippingThreshold"`
	DiscountPercent       float64   `bson:"discountPercent" json:"discountPercent"`
	Currency              string    `bson:"currency" json:"currency"`
	UpdatedAt             time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DefaultSettings returns the settings document created when none exists.
func DefaultSettings(now time.Time) *Settings {
	return &Settings{
		ID:                    SettingsID,
		DefaultShippingMethod: "standard",
		DefaultShippingCost:   0,
		Currency:              "USD",
		UpdatedAt:             now,
	}
}
