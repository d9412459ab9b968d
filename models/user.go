package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Address struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type       string             `bson:"type" json:"type"` // shipping/billing
	Street     string             `bson:"street" json:"street"`
	City       string             `bson:"city" json:"city"`
	State      string             `bson:"state" json:"state"`
	Country    string             `bson:"country" json:"country"`
	PostalCode string             `bson:"postalCode" json:"postalCode"`
	IsDefault  bool               `bson:"isDefault" json:"isDefault"`
}

// OTP holds the pending email verification code for a user.
type OTP struct {
	Code      string    `bson:"code" json:"-"`
	ExpiresAt time.Time `bson:"expiresAt" json:"-"`
}

// Expired reports whether the code is past its expiry at the given time.
func (o OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	Password      string             `bson:"password,omitempty" json:"-"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	IsAdmin       bool               `bson:"isAdmin" json:"isAdmin"`
	EmailVerified bool               `bson:"emailVerified" json:"emailVerified"`
	OTP           *OTP               `bson:"otp,omitempty" json:"-"`
	Addresses     []Address          `bson:"addresses" json:"addresses"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
