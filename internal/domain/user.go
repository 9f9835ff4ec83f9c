package domain

import (
	"strings"
	"time"
)

// Identity provider ids as reported in provider entries.
const (
	ProviderGoogle   = "google.com"
	ProviderFacebook = "facebook.com"
	ProviderPassword = "password"
)

// ProviderInfo is one sign-in method linked to an account.
type ProviderInfo struct {
	ProviderID  string `json:"providerId" dynamodbav:"provider_id" validate:"required"`
	UID         string `json:"uid" dynamodbav:"uid"`
	Email       string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty" dynamodbav:"display_name,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty" dynamodbav:"photo_url,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty" dynamodbav:"phone_number,omitempty"`
}

type User struct {
	UserID        string         `json:"id" dynamodbav:"user_id"`
	UID           string         `json:"uid" dynamodbav:"uid"`
	Email         string         `json:"email" dynamodbav:"email"`
	UserName      string         `json:"user_name" dynamodbav:"user_name"`
	EmailVerified bool           `json:"email_verified" dynamodbav:"email_verified"`
	ProviderData  []ProviderInfo `json:"provider_data" dynamodbav:"provider_data"`
	PhotoURL      *string        `json:"photo_url" dynamodbav:"photo_url"`
	BackgroundURL *string        `json:"background_url" dynamodbav:"background_url"`
	DateOfBirth   *string        `json:"date_of_birth" dynamodbav:"date_of_birth"`
	Gender        *string        `json:"gender" dynamodbav:"gender"`
	PhoneNumber   *string        `json:"phone_number" dynamodbav:"phone_number"`
	Location      *string        `json:"location" dynamodbav:"location"`
	CreatedAt     time.Time      `json:"-" dynamodbav:"created_at"`
	UpdatedAt     time.Time      `json:"-" dynamodbav:"updated_at"`
}

// HasProvider reports whether providerID is linked to the account.
func (u *User) HasProvider(providerID string) bool {
	for _, p := range u.ProviderData {
		if p.ProviderID == providerID {
			return true
		}
	}
	return false
}

// IdentityUser is an account as the identity provider reports it.
type IdentityUser struct {
	UID           string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
	Providers     []ProviderInfo
}

// FirstProvider returns the provider id the account was created with, or "".
func (u *IdentityUser) FirstProvider() string {
	if len(u.Providers) == 0 {
		return ""
	}
	return u.Providers[0].ProviderID
}

// GooglePhoto returns the photo of the first google.com entry, if any.
func (u *IdentityUser) GooglePhoto() string {
	for _, p := range u.Providers {
		if p.ProviderID == ProviderGoogle && p.PhotoURL != "" {
			return p.PhotoURL
		}
	}
	return ""
}

type UpdateInformationRequest struct {
	ID          string  `json:"id" validate:"required"`
	UserName    *string `json:"userName" validate:"omitempty,min=1,max=100"`
	DateOfBirth *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Gender      *string `json:"gender" validate:"omitempty,max=32"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=32"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
}

// NormalizeEmail trims and lowercases an address so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Attribute names accepted by user store updates.
const (
	FieldEmailVerified = "email_verified"
	FieldProviderData  = "provider_data"
	FieldPhotoURL      = "photo_url"
	FieldBackgroundURL = "background_url"
	FieldUserName      = "user_name"
	FieldDateOfBirth   = "date_of_birth"
	FieldGender        = "gender"
	FieldPhoneNumber   = "phone_number"
	FieldLocation      = "location"
)
