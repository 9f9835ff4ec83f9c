package domain

import "time"

// VerificationRecord holds the single outstanding code for an email.
// PK: email. A new request overwrites Code and UpdatedAt.
type VerificationRecord struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"-" dynamodbav:"code"`
	CreatedAt time.Time `json:"-" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"-" dynamodbav:"updated_at"`
}

// Expired reports whether the code was issued at least window before now.
func (r *VerificationRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.UpdatedAt) >= window
}
