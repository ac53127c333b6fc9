package user

import "time"

// User represents a registered storefront customer.
//
// PasswordHash carries the argon2id-encoded credential and must never leave
// this package in a serialized form; Public() is the only outward view.
type User struct {
	ID            string
	Name          string
	Email         string
	PhoneNumber   string
	PasswordHash  string
	StoreID       string
	EmailVerified bool
	CreatedAt     time.Time
}

// Public is the externally visible projection of a user.
type Public struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	StoreID       string    `json:"store_id"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public strips credential material from the user record.
func (u User) Public() Public {
	return Public{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		PhoneNumber:   u.PhoneNumber,
		StoreID:       u.StoreID,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
