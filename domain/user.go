package domain

import "time"

// User is a registered account. The password hash lives only in storage and
// is never serialized toward clients.
type User struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Credentials is the signup/login request payload.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks login fields; signup additionally requires a name.
func (c Credentials) Validate(signup bool) error {
	if c.Email == "" {
		return ValidationError{Field: "email", Reason: "required"}
	}
	if c.Password == "" {
		return ValidationError{Field: "password", Reason: "required"}
	}
	if signup && c.Name == "" {
		return ValidationError{Field: "name", Reason: "required"}
	}
	return nil
}

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	Name  string
	Email string
}
