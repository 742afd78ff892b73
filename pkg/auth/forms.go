package auth

import (
	"net/mail"
	"strings"
)

const minPasswordLength = 8

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}

// SignUpForm is what the sign-up prompt collects. Software and Hardware are
// the learner's profile attributes.
type SignUpForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Software        string
	Hardware        string
}

func (f SignUpForm) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if err := validateEmail(f.Email); err != nil {
		return err
	}
	if len(f.Password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 8 characters"}
	}
	if f.Password != f.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match"}
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Message: "Email address is not valid"}
	}
	return nil
}

type signUpWire struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Software string `json:"software,omitempty"`
	Hardware string `json:"hardware,omitempty"`
}

func (f SignUpForm) wire() signUpWire {
	return signUpWire{
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
		Software: strings.TrimSpace(f.Software),
		Hardware: strings.TrimSpace(f.Hardware),
	}
}
