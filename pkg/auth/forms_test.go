package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignUpFormValidate(t *testing.T) {
	valid := SignUpForm{
		Name: "Ada", Email: "ada@example.com",
		Password: "correct-horse", ConfirmPassword: "correct-horse",
	}

	tests := []struct {
		name    string
		mutate  func(f *SignUpForm)
		field   string
		message string
	}{
		{"blank name", func(f *SignUpForm) { f.Name = "  " }, "name", "Name is required"},
		{"blank email", func(f *SignUpForm) { f.Email = "" }, "email", "Email is required"},
		{"bad email", func(f *SignUpForm) { f.Email = "ada-at-example" }, "email", "Email address is not valid"},
		{"short password", func(f *SignUpForm) { f.Password, f.ConfirmPassword = "short", "short" }, "password", "Password must be at least 8 characters"},
		{"mismatch", func(f *SignUpForm) { f.ConfirmPassword = "correct-house" }, "confirm_password", "Passwords do not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate()
			verr, ok := err.(*ValidationError)
			if assert.True(t, ok, "expected a ValidationError, got %v", err) {
				assert.Equal(t, tt.field, verr.Field)
				assert.Equal(t, tt.message, verr.Message)
				assert.Equal(t, CodeValidation, verr.Code())
			}
		})
	}

	assert.NoError(t, valid.Validate())
}

func TestCredentialsValidate(t *testing.T) {
	assert.NoError(t, Credentials{Email: "ada@example.com", Password: "x"}.Validate())
	assert.Error(t, Credentials{Email: "ada@example.com"}.Validate())
	assert.Error(t, Credentials{Password: "x"}.Validate())
}
