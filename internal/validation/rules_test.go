package validation

import (
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/mailforge/mailforge/internal/errors"
)

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(validation.NewError("code", "message"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "message")
}

func TestPasswordStrength(t *testing.T) {
	rule := PasswordStrength{
		MinLength:     12,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
	}

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Str0ngPassword", false},
		{"too short", "Sh0rt", true},
		{"missing uppercase", "weakpassword1", true},
		{"missing lowercase", "WEAKPASSWORD1", true},
		{"missing number", "WeakPassword", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Validate(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("non-string value", func(t *testing.T) {
		assert.Error(t, rule.Validate(12345))
	})

	t.Run("special character requirement", func(t *testing.T) {
		strict := PasswordStrength{MinLength: 8, RequireSpecial: true}
		assert.Error(t, strict.Validate("NoSpecial1"))
		assert.NoError(t, strict.Validate("Special1!"))
	})
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"postmaster@example.com", false},
		{"user.name+tag@mail.example.org", false},
		{"not-an-email", true},
		{"@example.com", true},
		{"user@", true},
		{"user@localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := validation.Validate(tt.value, Email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHostname(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"mail01", false},
		{"mail01.example.com", false},
		{"mx-1.internal.example.org", false},
		{"-leading-dash.example.com", true},
		{"trailing-dash-.example.com", true},
		{"spaces in name", true},
		{"host_with_underscores", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := validation.Validate(tt.value, Hostname)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAbsolutePath(t *testing.T) {
	assert.NoError(t, validation.Validate("/etc/postfix/main.cf", AbsolutePath))
	assert.Error(t, validation.Validate("relative/path", AbsolutePath))
	assert.Error(t, validation.Validate("/etc/../etc/passwd", AbsolutePath))
}

func TestShellSafe(t *testing.T) {
	assert.NoError(t, validation.Validate("postfix", ShellSafe))
	assert.NoError(t, validation.Validate("dovecot-core", ShellSafe))
	assert.Error(t, validation.Validate("pkg; rm -rf /", ShellSafe))
	assert.Error(t, validation.Validate("$(whoami)", ShellSafe))
	assert.Error(t, validation.Validate("a|b", ShellSafe))
	assert.Error(t, validation.Validate("a`b`", ShellSafe))
}

func TestNoWhitespace(t *testing.T) {
	assert.NoError(t, validation.Validate("value", NoWhitespace))
	assert.Error(t, validation.Validate(" value", NoWhitespace))
	assert.Error(t, validation.Validate("value ", NoWhitespace))
}

func TestNotBlank(t *testing.T) {
	assert.NoError(t, validation.Validate("value", NotBlank))
	assert.Error(t, validation.Validate("   ", NotBlank))
}
