package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
)

// Validation rejections happen before any store access, so these run against
// a nil database.
func TestRegister_Validation(t *testing.T) {
	cfg := &config.Config{AllowedEmailDomains: []string{"students.iiit.ac.in", "research.iiit.ac.in"}}
	svc := NewUserService(nil, cfg)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "alice@students.iiit.ac.in", "hunter2hunter2"},
		{"short password", "alice", "alice@students.iiit.ac.in", "short"},
		{"no at sign", "alice", "alice.students.iiit.ac.in", "hunter2hunter2"},
		{"empty domain", "alice", "alice@", "hunter2hunter2"},
		{"off-campus domain", "alice", "alice@gmail.com", "hunter2hunter2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.email, tc.password)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestRegister_DomainCheckCaseInsensitive(t *testing.T) {
	cfg := &config.Config{AllowedEmailDomains: []string{"students.iiit.ac.in"}}
	svc := NewUserService(nil, cfg)

	// Email is lowercased before the domain comparison.
	_, err := svc.Register(context.Background(), "bob", "BOB@GMAIL.COM", "hunter2hunter2")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
