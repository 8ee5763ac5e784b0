package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/returnsdesk/internal/shared"
)

// OperatorID is stored on the session once the operator password matched.
const OperatorID = "operator"

// Service checks the shared operator password.
type Service struct {
	hash []byte
}

// NewService constructs a Service from a bcrypt hash. An empty hash disables
// the login gate.
func NewService(passwordHash string) *Service {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash == "" {
		return &Service{}
	}
	return &Service{hash: []byte(passwordHash)}
}

// Enabled reports whether operators must sign in.
func (s *Service) Enabled() bool {
	return s != nil && len(s.hash) > 0
}

// Authenticate validates the operator password.
func (s *Service) Authenticate(password string) error {
	if !s.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}
