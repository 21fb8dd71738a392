package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/email"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
)

// ErrUserNotFound reports an approval decision against a missing user.
var ErrUserNotFound = errors.New("user not found")

// AdminService handles the agronomist approval workflow. The email
// service may be nil when no provider is configured; approval then still
// commits and only the courtesy email is skipped.
type AdminService struct {
	users  user.Repository
	emails email.Service
	logger *logging.ChanneledLogger
}

// NewAdminService creates the admin service.
func NewAdminService(users user.Repository, emails email.Service, logger *logging.ChanneledLogger) *AdminService {
	return &AdminService{users: users, emails: emails, logger: logger}
}

// PendingAgronomists lists agronomist accounts awaiting approval.
func (s *AdminService) PendingAgronomists() ([]user.Identity, error) {
	pending, err := s.users.FindPending(user.RoleAgronomist)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending agronomists: %w", err)
	}
	return pending, nil
}

// Approve clears a pending account. The approval email is best-effort:
// a send failure is logged and never rolls back the approval.
func (s *AdminService) Approve(userID string) error {
	account, err := s.users.FindByID(userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if account == nil {
		return ErrUserNotFound
	}

	if err := s.users.SetApproval(userID, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to approve user: %w", err)
	}

	s.logger.Admin().Info("User approved", "userId", userID, "role", string(account.Role))

	if s.emails != nil {
		if err := s.emails.SendAccountApprovedEmail(account.Email, account.FirstName); err != nil {
			s.logger.Admin().Warn("Approval email failed", "userId", userID, "error", err.Error())
		}
	}
	return nil
}

// Revoke withdraws approval from an account. Live realtime sessions are
// not torn down; the approval gate applies on the next connect.
func (s *AdminService) Revoke(userID string) error {
	if err := s.users.SetApproval(userID, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to revoke approval: %w", err)
	}

	s.logger.Admin().Info("User approval revoked", "userId", userID)
	return nil
}
