package app

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"resolvd/pkg/domain"
)

// Verification decision actions.
const (
	ActionApprove = "APPROVED"
	ActionReject  = "REJECTED"
)

// VerifySecret checks the submitted secret code against the configured one
// and, on match, marks the admin's record so the flag survives re-login.
func (a *App) VerifySecret(admin domain.User, code string) (domain.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.User{}, ErrSecretValueRequired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(a.adminSecret)) != 1 {
		return domain.User{}, ErrInvalidSecret
	}
	if !admin.AdminSecretVerified {
		admin.AdminSecretVerified = true
		admin.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveUser(admin); err != nil {
			return domain.User{}, fmt.Errorf("persist secret flag: %w", err)
		}
	}
	return admin, nil
}

// ListPendingVerifications returns all profiles awaiting a decision, each
// enriched with the owner's identity for review.
func (a *App) ListPendingVerifications() ([]PendingVerification, error) {
	profiles, err := a.store.ListProfilesByStatus(domain.VerificationPending)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]PendingVerification, 0, len(profiles))
	for _, p := range profiles {
		pv := PendingVerification{Profile: p}
		if user, found, err := a.store.GetUserByID(p.UserID); err == nil && found {
			pv.Email = user.Email
			pv.DisplayName = user.DisplayName
		}
		out = append(out, pv)
	}
	return out, nil
}

// PendingVerification pairs a profile with its owner's identity.
type PendingVerification struct {
	Profile     domain.BusinessProfile `json:"profile"`
	Email       string                 `json:"email"`
	DisplayName string                 `json:"displayName"`
}

// DecideVerification approves or rejects a pending profile. Approval also
// flips the owning user's verified flag; rejection requires a reason and is
// final, there is no resubmission path. Deciding an already-decided profile
// with the same action is idempotent.
func (a *App) DecideVerification(profileID, action, reason string) (domain.BusinessProfile, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action != ActionApprove && action != ActionReject {
		return domain.BusinessProfile{}, ErrInvalidAction
	}

	profile, found, err := a.store.GetProfileByID(profileID)
	if err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !found {
		return domain.BusinessProfile{}, ErrNotFound
	}

	switch action {
	case ActionApprove:
		profile.Status = domain.VerificationApproved
		profile.RejectionReason = ""
	case ActionReject:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return domain.BusinessProfile{}, ErrRejectionReasonRequired
		}
		profile.Status = domain.VerificationRejected
		profile.RejectionReason = reason
	}
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("save profile: %w", err)
	}

	user, found, err := a.store.GetUserByID(profile.UserID)
	if err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("lookup owner: %w", err)
	}
	if found {
		verified := action == ActionApprove
		if user.Verified != verified {
			user.Verified = verified
			user.UpdatedAt = time.Now().UTC()
			if err := a.store.SaveUser(user); err != nil {
				return domain.BusinessProfile{}, fmt.Errorf("update owner: %w", err)
			}
		}
	}
	return profile, nil
}

// Stats gathers the admin dashboard counts. The five counts are independent
// queries and run concurrently.
func (a *App) Stats() (domain.Stats, error) {
	var stats domain.Stats
	var g errgroup.Group
	g.Go(func() (err error) {
		stats.Consumers, err = a.store.CountUsersByRole(domain.RoleConsumer)
		return err
	})
	g.Go(func() (err error) {
		stats.Businesses, err = a.store.CountUsersByRole(domain.RoleBusiness)
		return err
	})
	g.Go(func() (err error) {
		stats.Approved, err = a.store.CountProfilesByStatus(domain.VerificationApproved)
		return err
	})
	g.Go(func() (err error) {
		stats.Pending, err = a.store.CountProfilesByStatus(domain.VerificationPending)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalComplaints, err = a.store.ComplaintCount()
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, fmt.Errorf("gather stats: %w", err)
	}
	return stats, nil
}
