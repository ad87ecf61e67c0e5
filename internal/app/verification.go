package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"resolvd/internal/util"
	"resolvd/pkg/domain"
)

// Document is an uploaded verification file ready to be persisted.
type Document struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SubmitVerification records the business's one-shot verification request.
// The document is stored first; only a successful upload produces a PENDING
// profile. A business with any existing profile, whatever its status, cannot
// submit again.
func (a *App) SubmitVerification(ctx context.Context, business domain.User, companyName, industry, description string, doc Document) (domain.BusinessProfile, error) {
	companyName = strings.TrimSpace(companyName)
	industry = strings.TrimSpace(industry)
	description = strings.TrimSpace(description)
	if companyName == "" || industry == "" || description == "" {
		return domain.BusinessProfile{}, ErrProfileFieldsRequired
	}
	if doc.Body == nil || doc.Filename == "" {
		return domain.BusinessProfile{}, ErrDocumentRequired
	}

	if _, found, err := a.store.GetProfileByUser(business.ID); err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("lookup profile: %w", err)
	} else if found {
		return domain.BusinessProfile{}, ErrDuplicateSubmission
	}

	key := fmt.Sprintf("documents/%s/%d%s", business.ID, time.Now().UnixNano(), path.Ext(doc.Filename))
	url, err := a.documents.Put(ctx, key, doc.Body, doc.Size, doc.ContentType)
	if err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("store document: %w", err)
	}

	profile := domain.BusinessProfile{
		ID:          util.NewID(),
		UserID:      business.ID,
		CompanyName: companyName,
		Industry:    industry,
		Description: description,
		DocumentURL: url,
		Status:      domain.VerificationPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// MyProfile returns the business's own profile so it can track verification
// progress and any rejection reason.
func (a *App) MyProfile(business domain.User) (domain.BusinessProfile, error) {
	profile, found, err := a.store.GetProfileByUser(business.ID)
	if err != nil {
		return domain.BusinessProfile{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !found {
		return domain.BusinessProfile{}, ErrNotFound
	}
	return profile, nil
}

// ListVerifiedBusinesses returns the public directory of approved businesses.
// Only non-sensitive fields are projected.
func (a *App) ListVerifiedBusinesses() ([]domain.VerifiedBusiness, error) {
	profiles, err := a.store.ListProfilesByStatus(domain.VerificationApproved)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]domain.VerifiedBusiness, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, domain.VerifiedBusiness{
			UserID:      p.UserID,
			CompanyName: p.CompanyName,
			Industry:    p.Industry,
		})
	}
	return out, nil
}
