package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resolvd/internal/store"
	"resolvd/internal/util"
	"resolvd/pkg/domain"
)

// CreateComplaint files a new complaint by the consumer against the business
// identified by businessID. The target must exist and hold the BUSINESS role;
// its verification state is not checked here.
func (a *App) CreateComplaint(consumer domain.User, title, description, businessID string) (domain.Complaint, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	businessID = strings.TrimSpace(businessID)
	if title == "" || description == "" || businessID == "" {
		return domain.Complaint{}, ErrComplaintFieldsRequired
	}
	if !util.IsID(businessID) {
		return domain.Complaint{}, ErrInvalidIdentifier
	}

	business, found, err := a.store.GetUserByID(businessID)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("lookup business: %w", err)
	}
	if !found || business.Role != domain.RoleBusiness {
		return domain.Complaint{}, ErrBusinessNotFound
	}

	seqID, err := store.NextSeqID(a.store, store.SeqComplaints, "CMP")
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("allocate complaint id: %w", err)
	}
	now := time.Now().UTC()
	complaint := domain.Complaint{
		ID:          util.NewID(),
		SeqID:       seqID,
		Title:       title,
		Description: description,
		Status:      domain.ComplaintPending,
		ConsumerID:  consumer.ID,
		BusinessID:  business.ID,
		Thread:      []domain.Reply{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveComplaint(complaint); err != nil {
		return domain.Complaint{}, fmt.Errorf("save complaint: %w", err)
	}
	return complaint, nil
}

// ListMyComplaints returns the consumer's own complaints, newest first, with
// each business reference enriched with its company name where known.
func (a *App) ListMyComplaints(consumer domain.User) ([]domain.Complaint, error) {
	complaints, err := a.store.ListComplaintsByConsumer(consumer.ID)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	for i := range complaints {
		if profile, found, err := a.store.GetProfileByUser(complaints[i].BusinessID); err == nil && found {
			complaints[i].CompanyName = profile.CompanyName
		}
	}
	return complaints, nil
}

// ListTaggedComplaints returns complaints filed against the business user.
// Only verified businesses may read their queue.
func (a *App) ListTaggedComplaints(business domain.User) ([]domain.Complaint, error) {
	profile, found, err := a.store.GetProfileByUser(business.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}
	if !found || profile.Status != domain.VerificationApproved {
		return nil, ErrNotVerified
	}
	complaints, err := a.store.ListComplaintsByBusiness(business.ID)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	for i := range complaints {
		if consumer, found, err := a.store.GetUserByID(complaints[i].ConsumerID); err == nil && found {
			complaints[i].ConsumerName = consumer.DisplayName
		}
	}
	return complaints, nil
}

// GetComplaint returns a single complaint with its full thread. Visible to
// the two parties and to admins only; everyone else sees not-found semantics
// via ErrForbidden.
func (a *App) GetComplaint(viewer domain.User, complaintID string) (domain.Complaint, error) {
	complaint, found, err := a.store.GetComplaintByID(complaintID)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("lookup complaint: %w", err)
	}
	if !found {
		return domain.Complaint{}, ErrNotFound
	}
	if !a.isParty(viewer, complaint) && viewer.Role != domain.RoleAdmin {
		return domain.Complaint{}, ErrForbidden
	}
	if consumer, found, err := a.store.GetUserByID(complaint.ConsumerID); err == nil && found {
		complaint.ConsumerName = consumer.DisplayName
	}
	if profile, found, err := a.store.GetProfileByUser(complaint.BusinessID); err == nil && found {
		complaint.CompanyName = profile.CompanyName
	}
	return complaint, nil
}

// Reply appends a thread entry to the complaint. Only the two parties may
// write. The first business reply moves a PENDING complaint to OPEN; consumer
// replies never advance status. Terminal complaints reject all replies.
func (a *App) Reply(author domain.User, complaintID, content string) (domain.Complaint, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Complaint{}, ErrReplyContentRequired
	}

	complaint, found, err := a.store.GetComplaintByID(complaintID)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("lookup complaint: %w", err)
	}
	if !found {
		return domain.Complaint{}, ErrNotFound
	}
	if !a.isParty(author, complaint) {
		return domain.Complaint{}, ErrForbidden
	}
	if complaint.Status.Terminal() {
		return domain.Complaint{}, ErrLocked
	}

	reply := domain.Reply{
		ID:          uuid.NewString(),
		ComplaintID: complaint.ID,
		UserID:      author.ID,
		UserName:    author.DisplayName,
		Role:        author.Role,
		Content:     content,
		Timestamp:   time.Now().UTC(),
	}
	if err := a.store.AppendReply(complaint.ID, reply); err != nil {
		return domain.Complaint{}, fmt.Errorf("append reply: %w", err)
	}
	if complaint.Status == domain.ComplaintPending && author.ID == complaint.BusinessID {
		if err := a.store.SetComplaintStatus(complaint.ID, domain.ComplaintOpen); err != nil {
			return domain.Complaint{}, fmt.Errorf("open complaint: %w", err)
		}
	}

	updated, _, err := a.store.GetComplaintByID(complaint.ID)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("reload complaint: %w", err)
	}
	return updated, nil
}

// SetStatus changes the complaint status on behalf of the owning business.
// A complaint owned by someone else is reported as not found rather than
// forbidden, so callers cannot probe for other businesses' complaint ids.
func (a *App) SetStatus(business domain.User, complaintID, status string) (domain.Complaint, error) {
	next := domain.ComplaintStatus(strings.ToUpper(strings.TrimSpace(status)))
	switch next {
	case domain.ComplaintPending, domain.ComplaintOpen, domain.ComplaintResolved, domain.ComplaintClosed:
	default:
		return domain.Complaint{}, ErrInvalidStatus
	}

	complaint, found, err := a.store.GetComplaintByID(complaintID)
	if err != nil {
		return domain.Complaint{}, fmt.Errorf("lookup complaint: %w", err)
	}
	if !found || complaint.BusinessID != business.ID {
		return domain.Complaint{}, ErrNotFound
	}
	if complaint.Status.Terminal() {
		return domain.Complaint{}, ErrLocked
	}

	if err := a.store.SetComplaintStatus(complaint.ID, next); err != nil {
		return domain.Complaint{}, fmt.Errorf("set status: %w", err)
	}
	complaint.Status = next
	complaint.UpdatedAt = time.Now().UTC()
	return complaint, nil
}

func (a *App) isParty(user domain.User, complaint domain.Complaint) bool {
	return user.ID == complaint.ConsumerID || user.ID == complaint.BusinessID
}
