package store

import "resolvd/pkg/domain"

// Store defines persistence operations for users, business profiles,
// complaints and sequence counters.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserBySubject(subjectID string) (domain.User, bool, error)
	CountUsersByRole(role domain.UserRole) (int, error)

	// business profiles
	SaveProfile(domain.BusinessProfile) error
	GetProfileByID(id string) (domain.BusinessProfile, bool, error)
	GetProfileByUser(userID string) (domain.BusinessProfile, bool, error)
	ListProfilesByStatus(status domain.VerificationStatus) ([]domain.BusinessProfile, error)
	CountProfilesByStatus(status domain.VerificationStatus) (int, error)

	// complaints
	SaveComplaint(domain.Complaint) error
	GetComplaintByID(id string) (domain.Complaint, bool, error)
	ListComplaintsByConsumer(consumerID string) ([]domain.Complaint, error)
	ListComplaintsByBusiness(businessID string) ([]domain.Complaint, error)
	AppendReply(complaintID string, reply domain.Reply) error
	SetComplaintStatus(complaintID string, status domain.ComplaintStatus) error
	ComplaintCount() (int, error)

	// sequences
	// NextSequence increments the named counter in one indivisible step,
	// creating it at zero when absent, and returns the new value.
	NextSequence(name string) (int64, error)
}

// SessionStore persists server-side session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
