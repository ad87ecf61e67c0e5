package domain

import "time"

type UserRole string

const (
	RoleConsumer UserRole = "CONSUMER"
	RoleBusiness UserRole = "BUSINESS"
	RoleAdmin    UserRole = "ADMIN"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

type ComplaintStatus string

const (
	ComplaintPending  ComplaintStatus = "PENDING"
	ComplaintOpen     ComplaintStatus = "OPEN"
	ComplaintResolved ComplaintStatus = "RESOLVED"
	ComplaintClosed   ComplaintStatus = "CLOSED"
)

// Terminal reports whether the complaint accepts no further replies or
// status changes.
func (s ComplaintStatus) Terminal() bool {
	return s == ComplaintResolved || s == ComplaintClosed
}

// User is an identity record created on first external login. Role is
// assigned once at creation and never changed afterwards.
type User struct {
	ID          string   `json:"id"`
	SubjectID   string   `json:"-"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Role        UserRole `json:"role"`
	SeqID       string   `json:"seqId"`
	// Verified carries business semantics: set when an admin approves the
	// business profile. Meaningless for other roles.
	Verified bool `json:"verified"`
	// AdminSecretVerified carries admin semantics: set after the user
	// submits the correct administrative secret code.
	AdminSecretVerified bool      `json:"adminSecretVerified"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// BusinessProfile extends a BUSINESS-role user one-to-one. Created once by
// document submission; status mutated only by an administrator.
type BusinessProfile struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	CompanyName     string             `json:"companyName"`
	Industry        string             `json:"industry"`
	Description     string             `json:"description"`
	DocumentURL     string             `json:"documentUrl"`
	Status          VerificationStatus `json:"status"`
	RejectionReason string             `json:"rejectionReason,omitempty"`
	SubmittedAt     time.Time          `json:"submittedAt"`
}

// Reply is a thread entry owned by its complaint. UserName and Role are
// snapshots taken at write time; later profile changes do not alter them.
type Reply struct {
	ID          string    `json:"id"`
	ComplaintID string    `json:"-"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Role        UserRole  `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// Complaint is the central entity. BusinessID references the business's
// User record, not its profile.
type Complaint struct {
	ID          string          `json:"id"`
	SeqID       string          `json:"complaintId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      ComplaintStatus `json:"status"`
	ConsumerID  string          `json:"consumerId"`
	BusinessID  string          `json:"businessId"`
	Thread      []Reply         `json:"thread"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	// Display-only enrichments, populated by read operations, never stored.
	ConsumerName string `json:"consumerName,omitempty"`
	CompanyName  string `json:"companyName,omitempty"`
}

// VerifiedBusiness is the public projection of an approved profile. No
// sensitive fields.
type VerifiedBusiness struct {
	UserID      string `json:"userId"`
	CompanyName string `json:"companyName"`
	Industry    string `json:"industry"`
}

// Stats holds the admin dashboard counts.
type Stats struct {
	Consumers       int `json:"consumers"`
	Businesses      int `json:"businesses"`
	Approved        int `json:"approved"`
	Pending         int `json:"pending"`
	TotalComplaints int `json:"totalComplaints"`
}
