package app

import "errors"

// Sentinel errors surfaced to callers. Messages are user-facing; the HTTP
// layer attaches stable taxonomy codes to each.
var (
	// ErrForbidden is returned when an authenticated caller holds the wrong
	// role or is not a party to the resource.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrNotVerified is returned for a legitimate BUSINESS caller whose
	// profile is not yet APPROVED. Deliberately distinct from ErrForbidden
	// so clients can route the business to the verification flow.
	ErrNotVerified = errors.New("access denied: business not verified")

	// ErrNotFound covers absent resources and, for ownership-scoped
	// lookups, resources that exist but belong to someone else.
	ErrNotFound = errors.New("not found")

	ErrInvalidIdentifier = errors.New("invalid business id format: it must be a 24-character code")
	ErrBusinessNotFound  = errors.New("business not found: please check the id")

	ErrLocked        = errors.New("this conversation is locked")
	ErrInvalidStatus = errors.New("invalid status value")

	ErrDuplicateSubmission     = errors.New("profile already submitted")
	ErrInvalidAction           = errors.New("invalid action value")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")

	ErrInvalidSecret = errors.New("invalid secret code")
	// ErrSecretRequired signals an admin-gated data route reached without a
	// verified secret code.
	ErrSecretRequired = errors.New("admin secret verification required")

	// Validation sentinels, one per operation input contract.
	ErrCallbackFieldsRequired  = errors.New("subject, email and display name are required")
	ErrComplaintFieldsRequired = errors.New("please provide title, description and business id")
	ErrReplyContentRequired    = errors.New("reply content is required")
	ErrProfileFieldsRequired   = errors.New("company name, industry and description are required")
	ErrDocumentRequired        = errors.New("document file is required")
	ErrSecretValueRequired     = errors.New("secret code is required")
)

// IsValidation reports whether err is an input-contract violation.
func IsValidation(err error) bool {
	for _, sentinel := range []error{
		ErrCallbackFieldsRequired,
		ErrComplaintFieldsRequired,
		ErrReplyContentRequired,
		ErrProfileFieldsRequired,
		ErrDocumentRequired,
		ErrSecretValueRequired,
		ErrRejectionReasonRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
