package store

import "fmt"

// Sequence namespaces used by the application.
const (
	SeqUsers      = "user_id"
	SeqComplaints = "complaint_id"
)

// FormatSeqID renders a sequence value as a human-readable id, e.g.
// CMP-0007. The value is zero-padded to four digits but not truncated.
func FormatSeqID(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// NextSeqID mints the next id in a namespace with the given prefix.
func NextSeqID(s Store, name, prefix string) (string, error) {
	seq, err := s.NextSequence(name)
	if err != nil {
		return "", fmt.Errorf("next sequence %s: %w", name, err)
	}
	return FormatSeqID(prefix, seq), nil
}
