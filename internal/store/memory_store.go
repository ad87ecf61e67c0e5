package store

import (
	"sort"
	"sync"

	"resolvd/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors GormStore semantics
// and backs the test suites.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	subjects   map[string]string // subject id -> user id
	profiles   map[string]domain.BusinessProfile
	byOwner    map[string]string // user id -> profile id
	complaints map[string]domain.Complaint
	threads    map[string][]domain.Reply
	counters   map[string]int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		subjects:   make(map[string]string),
		profiles:   make(map[string]domain.BusinessProfile),
		byOwner:    make(map[string]string),
		complaints: make(map[string]domain.Complaint),
		threads:    make(map[string][]domain.Reply),
		counters:   make(map[string]int64),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.subjects[u.SubjectID] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserBySubject(subjectID string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.subjects[subjectID]
	if !ok {
		return domain.User{}, false, nil
	}
	u, exists := m.users[id]
	return u, exists, nil
}

func (m *MemoryStore) CountUsersByRole(role domain.UserRole) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) SaveProfile(p domain.BusinessProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	m.byOwner[p.UserID] = p.ID
	return nil
}

func (m *MemoryStore) GetProfileByID(id string) (domain.BusinessProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok, nil
}

func (m *MemoryStore) GetProfileByUser(userID string) (domain.BusinessProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOwner[userID]
	if !ok {
		return domain.BusinessProfile{}, false, nil
	}
	p, exists := m.profiles[id]
	return p, exists, nil
}

func (m *MemoryStore) ListProfilesByStatus(status domain.VerificationStatus) ([]domain.BusinessProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.BusinessProfile, 0)
	for _, p := range m.profiles {
		if p.Status == status {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].SubmittedAt.After(res[j].SubmittedAt)
	})
	return res, nil
}

func (m *MemoryStore) CountProfilesByStatus(status domain.VerificationStatus) (int, error) {
	profiles, _ := m.ListProfilesByStatus(status)
	return len(profiles), nil
}

func (m *MemoryStore) SaveComplaint(c domain.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Thread = nil // thread lives in m.threads, like the replies table
	c.ConsumerName = ""
	c.CompanyName = ""
	m.complaints[c.ID] = c
	return nil
}

func (m *MemoryStore) GetComplaintByID(id string) (domain.Complaint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.complaints[id]
	if !ok {
		return domain.Complaint{}, false, nil
	}
	c.Thread = append([]domain.Reply(nil), m.threads[id]...)
	return c, true, nil
}

func (m *MemoryStore) ListComplaintsByConsumer(consumerID string) ([]domain.Complaint, error) {
	return m.listComplaints(func(c domain.Complaint) bool {
		return c.ConsumerID == consumerID
	}), nil
}

func (m *MemoryStore) ListComplaintsByBusiness(businessID string) ([]domain.Complaint, error) {
	return m.listComplaints(func(c domain.Complaint) bool {
		return c.BusinessID == businessID
	}), nil
}

func (m *MemoryStore) listComplaints(match func(domain.Complaint) bool) []domain.Complaint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Complaint, 0)
	for id, c := range m.complaints {
		if match(c) {
			c.Thread = append([]domain.Reply(nil), m.threads[id]...)
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

func (m *MemoryStore) AppendReply(complaintID string, reply domain.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply.ComplaintID = complaintID
	m.threads[complaintID] = append(m.threads[complaintID], reply)
	return nil
}

func (m *MemoryStore) SetComplaintStatus(complaintID string, status domain.ComplaintStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[complaintID]
	if !ok {
		return nil
	}
	c.Status = status
	m.complaints[complaintID] = c
	return nil
}

func (m *MemoryStore) ComplaintCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.complaints), nil
}

// NextSequence increments the named counter under the store lock.
func (m *MemoryStore) NextSequence(name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}
