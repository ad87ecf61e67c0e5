package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resolvd/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&BusinessProfileModel{},
		&ComplaintModel{},
		&ReplyModel{},
		&CounterModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser creates or updates a user record.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "display_name", "verified", "admin_secret_verified", "updated_at",
		}),
	}).Create(&model).Error
}

// GetUserByID returns a user by internal id.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserBySubject looks up a user by external identity key.
func (s *GormStore) GetUserBySubject(subjectID string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "subject_id = ?", subjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CountUsersByRole returns the number of users holding a role.
func (s *GormStore) CountUsersByRole(role domain.UserRole) (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveProfile creates or updates a business profile.
func (s *GormStore) SaveProfile(p domain.BusinessProfile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "rejection_reason",
		}),
	}).Create(&model).Error
}

// GetProfileByID retrieves a profile by id.
func (s *GormStore) GetProfileByID(id string) (domain.BusinessProfile, bool, error) {
	var model BusinessProfileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BusinessProfile{}, false, nil
		}
		return domain.BusinessProfile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// GetProfileByUser retrieves the single profile owned by a user.
func (s *GormStore) GetProfileByUser(userID string) (domain.BusinessProfile, bool, error) {
	var model BusinessProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BusinessProfile{}, false, nil
		}
		return domain.BusinessProfile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// ListProfilesByStatus returns profiles in a status, newest first.
func (s *GormStore) ListProfilesByStatus(status domain.VerificationStatus) ([]domain.BusinessProfile, error) {
	var models []BusinessProfileModel
	if err := s.db.
		Where("status = ?", string(status)).
		Order("submitted_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BusinessProfile, 0, len(models))
	for _, m := range models {
		res = append(res, profileFromModel(m))
	}
	return res, nil
}

// CountProfilesByStatus returns the number of profiles in a status.
func (s *GormStore) CountProfilesByStatus(status domain.VerificationStatus) (int, error) {
	var count int64
	if err := s.db.Model(&BusinessProfileModel{}).
		Where("status = ?", string(status)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveComplaint creates or updates a complaint header. The thread is
// persisted separately via AppendReply.
func (s *GormStore) SaveComplaint(c domain.Complaint) error {
	model := complaintToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "updated_at",
		}),
	}).Create(&model).Error
}

// GetComplaintByID retrieves a complaint with its thread, oldest reply first.
func (s *GormStore) GetComplaintByID(id string) (domain.Complaint, bool, error) {
	var model ComplaintModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Complaint{}, false, nil
		}
		return domain.Complaint{}, false, err
	}
	complaint := complaintFromModel(model)
	thread, err := s.loadThread(id)
	if err != nil {
		return domain.Complaint{}, false, err
	}
	complaint.Thread = thread
	return complaint, true, nil
}

// ListComplaintsByConsumer returns a consumer's complaints, newest first.
func (s *GormStore) ListComplaintsByConsumer(consumerID string) ([]domain.Complaint, error) {
	return s.listComplaints("consumer_id = ?", consumerID)
}

// ListComplaintsByBusiness returns complaints tagged to a business, newest first.
func (s *GormStore) ListComplaintsByBusiness(businessID string) ([]domain.Complaint, error) {
	return s.listComplaints("business_id = ?", businessID)
}

func (s *GormStore) listComplaints(cond string, arg any) ([]domain.Complaint, error) {
	var models []ComplaintModel
	if err := s.db.
		Where(cond, arg).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Complaint, 0, len(models))
	for _, m := range models {
		complaint := complaintFromModel(m)
		thread, err := s.loadThread(m.ID)
		if err != nil {
			return nil, err
		}
		complaint.Thread = thread
		res = append(res, complaint)
	}
	return res, nil
}

func (s *GormStore) loadThread(complaintID string) ([]domain.Reply, error) {
	var models []ReplyModel
	if err := s.db.
		Where("complaint_id = ?", complaintID).
		Order("timestamp ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	thread := make([]domain.Reply, 0, len(models))
	for _, m := range models {
		thread = append(thread, replyFromModel(m))
	}
	return thread, nil
}

// AppendReply inserts a thread entry. Inserts from concurrent repliers are
// both preserved; relative order follows commit order.
func (s *GormStore) AppendReply(complaintID string, reply domain.Reply) error {
	model := replyToModel(reply)
	model.ComplaintID = complaintID
	return s.db.Create(&model).Error
}

// SetComplaintStatus updates the status column only.
func (s *GormStore) SetComplaintStatus(complaintID string, status domain.ComplaintStatus) error {
	return s.db.Model(&ComplaintModel{}).
		Where("id = ?", complaintID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}

// ComplaintCount returns the total number of complaints.
func (s *GormStore) ComplaintCount() (int, error) {
	var count int64
	if err := s.db.Model(&ComplaintModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// NextSequence increments the named counter and returns the new value. The
// upsert-and-return runs as a single statement so concurrent callers can
// never mint the same value.
func (s *GormStore) NextSequence(name string) (int64, error) {
	var seq int64
	err := s.db.Raw(`
		INSERT INTO counter_models (name, seq) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counter_models.seq + 1
		RETURNING seq
	`, name).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
