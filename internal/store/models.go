package store

import (
	"time"

	"resolvd/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID                  string    `gorm:"primaryKey"`
	SubjectID           string    `gorm:"uniqueIndex;not null"`
	Email               string    `gorm:"uniqueIndex;not null"`
	DisplayName         string    `gorm:"not null"`
	Role                string    `gorm:"not null;index"`
	SeqID               string    `gorm:"uniqueIndex"`
	Verified            bool      `gorm:"not null;default:false"`
	AdminSecretVerified bool      `gorm:"not null;default:false"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

type BusinessProfileModel struct {
	ID              string    `gorm:"primaryKey"`
	UserID          string    `gorm:"uniqueIndex;not null"`
	CompanyName     string    `gorm:"not null;index"`
	Industry        string    `gorm:"not null"`
	Description     string    `gorm:"not null"`
	DocumentURL     string    `gorm:"not null"`
	Status          string    `gorm:"not null;index"`
	RejectionReason string
	SubmittedAt     time.Time `gorm:"not null"`
}

type ComplaintModel struct {
	ID          string    `gorm:"primaryKey"`
	SeqID       string    `gorm:"uniqueIndex;not null"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Status      string    `gorm:"not null;index"`
	ConsumerID  string    `gorm:"not null;index"`
	BusinessID  string    `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type ReplyModel struct {
	ID          string    `gorm:"primaryKey"`
	ComplaintID string    `gorm:"not null;index"`
	UserID      string    `gorm:"not null"`
	UserName    string    `gorm:"not null"`
	Role        string    `gorm:"not null"`
	Content     string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"not null;index"`
}

type CounterModel struct {
	Name string `gorm:"primaryKey"`
	Seq  int64  `gorm:"not null;default:0"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                  u.ID,
		SubjectID:           u.SubjectID,
		Email:               u.Email,
		DisplayName:         u.DisplayName,
		Role:                string(u.Role),
		SeqID:               u.SeqID,
		Verified:            u.Verified,
		AdminSecretVerified: u.AdminSecretVerified,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:                  m.ID,
		SubjectID:           m.SubjectID,
		Email:               m.Email,
		DisplayName:         m.DisplayName,
		Role:                domain.UserRole(m.Role),
		SeqID:               m.SeqID,
		Verified:            m.Verified,
		AdminSecretVerified: m.AdminSecretVerified,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func profileToModel(p domain.BusinessProfile) BusinessProfileModel {
	return BusinessProfileModel{
		ID:              p.ID,
		UserID:          p.UserID,
		CompanyName:     p.CompanyName,
		Industry:        p.Industry,
		Description:     p.Description,
		DocumentURL:     p.DocumentURL,
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		SubmittedAt:     p.SubmittedAt,
	}
}

func profileFromModel(m BusinessProfileModel) domain.BusinessProfile {
	return domain.BusinessProfile{
		ID:              m.ID,
		UserID:          m.UserID,
		CompanyName:     m.CompanyName,
		Industry:        m.Industry,
		Description:     m.Description,
		DocumentURL:     m.DocumentURL,
		Status:          domain.VerificationStatus(m.Status),
		RejectionReason: m.RejectionReason,
		SubmittedAt:     m.SubmittedAt,
	}
}

func complaintToModel(c domain.Complaint) ComplaintModel {
	return ComplaintModel{
		ID:          c.ID,
		SeqID:       c.SeqID,
		Title:       c.Title,
		Description: c.Description,
		Status:      string(c.Status),
		ConsumerID:  c.ConsumerID,
		BusinessID:  c.BusinessID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func complaintFromModel(m ComplaintModel) domain.Complaint {
	return domain.Complaint{
		ID:          m.ID,
		SeqID:       m.SeqID,
		Title:       m.Title,
		Description: m.Description,
		Status:      domain.ComplaintStatus(m.Status),
		ConsumerID:  m.ConsumerID,
		BusinessID:  m.BusinessID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func replyToModel(r domain.Reply) ReplyModel {
	return ReplyModel{
		ID:          r.ID,
		ComplaintID: r.ComplaintID,
		UserID:      r.UserID,
		UserName:    r.UserName,
		Role:        string(r.Role),
		Content:     r.Content,
		Timestamp:   r.Timestamp,
	}
}

func replyFromModel(m ReplyModel) domain.Reply {
	return domain.Reply{
		ID:          m.ID,
		ComplaintID: m.ComplaintID,
		UserID:      m.UserID,
		UserName:    m.UserName,
		Role:        domain.UserRole(m.Role),
		Content:     m.Content,
		Timestamp:   m.Timestamp,
	}
}
