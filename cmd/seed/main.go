package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"resolvd/internal/config"
	"resolvd/internal/store"
	"resolvd/internal/util"
	"resolvd/pkg/domain"
)

var industries = []string{
	"Retail", "Electronics", "Food Delivery", "Travel", "Telecom",
	"Banking", "Insurance", "Logistics", "Home Services", "Fitness",
}

var complaintTitles = []string{
	"Order never arrived",
	"Charged twice for one purchase",
	"Product stopped working after a week",
	"Refund promised but never issued",
	"Support keeps closing my ticket",
	"Wrong item delivered",
	"Subscription impossible to cancel",
	"Hidden fees on the invoice",
}

func main() {
	_ = godotenv.Load()
	count := flag.Int("count", 20, "number of consumers and businesses to create")
	flag.Parse()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	businesses := make([]domain.User, 0, *count)
	for i := 0; i < *count; i++ {
		user, err := seedUser(db, domain.RoleBusiness, fmt.Sprintf("business%02d", i+1), now)
		if err != nil {
			log.Fatalf("seed business: %v", err)
		}
		industry := industries[i%len(industries)]
		profile := domain.BusinessProfile{
			ID:          util.NewID(),
			UserID:      user.ID,
			CompanyName: fmt.Sprintf("%s Co %02d", industry, i+1),
			Industry:    industry,
			Description: fmt.Sprintf("Demo %s business number %d", industry, i+1),
			DocumentURL: fmt.Sprintf("https://files.example.com/seed/%s.pdf", user.ID),
			Status:      domain.VerificationApproved,
			SubmittedAt: now.AddDate(0, 0, -rng.Intn(90)),
		}
		// A few stay pending so the admin queue is not empty.
		if i%5 == 4 {
			profile.Status = domain.VerificationPending
		} else {
			user.Verified = true
			if err := db.SaveUser(user); err != nil {
				log.Fatalf("mark business verified: %v", err)
			}
		}
		if err := db.SaveProfile(profile); err != nil {
			log.Fatalf("seed profile: %v", err)
		}
		businesses = append(businesses, user)
	}

	consumers := make([]domain.User, 0, *count)
	for i := 0; i < *count; i++ {
		user, err := seedUser(db, domain.RoleConsumer, fmt.Sprintf("consumer%02d", i+1), now)
		if err != nil {
			log.Fatalf("seed consumer: %v", err)
		}
		consumers = append(consumers, user)
	}

	if _, err := seedUser(db, domain.RoleAdmin, "admin", now); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	statuses := []domain.ComplaintStatus{
		domain.ComplaintPending, domain.ComplaintOpen,
		domain.ComplaintResolved, domain.ComplaintClosed,
	}
	for i := 0; i < *count; i++ {
		consumer := consumers[rng.Intn(len(consumers))]
		business := businesses[rng.Intn(len(businesses))]
		seqID, err := store.NextSeqID(db, store.SeqComplaints, "CMP")
		if err != nil {
			log.Fatalf("allocate complaint id: %v", err)
		}
		created := now.AddDate(0, 0, -rng.Intn(60))
		complaint := domain.Complaint{
			ID:          util.NewID(),
			SeqID:       seqID,
			Title:       complaintTitles[rng.Intn(len(complaintTitles))],
			Description: "Seeded complaint for demo and manual testing.",
			Status:      statuses[rng.Intn(len(statuses))],
			ConsumerID:  consumer.ID,
			BusinessID:  business.ID,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if err := db.SaveComplaint(complaint); err != nil {
			log.Fatalf("seed complaint: %v", err)
		}
		if complaint.Status != domain.ComplaintPending {
			reply := domain.Reply{
				ID:          uuid.NewString(),
				ComplaintID: complaint.ID,
				UserID:      business.ID,
				UserName:    business.DisplayName,
				Role:        domain.RoleBusiness,
				Content:     "Thanks for reaching out, we are looking into this.",
				Timestamp:   created.Add(24 * time.Hour),
			}
			if err := db.AppendReply(complaint.ID, reply); err != nil {
				log.Fatalf("seed reply: %v", err)
			}
		}
	}

	fmt.Printf("seeded %d businesses, %d consumers, %d complaints\n", *count, *count, *count)
}

func seedUser(db store.Store, role domain.UserRole, handle string, now time.Time) (domain.User, error) {
	seqID, err := store.NextSeqID(db, store.SeqUsers, "USR")
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:          util.NewID(),
		SubjectID:   "seed|" + uuid.NewString(),
		Email:       handle + "@example.com",
		DisplayName: handle,
		Role:        role,
		SeqID:       seqID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.SaveUser(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
