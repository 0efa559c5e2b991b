package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/medwait/waitline/backend/internal/adapters/database"
	"github.com/medwait/waitline/backend/internal/domain/entities"
	"github.com/medwait/waitline/backend/internal/infrastructure/clients/postgres"
	"github.com/medwait/waitline/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				notification_records,
				queue_entries,
				patients
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	queueRepo := database.NewQueueAdapter(pgClient)

	// A small demo line: one already completed visit so the stats endpoint
	// has something to aggregate, then three patients waiting. The completed
	// visit goes first so its position does not collide with the active line.
	checkedIn := time.Now().Add(-2 * time.Hour)
	completedAt := checkedIn.Add(35 * time.Minute)
	donePatient := &entities.Patient{
		ID:        uuid.New().String(),
		Name:      "Deji Balogun",
		Phone:     "+2348010000004",
		CreatedAt: checkedIn,
	}
	doneEntry := &entities.QueueEntry{
		ID:          uuid.New().String(),
		PatientID:   donePatient.ID,
		Phone:       donePatient.Phone,
		Position:    1,
		Status:      entities.QueueStatusWaiting,
		CheckedInAt: checkedIn,
	}
	if err := queueRepo.CreateWithPatient(ctx, donePatient, doneEntry); err != nil {
		log.Printf("Failed to seed completed visit: %v", err)
	} else {
		doneEntry.Status = entities.QueueStatusCompleted
		doneEntry.CompletedAt = &completedAt
		if err := queueRepo.UpdateStatus(ctx, doneEntry); err != nil {
			log.Printf("Failed to complete seeded visit: %v", err)
		}
	}

	type seedPatient struct {
		name     string
		phone    string
		position int
	}

	waiting := []seedPatient{
		{name: "Amara Okafor", phone: "+2348010000001", position: 1},
		{name: "Bode Adeyemi", phone: "+2348010000002", position: 2},
		{name: "Chiamaka Eze", phone: "+2348010000003", position: 3},
	}

	for _, sp := range waiting {
		now := time.Now()
		patient := &entities.Patient{
			ID:        uuid.New().String(),
			Name:      sp.name,
			Phone:     sp.phone,
			CreatedAt: now,
		}
		entry := &entities.QueueEntry{
			ID:                   uuid.New().String(),
			PatientID:            patient.ID,
			Phone:                sp.phone,
			Position:             sp.position,
			Status:               entities.QueueStatusWaiting,
			EstimatedWaitMinutes: entities.EstimatedWait(sp.position, cfg.Queue.WaitPerPositionMinutes),
			CheckedInAt:          now,
		}
		if err := queueRepo.CreateWithPatient(ctx, patient, entry); err != nil {
			log.Printf("Failed to seed patient %s: %v", sp.name, err)
			continue
		}
		log.Printf("Seeded %s at position %d", sp.name, sp.position)
	}

	log.Println("Seeding complete")
}
