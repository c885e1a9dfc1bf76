package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hostelhub/internal/attendance"
	"hostelhub/internal/config"
	"hostelhub/internal/directory"
	"hostelhub/internal/queue"
	"hostelhub/internal/store"
)

// Worker consumes toggle audit messages, refreshes the daily summary cache,
// and logs the audit trail.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "hostelhub:attendance")
	}

	dir := directory.NewService(directory.NewRepository(db.Client))
	att := attendance.NewService(attendance.NewRepository(db.Client), dir, redisClient, cfg.SummaryCacheTTL)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != attendance.AuditMessageType {
			continue
		}

		var audit attendance.ToggleAudit
		if err := json.Unmarshal(msg.Body, &audit); err != nil {
			log.Printf("bad audit message: %v", err)
			continue
		}

		log.Printf("audit: student %s marked %s by %s on %s",
			audit.StudentID, audit.Status, audit.MarkedBy, audit.Day.Format("2006-01-02"))

		sum, err := att.RefreshSummary(ctx, audit.HostelID, audit.Day)
		if err != nil {
			log.Printf("summary refresh failed for hostel %s: %v", audit.HostelID, err)
			continue
		}
		log.Printf("hostel %s summary: marked=%d present=%d absent=%d",
			audit.HostelID, sum.TotalMarked, sum.Present, sum.Absent)
	}

	log.Println("worker stopped")
}
