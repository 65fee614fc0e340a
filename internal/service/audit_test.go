package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/altbank/corebank/internal/domain"
)

func TestAuditService_RecordAndQuery(t *testing.T) {
	env := newTestEnv(t)

	env.audit.Record(context.Background(), domain.AuditCreate, "account", "acc-1", "acc-1",
		"opened account", "op-1", domain.SeverityInfo)
	env.audit.Record(context.Background(), domain.AuditUpdate, "account", "acc-1", "acc-1",
		"froze account", "op-2", domain.SeverityWarning)
	env.audit.Record(context.Background(), domain.AuditCreate, "transfer", "trf-1", "acc-1",
		"created transfer", "op-1", domain.SeverityInfo)

	byRecord, err := env.audit.ListByRecord(context.Background(), "account", "acc-1")
	if err != nil {
		t.Fatalf("list by record: %v", err)
	}
	if len(byRecord) != 2 {
		t.Fatalf("len = %d, want 2", len(byRecord))
	}
	for _, entry := range byRecord {
		if entry.ID == "" || entry.Timestamp.IsZero() || entry.Actor == "" {
			t.Fatalf("incomplete entry: %+v", entry)
		}
	}

	byAccount, err := env.audit.ListByAccount(context.Background(), "acc-1", time.Time{}, time.Time{}, 1, 10)
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if len(byAccount) != 3 {
		t.Fatalf("len = %d, want 3", len(byAccount))
	}
}

func TestAuditService_ArchiveMarksButNeverDeletes(t *testing.T) {
	env := newTestEnv(t)

	env.audit.Record(context.Background(), domain.AuditCreate, "account", "acc-1", "acc-1",
		"opened account", "op-1", domain.SeverityInfo)

	// Everything recorded so far is older than a zero-age cutoff.
	archived, err := env.audit.ArchiveOlderThan(context.Background(), 0)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived != 1 {
		t.Fatalf("archived = %d, want 1", archived)
	}

	entries, err := env.audit.ListByRecord(context.Background(), "account", "acc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1 (archive must not delete)", len(entries))
	}
	if !entries[0].Archived {
		t.Fatal("expected the entry to be marked archived")
	}
	if entries[0].Description != "opened account" {
		t.Fatal("archive must not mutate recorded content")
	}

	// A second pass finds nothing new to archive.
	again, err := env.audit.ArchiveOlderThan(context.Background(), 0)
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}
	if again != 0 {
		t.Fatalf("archived = %d, want 0", again)
	}
}
