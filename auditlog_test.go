package titanvolume

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteAuditLogRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	log, err := NewSQLiteAuditLog(path, 16)
	if err != nil {
		t.Fatalf("NewSQLiteAuditLog: %v", err)
	}
	defer log.Close()

	ev := CorruptionEvent{
		Sector:     7,
		Replica:    uint8(replicaPrimary),
		DetectedAt: time.Now(),
		Context:    "test failure",
	}
	if err := log.RecordCorruption(ev); err != nil {
		t.Fatalf("RecordCorruption: %v", err)
	}

	recent, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("got %d events, want 1", len(recent))
	}
	if recent[0].Sector != 7 || recent[0].Context != "test failure" {
		t.Fatalf("unexpected event: %+v", recent[0])
	}
	if recent[0].ID == "" {
		t.Fatal("expected a generated ID")
	}
}

func TestSQLiteAuditLogDedupes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	log, err := NewSQLiteAuditLog(path, 16)
	if err != nil {
		t.Fatalf("NewSQLiteAuditLog: %v", err)
	}
	defer log.Close()

	for i := 0; i < 5; i++ {
		ev := CorruptionEvent{Sector: 3, Replica: uint8(replicaSecondary), DetectedAt: time.Now(), Context: "retry"}
		if err := log.RecordCorruption(ev); err != nil {
			t.Fatalf("RecordCorruption: %v", err)
		}
	}

	recent, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("got %d events after repeated reports of the same sector/replica, want 1", len(recent))
	}
}

func TestSQLiteAuditLogDisabledDedupe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	log, err := NewSQLiteAuditLog(path, 0)
	if err != nil {
		t.Fatalf("NewSQLiteAuditLog: %v", err)
	}
	defer log.Close()

	for i := 0; i < 3; i++ {
		ev := CorruptionEvent{Sector: 1, Replica: 0, DetectedAt: time.Now(), Context: "retry"}
		if err := log.RecordCorruption(ev); err != nil {
			t.Fatalf("RecordCorruption: %v", err)
		}
	}

	recent, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d events with dedupe disabled, want 3", len(recent))
	}
}

func TestNopAuditLog(t *testing.T) {
	var log NopAuditLog
	if err := log.RecordCorruption(CorruptionEvent{}); err != nil {
		t.Fatalf("RecordCorruption: %v", err)
	}
	events, err := log.Recent(10)
	if err != nil || events != nil {
		t.Fatalf("Recent: got (%v, %v), want (nil, nil)", events, err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
