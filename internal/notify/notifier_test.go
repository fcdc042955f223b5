package notify

import (
	"strings"
	"testing"
	"time"

	"icsdissect/internal/record"
)

func TestAlertFormatsPendingLine(t *testing.T) {
	n := New(SMTPConfig{Host: "localhost", Port: 2525, From: "a@b.com", To: "c@d.com"}, time.Hour)

	r := &record.UnifiedRecord{Timestamp: "2026-01-15T10:30:00.000000Z", Protocol: "modbus", SIP: "10.0.0.1", DIP: "10.0.0.2"}
	n.Alert(r, "write to holding register")

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) != 1 {
		t.Fatalf("expected one pending line, got %d", len(n.pending))
	}
	line := n.pending[0]
	if !strings.Contains(line, "modbus") || !strings.Contains(line, "write to holding register") {
		t.Fatalf("expected line to mention protocol and reason, got %q", line)
	}
}

func TestFlushClearsPendingEvenWhenSendFails(t *testing.T) {
	// No SMTP relay is listening on this port, so send() is expected to
	// fail; flush must still clear the pending buffer rather than retry
	// forever.
	n := New(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@b.com", To: "c@d.com"}, time.Hour)
	n.Alert(&record.UnifiedRecord{Timestamp: "t", Protocol: "s7", SIP: "x", DIP: "y"}, "test reason")

	n.flush()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) != 0 {
		t.Fatalf("expected pending buffer cleared after flush, got %d entries", len(n.pending))
	}
}

func TestFlushNoopOnEmptyPending(t *testing.T) {
	n := New(SMTPConfig{Host: "127.0.0.1", Port: 1}, time.Hour)
	n.flush() // must not panic or attempt to send with nothing pending
}

func TestStopFlushesRemainingAlerts(t *testing.T) {
	n := New(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@b.com", To: "c@d.com"}, time.Hour)
	n.Start()
	n.Alert(&record.UnifiedRecord{Timestamp: "t", Protocol: "modbus", SIP: "x", DIP: "y"}, "reason")
	n.Stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) != 0 {
		t.Fatalf("expected Stop to flush pending alerts, got %d remaining", len(n.pending))
	}
}
