package adminauth

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func collectAudit(sink *ChannelSink, max int, wait time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, max)
	timeout := time.After(wait)
	for len(events) < max {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func findAudit(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}

func TestAuditDisabledNoEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	_, _ = env.engine.Login(context.Background(), LoginRequest{Username: "alice", Password: "nope"})
	if events := collectAudit(env.sink, 1, 50*time.Millisecond); len(events) != 0 {
		t.Fatalf("expected no audit events when disabled, got %d", len(events))
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("expected zero dropped events")
	}
}

func TestAuditLoginEventsCarryRequestFields(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 32
		c.Audit.DropIfFull = false
	})
	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "curl/8")

	_, _ = env.engine.Login(ctx, LoginRequest{Username: "alice", Password: "super-secret-password"})
	pair, err := env.engine.Login(ctx, LoginRequest{Username: "alice", Password: "alice-pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	events := collectAudit(env.sink, 2, 2*time.Second)

	failure, ok := findAudit(events, auditEventLoginFailure)
	if !ok {
		t.Fatalf("expected %s event, got %+v", auditEventLoginFailure, events)
	}
	if failure.Success || failure.Error != "invalid_credentials" {
		t.Fatalf("unexpected failure event: %+v", failure)
	}
	if failure.Metadata["username"] != "alice" {
		t.Fatalf("expected username metadata, got %v", failure.Metadata)
	}

	success, ok := findAudit(events, auditEventLoginSuccess)
	if !ok {
		t.Fatalf("expected %s event", auditEventLoginSuccess)
	}
	if success.UserID != "1" || success.TokenID != pair.TokenID {
		t.Fatalf("unexpected success event: %+v", success)
	}
	if success.IP != "198.51.100.33" || success.UserAgent != "curl/8" {
		t.Fatalf("request fields missing: %+v", success)
	}
	if !success.Timestamp.Equal(env.clock.Now().UTC()) {
		t.Fatalf("expected engine clock timestamp, got %v", success.Timestamp)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 32
		c.Audit.DropIfFull = false
	})
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, LoginRequest{Username: "alice", Password: "alice-pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	next, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := env.engine.Kick(ctx, next.TokenID); err != nil {
		t.Fatalf("kick: %v", err)
	}

	events := collectAudit(env.sink, 3, 2*time.Second)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	needles := []string{"alice-pw", pair.RefreshToken, pair.AccessToken, next.RefreshToken, env.dir.users["1"].cred.PasswordHash}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("secret leaked in error of %s", ev.EventType)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("secret leaked in metadata of %s", ev.EventType)
				}
			}
		}
	}
	if _, ok := findAudit(events, auditEventSessionKicked); !ok {
		t.Fatal("expected session_kicked event")
	}
}

func TestAuditCustomSinkReceivesForceLogout(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Audit.Enabled = true })
	ctx := context.Background()
	env.login(t, "alice", "alice-pw")

	if _, err := env.engine.ForceLogout(ctx, "1"); err != nil {
		t.Fatalf("force logout: %v", err)
	}

	events := collectAudit(env.sink, 2, 2*time.Second)
	ev, ok := findAudit(events, auditEventForceLogout)
	if !ok {
		t.Fatalf("expected force_logout event, got %+v", events)
	}
	if ev.UserID != "1" || ev.Metadata["retired"] != "1" {
		t.Fatalf("unexpected force_logout event: %+v", ev)
	}
}

func TestAuditJSONWriterSinkAlias(t *testing.T) {
	var b strings.Builder
	sink := NewJSONWriterSink(&b)
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLogout, UserID: "u1", Success: true})

	if !strings.Contains(b.String(), "logout") || !strings.Contains(b.String(), "\"user_id\":\"u1\"") {
		t.Fatalf("unexpected JSON line %q", b.String())
	}
}

func TestAuditMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	sink := MultiSink{a, b}
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})

	if a.Count() != 1 || b.Count() != 1 {
		t.Fatalf("expected both sinks called once, got %d and %d", a.Count(), b.Count())
	}
}
