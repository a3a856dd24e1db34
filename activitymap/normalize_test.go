package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		UID:       "user-100",
		Email:     "admin@x.com",
		Role:      auth.RoleSuperAdmin,
		Metadata: map[string]any{
			"ticket": "SEC-204",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventLoginSuccess) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventLoginSuccess, out.Verb)
	}
	if out.ObjectType != "admin_session" {
		t.Fatalf("expected object_type admin_session, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "admin_auth" {
		t.Fatalf("expected channel admin_auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["ticket"] != "SEC-204" {
		t.Fatalf("expected metadata ticket SEC-204, got %#v", out.Metadata["ticket"])
	}
	if out.Metadata[activitymap.MetadataKeyRole] != "super_admin" {
		t.Fatalf("expected metadata role super_admin, got %#v", out.Metadata[activitymap.MetadataKeyRole])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyEmail]; ok {
		t.Fatalf("expected no email metadata when uid is set")
	}
	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeFailedLogin(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Email:     " Eve@X.com ",
		Metadata:  map[string]any{"error": "admin access required"},
	})

	if out.ActorID != "eve@x.com" {
		t.Fatalf("expected actor_id eve@x.com, got %q", out.ActorID)
	}
	if out.ObjectID != "" {
		t.Fatalf("expected empty object_id, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "Eve@X.com" {
		t.Fatalf("expected email metadata, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetRequested,
		Email:     "admin@x.com",
		Role:      auth.RoleAdmin,
		Metadata: map[string]any{
			"request_id":                "req-1",
			activitymap.MetadataKeyRole: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["request_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "req-1" {
		t.Fatalf("expected object_id req-1, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyRole] != "existing" {
		t.Fatalf("expected existing role preserved, got %#v", out.Metadata[activitymap.MetadataKeyRole])
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses uid when present",
			event:  auth.ActivityEvent{UID: "user-1", Email: "a@x.com"},
			expect: "user-1",
		},
		{
			name:   "uses email when uid missing",
			event:  auth.ActivityEvent{Email: "a@x.com"},
			expect: "a@x.com",
		},
		{
			name:   "uses default fallback when uid and email missing",
			event:  auth.ActivityEvent{},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("restore")},
			expect: "restore",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

type captureLogger struct {
	infos []string
	args  [][]any
}

func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(msg string, args ...any) {
	c.infos = append(c.infos, msg)
	c.args = append(c.args, args)
}
func (c *captureLogger) Warn(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}

func TestNewLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.NewLogSink(logger)

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
		UID:       "user-9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logger.infos) != 1 || logger.infos[0] != "activity" {
		t.Fatalf("expected one activity log, got %v", logger.infos)
	}
	args := logger.args[0]
	if args[1] != string(auth.ActivityEventLogout) || args[3] != "user-9" {
		t.Fatalf("unexpected log args %v", args)
	}
}
