package health

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusPredicates(t *testing.T) {
	healthy := NewHealthy("engine", "ready")
	if !healthy.IsHealthy() || healthy.IsUnhealthy() || healthy.IsDegraded() {
		t.Errorf("unexpected predicates for healthy status: %+v", healthy)
	}
	if !healthy.Healthy {
		t.Error("Healthy flag should be set")
	}

	unhealthy := NewUnhealthy("vectordb", "connection refused")
	if !unhealthy.IsUnhealthy() || unhealthy.Healthy {
		t.Errorf("unexpected predicates for unhealthy status: %+v", unhealthy)
	}

	degraded := NewDegraded("embedder", "hash fallback active")
	if !degraded.IsDegraded() || degraded.Healthy {
		t.Errorf("unexpected predicates for degraded status: %+v", degraded)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{
			name:     "http url",
			input:    "dial http://qdrant.internal:6333 failed",
			contains: "[URL]",
			absent:   "qdrant.internal",
		},
		{
			name:     "ip address",
			input:    "connect 192.168.1.100 refused",
			contains: "[IP]",
			absent:   "192.168.1.100",
		},
		{
			name:     "port",
			input:    "listen :8080 in use",
			contains: "[PORT]",
			absent:   "8080",
		},
		{
			name:     "unix path",
			input:    "open /etc/easylish/config.yaml denied",
			contains: "[PATH]",
			absent:   "/etc/easylish",
		},
		{
			name:     "credentials",
			input:    "auth failed: token=abc123secret",
			contains: "[REDACTED]",
			absent:   "abc123secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeErrorMessage(tt.input)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("SanitizeErrorMessage(%q) = %q, want substring %q", tt.input, got, tt.contains)
			}
			if strings.Contains(got, tt.absent) {
				t.Errorf("SanitizeErrorMessage(%q) = %q, must not contain %q", tt.input, got, tt.absent)
			}
		})
	}

	if got := SanitizeErrorMessage(""); got != "" {
		t.Errorf("empty input should stay empty, got %q", got)
	}
}

func TestFromError(t *testing.T) {
	status := FromError("engine", nil)
	if !status.IsHealthy() {
		t.Error("nil error should be healthy")
	}

	status = FromError("engine", errors.New("dial http://10.0.0.1:6333: refused"))
	if !status.IsUnhealthy() {
		t.Error("error should be unhealthy")
	}
	if strings.Contains(status.Message, "10.0.0.1") {
		t.Errorf("message not sanitized: %q", status.Message)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{
			name: "empty",
			subs: nil,
			want: "healthy",
		},
		{
			name: "all healthy",
			subs: []Status{NewHealthy("a", ""), NewHealthy("b", "")},
			want: "healthy",
		},
		{
			name: "one unhealthy",
			subs: []Status{NewHealthy("a", ""), NewUnhealthy("b", "")},
			want: "unhealthy",
		},
		{
			name: "one degraded",
			subs: []Status{NewHealthy("a", ""), NewDegraded("b", "")},
			want: "degraded",
		},
		{
			name: "unhealthy beats degraded",
			subs: []Status{NewDegraded("a", ""), NewUnhealthy("b", "")},
			want: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("engine", tt.subs)
			if got.Status != tt.want {
				t.Errorf("Aggregate() status = %q, want %q", got.Status, tt.want)
			}
			if len(got.SubStatuses) != len(tt.subs) {
				t.Errorf("SubStatuses length = %d, want %d", len(got.SubStatuses), len(tt.subs))
			}
		})
	}
}

func TestWithSubStatus(t *testing.T) {
	base := NewHealthy("engine", "ready")
	withSub := base.WithSubStatus(NewHealthy("index", "loaded"))

	if len(base.SubStatuses) != 0 {
		t.Error("original status must not be mutated")
	}
	if len(withSub.SubStatuses) != 1 {
		t.Errorf("expected 1 sub-status, got %d", len(withSub.SubStatuses))
	}
}
