package cache

import (
	"testing"
	"time"

	"github.com/Sternrassler/beu-results/pkg/result"
)

func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: time.Now().Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "just expired",
			expires: time.Now().Add(-1 * time.Second),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Expires: tt.expires,
			}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	if got := (&Entry{Expires: time.Now().Add(-time.Minute)}).TTL(); got != 0 {
		t.Errorf("TTL() of expired entry = %v, want 0", got)
	}

	entry := NewEntry(&result.StudentResult{RegistrationNo: "22104134010"}, time.Hour)
	if ttl := entry.TTL(); ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL() = %v, want about 1h", ttl)
	}
	if entry.CachedAt.IsZero() {
		t.Error("CachedAt not set")
	}
}
