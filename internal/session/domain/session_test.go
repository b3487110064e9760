package domain

import (
	"testing"
	"time"
)

func TestActive(t *testing.T) {
	now := time.Now().UTC()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name string
		sess Session
		want bool
	}{
		{"live", Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", Session{ExpiresAt: now.Add(-time.Second)}, false},
		{"expires exactly now", Session{ExpiresAt: now}, false},
		{"revoked", Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, false},
		{"revoked and expired", Session{ExpiresAt: now.Add(-time.Hour), RevokedAt: &revoked}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.Active(now); got != tt.want {
				t.Errorf("Active = %v, want %v", got, tt.want)
			}
		})
	}
}
