package db

import (
	"testing"
	"time"
)

func TestSlugifyAt(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{
			name:     "simple title",
			title:    "Refactoring the Worker Pool",
			expected: "2026-03-14-refactoring-the-worker-pool",
		},
		{
			name:     "punctuation stripped",
			title:    "Fix: session bug (again)!",
			expected: "2026-03-14-fix-session-bug-again",
		},
		{
			name:     "repeated whitespace collapsed",
			title:    "hello    world",
			expected: "2026-03-14-hello-world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SlugifyAt(tt.title, at)
			if result != tt.expected {
				t.Errorf("SlugifyAt(%q) = %q, want %q", tt.title, result, tt.expected)
			}
		})
	}
}

func TestResolveSlug(t *testing.T) {
	tests := []struct {
		name     string
		taken    map[string]bool
		base     string
		expected string
	}{
		{
			name:     "no collision",
			taken:    map[string]bool{},
			base:     "2026-03-14-my-post",
			expected: "2026-03-14-my-post",
		},
		{
			name:     "single collision gets -1",
			taken:    map[string]bool{"2026-03-14-my-post": true},
			base:     "2026-03-14-my-post",
			expected: "2026-03-14-my-post-1",
		},
		{
			name: "two collisions get -2",
			taken: map[string]bool{
				"2026-03-14-my-post":   true,
				"2026-03-14-my-post-1": true,
			},
			base:     "2026-03-14-my-post",
			expected: "2026-03-14-my-post-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolveSlug(tt.base, func(candidate string) (bool, error) {
				return tt.taken[candidate], nil
			})
			if err != nil {
				t.Fatalf("ResolveSlug() error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("ResolveSlug(%q) = %q, want %q", tt.base, result, tt.expected)
			}
		})
	}
}
