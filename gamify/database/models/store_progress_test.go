package models

import (
	"testing"
	"time"
)

func TestStoreProgress_Recompute(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name           string
		initial        StoreProgress
		completed      int
		total          int
		wantTransition bool
		wantPct        float64
		wantStatus     string
	}{
		{
			name:       "zero tasks keeps status",
			initial:    StoreProgress{Status: ProgressStatusNotStarted},
			completed:  0,
			total:      0,
			wantPct:    0,
			wantStatus: ProgressStatusNotStarted,
		},
		{
			name:       "partial progress",
			initial:    StoreProgress{Status: ProgressStatusNotStarted},
			completed:  1,
			total:      3,
			wantPct:    33.33,
			wantStatus: ProgressStatusInProgress,
		},
		{
			name:           "full progress completes",
			initial:        StoreProgress{Status: ProgressStatusInProgress},
			completed:      3,
			total:          3,
			wantTransition: true,
			wantPct:        100,
			wantStatus:     ProgressStatusCompleted,
		},
		{
			name:       "already completed does not re-transition",
			initial:    StoreProgress{Status: ProgressStatusCompleted},
			completed:  3,
			total:      3,
			wantPct:    100,
			wantStatus: ProgressStatusCompleted,
		},
		{
			name:       "two thirds rounds to two decimals",
			initial:    StoreProgress{Status: ProgressStatusInProgress},
			completed:  2,
			total:      3,
			wantPct:    66.67,
			wantStatus: ProgressStatusInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := tt.initial
			got := sp.Recompute(tt.completed, tt.total, now)
			if got != tt.wantTransition {
				t.Errorf("Recompute() = %v, want %v", got, tt.wantTransition)
			}
			if sp.ProgressPercentage != tt.wantPct {
				t.Errorf("ProgressPercentage = %v, want %v", sp.ProgressPercentage, tt.wantPct)
			}
			if sp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", sp.Status, tt.wantStatus)
			}
		})
	}
}

func TestStoreProgress_CompletedAtSetOnce(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	sp := StoreProgress{Status: ProgressStatusInProgress}
	if !sp.Recompute(2, 2, first) {
		t.Fatal("expected completion transition")
	}
	if sp.CompletedAt == nil || !sp.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt = %v, want %v", sp.CompletedAt, first)
	}

	if sp.Recompute(2, 2, later) {
		t.Fatal("unexpected second transition")
	}
	if !sp.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt recalculated to %v, want %v", sp.CompletedAt, first)
	}
}
