package core

import "testing"

func TestEngagement(t *testing.T) {
	r := Record{Likes: 10, Reshares: 20, Replies: 30, Views: 40}

	tests := []struct {
		metric string
		want   int64
	}{
		{"likes", 10},
		{"reshares", 20},
		{"replies", 30},
		{"views", 40},
		{"", 10},        // default
		{"unknown", 10}, // fallback
	}

	for _, tt := range tests {
		if got := r.Engagement(tt.metric); got != tt.want {
			t.Errorf("Engagement(%q) = %d, want %d", tt.metric, got, tt.want)
		}
	}
}

func TestEngagementTier(t *testing.T) {
	tests := []struct {
		likes int64
		want  string
	}{
		{0, "low"},
		{999, "low"},
		{1000, "medium"},
		{9999, "medium"},
		{10000, "high"},
		{49999, "high"},
		{50000, "viral"},
		{1000000, "viral"},
	}

	for _, tt := range tests {
		if got := EngagementTier(tt.likes); got != tt.want {
			t.Errorf("EngagementTier(%d) = %q, want %q", tt.likes, got, tt.want)
		}
	}
}

func TestClusterSize(t *testing.T) {
	c := Cluster{MemberIDs: []string{"a", "b", "c"}}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
	if (Cluster{}).Size() != 0 {
		t.Error("empty cluster should have size 0")
	}
}
