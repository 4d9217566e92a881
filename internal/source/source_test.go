package source

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleBatch = `[
  {
    "id": "100",
    "text": "first post #go",
    "created_at": "Wed Oct 10 20:19:24 +0000 2018",
    "user": {"name": "Alice", "screen_name": "alice", "verified": true, "followers": 1200},
    "metrics": {"likes": 42, "retweets": 7, "replies": 3, "views": "9001"},
    "is_retweet": false,
    "is_quote": false
  },
  {
    "id": "101",
    "text": "second post",
    "created_at": "2024-05-01T12:00:00Z",
    "user": {"screen_name": "bob"},
    "metrics": {"likes": 1, "retweets": 0, "replies": 0, "views": "0"}
  }
]`

func TestParseBatch(t *testing.T) {
	result, err := Parse([]byte(sampleBatch))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if result.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", result.Dropped)
	}
	if len(result.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(result.Records))
	}

	first := result.Records[0]
	if first.ID != "100" || first.Author != "alice" {
		t.Errorf("first record = %+v", first)
	}
	if first.Likes != 42 || first.Reshares != 7 || first.Replies != 3 || first.Views != 9001 {
		t.Errorf("engagement counts wrong: %+v", first)
	}
	if first.CreatedAt.Year() != 2018 {
		t.Errorf("CreatedAt = %v", first.CreatedAt)
	}
	if result.Records[1].CreatedAt.Year() != 2024 {
		t.Errorf("RFC3339 CreatedAt = %v", result.Records[1].CreatedAt)
	}
}

func TestParseDropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `[{"id": "", "text": "x", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "a"}, "metrics": {"likes": 1}}]`},
		{"missing handle", `[{"id": "1", "text": "x", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": ""}, "metrics": {"likes": 1}}]`},
		{"negative likes", `[{"id": "1", "text": "x", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "a"}, "metrics": {"likes": -5}}]`},
		{"bad timestamp", `[{"id": "1", "text": "x", "created_at": "yesterday", "user": {"screen_name": "a"}, "metrics": {"likes": 1}}]`},
		{"bad views", `[{"id": "1", "text": "x", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "a"}, "metrics": {"likes": 1, "views": "many"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse([]byte(tt.body))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if result.Dropped != 1 {
				t.Errorf("Dropped = %d, want 1", result.Dropped)
			}
			if len(result.Records) != 0 {
				t.Errorf("len(Records) = %d, want 0", len(result.Records))
			}
		})
	}
}

func TestParseTypeMalformedRecordDoesNotAbortBatch(t *testing.T) {
	// One record with the wrong field type must be dropped on its own;
	// the rest of the batch still loads.
	body := `[
	  {"id": "1", "text": "good", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "a"}, "metrics": {"likes": 1}},
	  {"id": "2", "text": "bad", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "b"}, "metrics": {"likes": "many"}},
	  {"id": "3", "text": "worse", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "c"}, "metrics": {"views": "lots", "likes": 2}}
	]`
	result, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if result.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", result.Dropped)
	}
	if len(result.Records) != 1 || result.Records[0].ID != "1" {
		t.Errorf("Records = %+v, want only record 1 kept", result.Records)
	}
}

func TestParseDropsDuplicateIDs(t *testing.T) {
	body := `[
	  {"id": "1", "text": "a", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "a"}, "metrics": {"likes": 1}},
	  {"id": "1", "text": "b", "created_at": "2024-05-01T12:00:00Z", "user": {"screen_name": "b"}, "metrics": {"likes": 2}}
	]`
	result, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(result.Records) != 1 || result.Dropped != 1 {
		t.Errorf("records = %d dropped = %d, want 1 and 1", len(result.Records), result.Dropped)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"not": "an array"}`)); err == nil {
		t.Error("expected error for non-array input")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(sampleBatch), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(result.Records))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
