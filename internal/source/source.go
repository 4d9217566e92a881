// Package source loads record batches produced by the timeline fetcher.
// The fetcher and its authentication are external; this package only parses
// its JSON output into core.Records, dropping malformed entries with a count
// instead of aborting the batch.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pulse/internal/core"
	"pulse/internal/logger"
)

// rawRecord mirrors the fetcher's JSON output shape.
type rawRecord struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	User      struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		Verified   bool   `json:"verified"`
		Followers  int64  `json:"followers"`
	} `json:"user"`
	Metrics struct {
		Likes    int64       `json:"likes"`
		Retweets int64       `json:"retweets"`
		Replies  int64       `json:"replies"`
		Views    json.Number `json:"views"` // Arrives as a string from the upstream API
	} `json:"metrics"`
	IsRetweet bool `json:"is_retweet"`
	IsQuote   bool `json:"is_quote"`
}

// Result is a loaded batch plus the count of malformed entries dropped.
type Result struct {
	Records []core.Record
	Dropped int
}

// LoadFile reads a JSON batch from path.
func LoadFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read records file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of fetcher records. Entries missing a required
// field, carrying negative counts, or failing to decode at all are dropped
// and counted; only a batch that is not a JSON array aborts.
func Parse(data []byte) (Result, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, fmt.Errorf("failed to parse records: %w", err)
	}

	log := logger.Get()
	result := Result{Records: make([]core.Record, 0, len(raw))}
	seen := make(map[string]bool, len(raw))

	for _, entry := range raw {
		var r rawRecord
		if err := json.Unmarshal(entry, &r); err != nil {
			log.Debug().Err(err).Msg("dropping undecodable record")
			result.Dropped++
			continue
		}
		record, err := convert(r)
		if err != nil {
			log.Debug().Str("id", r.ID).Err(err).Msg("dropping malformed record")
			result.Dropped++
			continue
		}
		if seen[record.ID] {
			// Upstream dedupes; a repeat here is malformed input.
			log.Debug().Str("id", record.ID).Msg("dropping duplicate record id")
			result.Dropped++
			continue
		}
		seen[record.ID] = true
		result.Records = append(result.Records, record)
	}

	if result.Dropped > 0 {
		log.Warn().Int("dropped", result.Dropped).Msg("dropped malformed records")
	}
	return result, nil
}

func convert(r rawRecord) (core.Record, error) {
	if strings.TrimSpace(r.ID) == "" {
		return core.Record{}, fmt.Errorf("missing id")
	}
	if strings.TrimSpace(r.User.ScreenName) == "" {
		return core.Record{}, fmt.Errorf("missing author handle")
	}
	if r.Metrics.Likes < 0 || r.Metrics.Retweets < 0 || r.Metrics.Replies < 0 {
		return core.Record{}, fmt.Errorf("negative engagement count")
	}

	views, err := parseViews(r.Metrics.Views)
	if err != nil {
		return core.Record{}, fmt.Errorf("bad view count: %w", err)
	}

	createdAt, err := parseCreatedAt(r.CreatedAt)
	if err != nil {
		return core.Record{}, fmt.Errorf("bad created_at: %w", err)
	}

	return core.Record{
		ID:        r.ID,
		Text:      r.Text,
		CreatedAt: createdAt,
		Author:    r.User.ScreenName,
		Followers: r.User.Followers,
		Verified:  r.User.Verified,
		Likes:     r.Metrics.Likes,
		Reshares:  r.Metrics.Retweets,
		Replies:   r.Metrics.Replies,
		Views:     views,
		IsReshare: r.IsRetweet,
		IsQuote:   r.IsQuote,
	}, nil
}

// parseCreatedAt accepts the upstream API's legacy format and RFC 3339.
func parseCreatedAt(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("missing created_at")
	}
	for _, layout := range []string{time.RubyDate, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func parseViews(n json.Number) (int64, error) {
	s := n.String()
	if s == "" {
		return 0, nil
	}
	views, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if views < 0 {
		return 0, fmt.Errorf("negative view count %d", views)
	}
	return views, nil
}
