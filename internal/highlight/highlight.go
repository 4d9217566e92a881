// Package highlight recovers high-engagement posts from the noise
// partition. Density clustering intentionally discards sparse topics and
// one-off viral posts; promotion by raw engagement keeps that signal
// visible without forcing it into an unrelated cluster.
package highlight

import (
	"sort"

	"pulse/internal/core"
)

// Options selects the promotion rule.
type Options struct {
	Metric    string // engagement metric name: likes, reshares, replies, views
	Threshold int64  // promote at or above this value
}

// Extract promotes noise records whose engagement metric meets the
// threshold. Input records must all be noise-designated; cluster members
// are never eligible. Output is sorted metric-descending, ties broken by
// record id so identical batches produce identical output.
func Extract(noise []core.Record, opts Options) []core.Highlight {
	highlights := make([]core.Highlight, 0)
	for _, rec := range noise {
		value := rec.Engagement(opts.Metric)
		if value < opts.Threshold {
			continue
		}
		highlights = append(highlights, core.Highlight{
			RecordID: rec.ID,
			Author:   rec.Author,
			Metric:   value,
			Text:     rec.Text,
		})
	}

	sort.Slice(highlights, func(a, b int) bool {
		if highlights[a].Metric != highlights[b].Metric {
			return highlights[a].Metric > highlights[b].Metric
		}
		return highlights[a].RecordID < highlights[b].RecordID
	})
	return highlights
}
