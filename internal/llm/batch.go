package llm

import (
	"context"
	"sync"
)

// EmbedBatch embeds all texts with a bounded worker pool. Each text's
// embedding is a pure function of that text alone, so the fan-out carries no
// cross-record state. Output order matches input order. The first error
// cancels the remaining work and is returned wrapped as UnavailableError.
func EmbedBatch(ctx context.Context, embedder Embedder, texts []string, workers int) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(texts) {
		workers = len(texts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		index int
		text  string
	}

	jobs := make(chan job)
	results := make([][]float64, len(texts))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				vec, err := embedder.Embed(ctx, j.text)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results[j.index] = vec
			}
		}()
	}

feed:
	for i, text := range texts {
		select {
		case jobs <- job{index: i, text: text}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, &UnavailableError{Err: firstErr}
	}
	return results, nil
}
