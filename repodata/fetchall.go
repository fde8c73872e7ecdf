package repodata

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ChannelSubdirResult pairs a fetch outcome with the (channel, subdir)
// it came from, since index.Engine needs to attach channel/priority
// metadata to every resulting record after the fan-out completes.
type ChannelSubdirResult struct {
	ChannelURL string
	ChannelKey string // caller-supplied identifier (e.g. config.Channel.Name)
	Priority   int
	Subdir     string
	Doc        *Document
	Err        error
}

// ChannelSpec identifies a channel for FetchAll: its base URL, a
// caller-supplied key (typically config.Channel.Name), and its priority
// (lower wins on identity conflicts, spec.md §3/§4.3).
type ChannelSpec struct {
	URL      string
	Key      string
	Priority int
}

// FetchAll fetches repodata for every (channel, subdir) pair in
// parallel, bounded by poolSize concurrent fetches, per spec.md §4.2's
// concurrency rule ("Per channel fetches proceed in parallel across
// subdirs up to a bounded pool (default 10)"). Within a single
// (channel,subdir), Cache's own single-flight guarantees only one fetch
// is ever in progress.
func (c *Cache) FetchAll(ctx context.Context, channels []ChannelSpec, subdirs []string, poolSize int) []ChannelSubdirResult {
	if poolSize <= 0 {
		poolSize = 10
	}
	sem := semaphore.NewWeighted(int64(poolSize))

	total := len(channels) * len(subdirs)
	results := make([]ChannelSubdirResult, total)

	var wg sync.WaitGroup
	idx := 0
	for _, ch := range channels {
		for _, subdir := range subdirs {
			i := idx
			idx++
			wg.Add(1)
			go func(ch ChannelSpec, subdir string, i int) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					results[i] = ChannelSubdirResult{ChannelURL: ch.URL, ChannelKey: ch.Key, Priority: ch.Priority, Subdir: subdir, Err: err}
					return
				}
				defer sem.Release(1)

				doc, _, err := c.FetchLatestParsed(ctx, ch.URL, subdir)
				results[i] = ChannelSubdirResult{
					ChannelURL: ch.URL,
					ChannelKey: ch.Key,
					Priority:   ch.Priority,
					Subdir:     subdir,
					Doc:        doc,
					Err:        err,
				}
			}(ch, subdir, i)
		}
	}
	wg.Wait()
	return results
}
