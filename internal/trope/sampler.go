package trope

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// ErrUnknownMedia is returned by SampleByMedia for a media tag that was never
// attached to the corpus.
var ErrUnknownMedia = errors.New("trope: unknown media type")

// SampleRandom draws n distinct tropes uniformly at random from the full
// corpus. If the corpus holds fewer than n entries, every entry is returned.
func (c *Corpus) SampleRandom(n int) types.TropeSample {
	return types.TropeSample{
		Tropes: sampleWithoutReplacement(c.all, n),
		Source: "random",
	}
}

// Search performs a case-insensitive substring match over trope names and
// descriptions, returning up to n matches in corpus order.
func (c *Corpus) Search(query string, n int) types.TropeSample {
	q := strings.ToLower(query)
	var matches []types.Trope
	for _, t := range c.all {
		if len(matches) >= n {
			break
		}
		if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Description), q) {
			matches = append(matches, t)
		}
	}
	return types.TropeSample{Tropes: matches, Source: "filtered"}
}

// SampleByMedia draws n distinct tropes from a media-specific sub-collection
// (e.g. "tv", "film", "lit"), optionally filtered to those whose name or
// description contains title (case-insensitive). If the filter matches
// nothing, it falls back to sampling the whole media collection.
func (c *Corpus) SampleByMedia(media, title string, n int) (types.TropeSample, error) {
	pool, ok := c.media[media]
	if !ok {
		return types.TropeSample{}, fmt.Errorf("%w: %q", ErrUnknownMedia, media)
	}

	candidates := pool
	if title != "" {
		t := strings.ToLower(title)
		var filtered []types.Trope
		for _, tr := range pool {
			if strings.Contains(strings.ToLower(tr.Name), t) || strings.Contains(strings.ToLower(tr.Description), t) {
				filtered = append(filtered, tr)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	return types.TropeSample{
		Tropes: sampleWithoutReplacement(candidates, n),
		Source: "by_media",
	}, nil
}

// sampleWithoutReplacement returns up to n distinct elements of pool in random
// order. Sampling is independent across calls.
func sampleWithoutReplacement(pool []types.Trope, n int) []types.Trope {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}

	idx := rand.Perm(len(pool))
	out := make([]types.Trope, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}
