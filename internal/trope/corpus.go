// Package trope provides an in-memory indexed view over the literary trope
// corpus: random sampling, keyword search, and media-tagged sampling. The
// corpus itself is read-only after load and may be shared across worlds
// without locking.
package trope

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// descriptionMaxLen truncates overlong descriptions before they ever reach a
// prompt, matching the corpus's own convention.
const descriptionMaxLen = 500

// Corpus is an immutable, read-only collection of tropes plus any number of
// named media-specific sub-collections (e.g. "tv", "film", "lit").
type Corpus struct {
	all   []types.Trope
	media map[string][]types.Trope
}

// LoadCSV reads a trope corpus from a CSV file with at least three columns
// mapped to {trope_id, name, description}; a header row is assumed and
// skipped. Additional media-specific files may be attached with AttachMedia.
func LoadCSV(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trope: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("trope: read %q: %w", path, err)
	}
	return &Corpus{all: rows, media: make(map[string][]types.Trope)}, nil
}

// AttachMedia loads a media-specific CSV (tv_tropes.csv, film_tropes.csv,
// lit_tropes.csv, ...) and registers it under the given media tag.
func (c *Corpus) AttachMedia(media, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("trope: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return fmt.Errorf("trope: read %q: %w", path, err)
	}
	c.media[media] = rows
	return nil
}

func readRows(r io.Reader) ([]types.Trope, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []types.Trope
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			continue // skip header
		}
		if len(record) < 3 {
			continue
		}
		desc := record[2]
		if len(desc) > descriptionMaxLen {
			desc = desc[:descriptionMaxLen]
		}
		out = append(out, types.Trope{
			TropeID:     record[0],
			Name:        record[1],
			Description: desc,
		})
	}
	return out, nil
}

// NewFromSlice builds a Corpus directly from in-memory tropes, bypassing any
// file I/O. Used by tests and by callers that already hold parsed data.
func NewFromSlice(tropes []types.Trope) *Corpus {
	return &Corpus{all: tropes, media: make(map[string][]types.Trope)}
}
