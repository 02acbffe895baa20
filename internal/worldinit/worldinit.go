// Package worldinit assembles a brand new WorldState from a seed
// description: generate a TCCN, generate and refine a Character per
// summary, sample the world's global trope pool, and seed thread states.
// This is the bridge between "a client posts a seed description" and "a
// WorldState the conductor can advance" that the engine's data flow implies
// without naming its own module.
package worldinit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/playwright-engine/internal/character"
	"github.com/MrWong99/playwright-engine/internal/convmem"
	"github.com/MrWong99/playwright-engine/internal/seeding"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const defaultTropePoolSize = 30
const initialThreadTension = 3
const refineRounds = 1

// tropeSampler is the narrow trope-corpus dependency world initialization
// needs: sampling the run's global fate pool.
type tropeSampler interface {
	SampleRandom(n int) types.TropeSample
}

// ProgressFunc receives a (step, detail) pair at each major milestone of
// world initialization, mirroring the original on_progress callback so an
// SSE endpoint can stream character-by-character generation updates.
type ProgressFunc func(step, detail string)

// Engine builds new worlds from seed descriptions.
type Engine struct {
	seeding            *seeding.Service
	characters         *character.Service
	corpus             tropeSampler
	logger             *slog.Logger
	conversationWindow int
}

// New constructs a worldinit Engine. conversationWindow sizes each world's
// conversation-memory window (0 selects convmem's own default).
func New(seeding *seeding.Service, characters *character.Service, corpus tropeSampler, conversationWindow int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{seeding: seeding, characters: characters, corpus: corpus, conversationWindow: conversationWindow, logger: logger}
}

// Options configures a single Initialize call.
type Options struct {
	// Mode selects whether the resulting world runs autonomously or waits
	// for director intervention between steps. Zero value is ModeAutonomous.
	Mode types.EngineMode

	// TropePoolSize is how many tropes to sample into the world's global
	// pool. Zero selects defaultTropePoolSize.
	TropePoolSize int

	// NumCharacters caps how many of the seed's character summaries are
	// actually generated into full profiles. Zero means "all of them".
	NumCharacters int

	// OnProgress, if non-nil, is called at each major initialization step.
	OnProgress ProgressFunc
}

// Initialize runs the full seed-to-world pipeline and returns a freshly
// built WorldState. The caller is responsible for registering it with a
// world store; Initialize never touches persistence.
func (e *Engine) Initialize(ctx context.Context, seedDescription string, opts Options) *types.WorldState {
	progress := opts.OnProgress
	if progress == nil {
		progress = func(string, string) {}
	}
	poolSize := opts.TropePoolSize
	if poolSize <= 0 {
		poolSize = defaultTropePoolSize
	}
	mode := opts.Mode
	if mode == "" {
		mode = types.ModeAutonomous
	}

	progress("starting", "generating world seed")
	tccn := e.seeding.GenerateSeed(ctx, seedDescription)

	toGenerate := tccn.Characters
	if opts.NumCharacters > 0 && opts.NumCharacters < len(toGenerate) {
		toGenerate = toGenerate[:opts.NumCharacters]
	}

	// Each character's generate+refine chain is independent of every other
	// character's, so they fan out concurrently the same way the hot-context
	// assembler fetches its three layers in parallel. A mutex serializes the
	// progress callback, since SSE writers aren't safe for concurrent use.
	characters := make(map[string]types.Character, len(toGenerate))
	results := make([]types.Character, len(toGenerate))
	var progressMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, summary := range toGenerate {
		i, summary := i, summary
		g.Go(func() error {
			progressMu.Lock()
			progress("generating_character", fmt.Sprintf("generating character %d/%d: %s", i+1, len(toGenerate), summary.Name))
			progressMu.Unlock()
			char := e.characters.Generate(gctx, tccn, summary)

			progressMu.Lock()
			progress("refining_character", fmt.Sprintf("refining character %d/%d: %s", i+1, len(toGenerate), summary.Name))
			progressMu.Unlock()
			char = e.characters.Refine(gctx, tccn, char, refineRounds)

			results[i] = char
			progressMu.Lock()
			progress("character_ready", fmt.Sprintf("character ready: %s (%d/%d)", char.Name, i+1, len(toGenerate)))
			progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	for _, char := range results {
		characters[char.Name] = char
	}

	progress("sampling_tropes", fmt.Sprintf("sampling %d tropes", poolSize))
	tropeSample := e.corpus.SampleRandom(poolSize)

	threadStates := make([]types.NarrativeThreadState, 0, len(tccn.NarrativeThreads))
	for _, nt := range tccn.NarrativeThreads {
		threadStates = append(threadStates, types.NarrativeThreadState{
			Thread:       nt,
			Status:       types.ThreadActive,
			TensionLevel: initialThreadTension,
		})
	}

	world := &types.WorldState{
		SeedDescription:   seedDescription,
		TCCN:              tccn,
		Characters:        characters,
		Acts:              []types.Act{},
		CurrentActIndex:   0,
		CurrentSceneIndex: 0,
		CurrentBeatIndex:  0,
		ThreadStates:      threadStates,
		GlobalTropePool:   tropeSample.Tropes,
		Mode:              mode,
		Status:            types.WorldInitialized,
		CreatedAt:         time.Now(),
		History:           convmem.New(e.conversationWindow),
	}

	progress("complete", fmt.Sprintf("world ready: %d characters, %d threads, mode=%s", len(characters), len(threadStates), mode))
	return world
}
