// Package seeding turns a short seed description into a full TCCN story
// seed: the Teleology-Context-Characters-Narrative-threads structure every
// world is built from.
package seeding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const seedingSystemPrompt = "You are an expert playwright and narrative designer."

// Service generates TCCN story seeds from a one-line pitch.
type Service struct {
	llm     *llmclient.Client
	prompts *promptregistry.Registry
	logger  *slog.Logger
}

// New constructs a seeding Service.
func New(llm *llmclient.Client, prompts *promptregistry.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, prompts: prompts, logger: logger}
}

type tccnResponse struct {
	Teleology        string                   `json:"teleology"`
	Context          string                   `json:"context"`
	Characters       []types.CharacterSummary `json:"characters"`
	NarrativeThreads []types.NarrativeThread  `json:"narrative_threads"`
}

// GenerateSeed produces a full TCCN from seedDescription via a structured
// strong-LLM call. On render or LLM failure it falls back to a free-text
// completion parsed heuristically by parseFreeTextTCCN, since a seed is
// foundational: the world cannot exist without one. When the prompt cannot
// be rendered the fallback cannot render it either and returns the minimal
// placeholder seed.
func (s *Service) GenerateSeed(ctx context.Context, seedDescription string) *types.TCCN {
	prompt, err := s.prompts.Render("generators", "INITIAL_HISTORY_TCC_GENERATOR", map[string]string{
		"seed_description": seedDescription,
	})
	if err != nil {
		s.logger.Warn("seeding: prompt render failed, using free-text fallback", "error", err)
		return s.freeTextSeed(ctx, seedDescription)
	}

	var resp tccnResponse
	if err := s.llm.CompleteStructured(ctx, types.TierStrong, seedingSystemPrompt, prompt, "", &resp); err != nil {
		s.logger.Warn("seeding: structured generate failed, using free-text fallback", "error", err)
		return s.freeTextSeed(ctx, seedDescription)
	}

	tccn := &types.TCCN{
		Teleology:        resp.Teleology,
		Context:          resp.Context,
		Characters:       resp.Characters,
		NarrativeThreads: resp.NarrativeThreads,
	}
	if len(tccn.Characters) == 0 {
		tccn.Characters = []types.CharacterSummary{{Name: "Unknown", Description: ""}}
	}
	if len(tccn.NarrativeThreads) == 0 {
		tccn.NarrativeThreads = []types.NarrativeThread{{Thread: ""}}
	}
	return tccn
}

// freeTextSeed asks for an unstructured completion and best-effort parses
// the loose TELEOLOGY/CONTEXT/CHARACTERS/NARRATIVE THREADS section format
// the generator prompt asks for in prose.
func (s *Service) freeTextSeed(ctx context.Context, seedDescription string) *types.TCCN {
	prompt, err := s.prompts.Render("generators", "INITIAL_HISTORY_TCC_GENERATOR", map[string]string{
		"seed_description": seedDescription,
	})
	if err != nil {
		return minimalTCCN()
	}
	raw, err := s.llm.Complete(ctx, types.TierStrong, seedingSystemPrompt, prompt, llmclient.Options{})
	if err != nil {
		s.logger.Warn("seeding: free-text fallback also failed, using minimal seed", "error", err)
		return minimalTCCN()
	}
	return parseFreeTextTCCN(raw)
}

func minimalTCCN() *types.TCCN {
	return &types.TCCN{
		Characters:       []types.CharacterSummary{{Name: "Unknown", Description: ""}},
		NarrativeThreads: []types.NarrativeThread{{Thread: ""}},
	}
}

// parseFreeTextTCCN scans raw line by line for the four section headers and
// assembles a TCCN from whatever it finds. It tolerates missing sections:
// a header never seen simply leaves that field empty.
func parseFreeTextTCCN(raw string) *types.TCCN {
	sections := map[string]*strings.Builder{}
	order := []string{"teleology", "context", "characters", "narrative_threads"}
	for _, k := range order {
		sections[k] = &strings.Builder{}
	}
	current := ""

	for _, line := range strings.Split(raw, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(upper, "TELEOLOGY"):
			current = "teleology"
			sections[current].WriteString(afterColon(line))
		case strings.HasPrefix(upper, "CONTEXT"):
			current = "context"
			sections[current].WriteString(afterColon(line))
		case strings.HasPrefix(upper, "CHARACTERS"):
			current = "characters"
		case strings.HasPrefix(upper, "NARRATIVE THREADS"):
			current = "narrative_threads"
		case current != "":
			sections[current].WriteString("\n" + line)
		}
	}

	characters := parseCharacterLines(sections["characters"].String())
	threads := parseThreadLines(sections["narrative_threads"].String())
	if len(characters) == 0 {
		characters = []types.CharacterSummary{{Name: "Unknown", Description: ""}}
	}
	if len(threads) == 0 {
		threads = []types.NarrativeThread{{Thread: ""}}
	}

	return &types.TCCN{
		Teleology:        strings.TrimSpace(sections["teleology"].String()),
		Context:          strings.TrimSpace(sections["context"].String()),
		Characters:       characters,
		NarrativeThreads: threads,
	}
}

func afterColon(line string) string {
	if idx := strings.Index(line, ":"); idx != -1 {
		return strings.TrimSpace(line[idx+1:])
	}
	return ""
}

func parseCharacterLines(text string) []types.CharacterSummary {
	var out []types.CharacterSummary
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = stripLeadingBullet(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		if name, desc, ok := splitOnce(line, ":"); ok {
			out = append(out, types.CharacterSummary{Name: name, Description: desc})
		} else if name, desc, ok := splitOnce(line, " - "); ok {
			out = append(out, types.CharacterSummary{Name: name, Description: desc})
		}
	}
	return out
}

func parseThreadLines(text string) []types.NarrativeThread {
	var out []types.NarrativeThread
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = stripLeadingBullet(strings.TrimSpace(line))
		if line != "" {
			out = append(out, types.NarrativeThread{Thread: line})
		}
	}
	return out
}

// stripLeadingBullet removes a leading "1.", "2)", "-" or similar list marker.
func stripLeadingBullet(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return strings.TrimPrefix(strings.TrimPrefix(line, "- "), "* ")
}

func splitOnce(s, sep string) (string, string, bool) {
	idx := strings.Index(s, sep)
	if idx == -1 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+len(sep):]), true
}
