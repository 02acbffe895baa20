// Package character builds full Character profiles from the lightweight
// CharacterSummary entries inside a TCCN seed, and refines or enriches an
// existing profile.
package character

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/MrWong99/playwright-engine/internal/jsonx"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const enrichmentPreviewChars = 2000

// Service generates, refines, and enriches Character profiles.
type Service struct {
	strong  *llmclient.Client
	prompts *promptregistry.Registry
	logger  *slog.Logger
}

// New constructs a character Service. strong backs every call: character
// design quality matters more than latency here, unlike the high-frequency
// beat-level calls that use the fast tier.
func New(strong *llmclient.Client, prompts *promptregistry.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{strong: strong, prompts: prompts, logger: logger}
}

type characterResponse struct {
	Name                   string   `json:"name"`
	InternalState          string   `json:"internal_state"`
	Ambitions              string   `json:"ambitions"`
	Teleology              string   `json:"teleology"`
	Philosophy             string   `json:"philosophy"`
	PhysicalState          string   `json:"physical_state"`
	LongTermMemory         []string `json:"long_term_memory"`
	ShortTermMemory        []string `json:"short_term_memory"`
	InternalContradictions []string `json:"internal_contradictions"`
}

func (r characterResponse) toCharacter() types.Character {
	return types.Character{
		Name:                   r.Name,
		InternalState:          r.InternalState,
		Ambitions:              r.Ambitions,
		Teleology:              r.Teleology,
		Philosophy:             r.Philosophy,
		PhysicalState:          r.PhysicalState,
		LongTermMemory:         r.LongTermMemory,
		ShortTermMemory:        r.ShortTermMemory,
		InternalContradictions: r.InternalContradictions,
	}
}

// Generate produces a first-pass Character profile for summary within the
// world described by tccn. On any failure it returns a minimal profile
// carrying only the summary's name and description, so world creation never
// blocks entirely on one character's generation call.
func (s *Service) Generate(ctx context.Context, tccn *types.TCCN, summary types.CharacterSummary) types.Character {
	prompt, err := s.prompts.Render("generators", "FIRST_PASS_CHARACTER_DESIGNER", map[string]string{
		"tcc_context":           tccn.ToPromptText(),
		"character_description": summary.Name + ": " + summary.Description,
	})
	if err != nil {
		s.logger.Warn("character: generate prompt render failed, using minimal profile", "character", summary.Name, "error", err)
		return minimalCharacter(summary)
	}

	var resp characterResponse
	if err := s.strong.CompleteStructured(ctx, types.TierStrong, "You are an expert character designer for theatrical plays.", prompt, "", &resp); err != nil {
		s.logger.Warn("character: generate failed, using minimal profile", "character", summary.Name, "error", err)
		return minimalCharacter(summary)
	}

	char := resp.toCharacter()
	if char.Name == "" {
		char.Name = summary.Name
	}
	return char
}

func minimalCharacter(summary types.CharacterSummary) types.Character {
	return types.Character{
		Name:          summary.Name,
		InternalState: summary.Description,
	}
}

// Refine iteratively deepens an existing character profile through rounds
// successive calls to FULL_DESCRIPTION_CHARACTER_REFINER. A render or LLM
// failure on any round stops refinement and returns the best profile
// obtained so far, never discarding prior rounds' progress.
func (s *Service) Refine(ctx context.Context, tccn *types.TCCN, char types.Character, rounds int) types.Character {
	current := char
	for i := 0; i < rounds; i++ {
		prompt, err := s.prompts.Render("refiners", "FULL_DESCRIPTION_CHARACTER_REFINER", map[string]string{
			"tcc_context":       tccn.ToPromptText(),
			"character_profile": current.ToPromptText(),
		})
		if err != nil {
			s.logger.Warn("character: refine prompt render failed, stopping early", "character", char.Name, "round", i, "error", err)
			return current
		}

		var resp characterResponse
		if err := s.strong.CompleteStructured(ctx, types.TierStrong, "You are a master character developer. Reimagine and deepen this character.", prompt, "", &resp); err != nil {
			s.logger.Warn("character: refine failed, stopping early", "character", char.Name, "round", i, "error", err)
			return current
		}

		next := resp.toCharacter()
		if next.Name == "" {
			next.Name = char.Name
		}
		current = next
	}
	return current
}

// Enrich draws from historical or fictional inspiration sources to deepen a
// character. When the enrichment response doesn't parse back into a
// Character, its raw text is appended to InternalState instead of discarded.
func (s *Service) Enrich(ctx context.Context, char types.Character) types.Character {
	prompt, err := s.prompts.Render("generators", "FIRST_PASS_CHARACTER_ENRICHMENT", map[string]string{
		"hppti_context": char.ToPromptText(),
	})
	if err != nil {
		s.logger.Warn("character: enrich prompt render failed, leaving character unchanged", "character", char.Name, "error", err)
		return char
	}

	raw, err := s.strong.Complete(ctx, types.TierStrong, "You enrich character designs by drawing from historical and fictional inspiration sources.", prompt, llmclient.Options{})
	if err != nil {
		s.logger.Warn("character: enrich failed, leaving character unchanged", "character", char.Name, "error", err)
		return char
	}

	var resp characterResponse
	if jsonErr := tryParseCharacterJSON(raw, &resp); jsonErr == nil && resp.Name != "" {
		enriched := resp.toCharacter()
		return enriched
	}

	preview := raw
	if len(preview) > enrichmentPreviewChars {
		preview = preview[:enrichmentPreviewChars]
	}
	char.InternalState = char.InternalState + "\n\n[Enrichment]\n" + strings.TrimSpace(preview)
	return char
}

func tryParseCharacterJSON(raw string, target *characterResponse) error {
	value, err := jsonx.Extract(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(value, target)
}
