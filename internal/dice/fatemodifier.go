package dice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// tropeDescriptionPreview bounds how much of a trope's description is injected
// into the fate-modifier prompt.
const tropeDescriptionPreview = 200

// sceneContextPreview bounds how much scene context is injected.
const sceneContextPreview = 500

type modifierItem struct {
	TropeName string `json:"trope_name"`
	Modifier  int    `json:"modifier"`
	Rationale string `json:"rationale"`
}

// modifierResponse tolerates the assessor returning either a bare JSON array
// of items, or an object wrapping them under a "modifiers" key.
type modifierResponse struct {
	Modifiers []modifierItem `json:"modifiers"`
}

func (r *modifierResponse) UnmarshalJSON(data []byte) error {
	var asArray []modifierItem
	if err := json.Unmarshal(data, &asArray); err == nil {
		r.Modifiers = asArray
		return nil
	}
	type alias modifierResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = modifierResponse(a)
	return nil
}

// AssessFateModifiers asks the fast LLM how each active trope biases the
// given action, returning one FateModifier per trope. On any failure — LLM
// call, JSON parse, or an unmatched trope name — it degrades to all-zero
// (neutral fate) modifiers and logs a warning. It never fails the caller.
func (s *Service) AssessFateModifiers(ctx context.Context, action, actor string, activeTropes []types.Trope, sceneContext string) []types.FateModifier {
	if len(activeTropes) == 0 {
		return nil
	}

	tropesText := formatTropesForAssessment(activeTropes)
	sc := sceneContext
	if len(sc) > sceneContextPreview {
		sc = sc[:sceneContextPreview]
	}

	prompt, err := s.prompts.Render("assessors", "FATE_MODIFIER_ASSESSOR", map[string]string{
		"action":        action,
		"actor":         actor,
		"tropes_text":   tropesText,
		"scene_context": sc,
	})
	if err != nil {
		s.logger.Warn("dice: fate modifier prompt render failed, using neutral", "error", err)
		return neutralModifiers(activeTropes)
	}

	var resp modifierResponse
	const systemPrompt = "You assess how literary tropes modify the probability of character actions. Return ONLY valid JSON."
	err = s.llm.CompleteStructured(ctx, types.TierFast, systemPrompt, prompt, "", &resp)
	if err != nil {
		s.logger.Warn("dice: fate modifier assessment failed, using neutral", "actor", actor, "action", action, "error", err)
		return neutralModifiers(activeTropes)
	}

	modifiers := make([]types.FateModifier, 0, len(resp.Modifiers))
	for _, item := range resp.Modifiers {
		trope := matchTrope(activeTropes, item.TropeName)
		modifiers = append(modifiers, types.FateModifier{
			Trope:     trope,
			Modifier:  clamp(item.Modifier, modifierMin, modifierMax),
			Rationale: item.Rationale,
		})
	}
	s.logger.Info("dice: fate modifiers assessed", "actor", actor, "count", len(modifiers))
	return modifiers
}

func formatTropesForAssessment(tropes []types.Trope) string {
	lines := make([]string, 0, len(tropes))
	for _, t := range tropes {
		desc := t.Description
		if len(desc) > tropeDescriptionPreview {
			desc = desc[:tropeDescriptionPreview]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, desc))
	}
	return strings.Join(lines, "\n")
}

func matchTrope(tropes []types.Trope, name string) types.Trope {
	for _, t := range tropes {
		if t.Name == name {
			return t
		}
	}
	return tropes[0]
}

func neutralModifiers(tropes []types.Trope) []types.FateModifier {
	out := make([]types.FateModifier, len(tropes))
	for i, t := range tropes {
		out[i] = types.FateModifier{Trope: t, Modifier: 0, Rationale: "(assessment failed)"}
	}
	return out
}

// Service exposes the dice resolution subsystem: pure rolling, LLM-assessed
// fate modifiers, and the combined resolve_action pipeline.
type Service struct {
	llm     *llmclient.Client
	corpus  tropeSampler
	prompts *promptregistry.Registry
	logger  *slog.Logger
}

// tropeSampler is the subset of the trope corpus the dice service needs,
// kept narrow so tests can supply a fake without constructing a real corpus.
type tropeSampler interface {
	SampleRandom(n int) types.TropeSample
}

// NewService constructs a dice Service.
func NewService(llm *llmclient.Client, corpus tropeSampler, prompts *promptregistry.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, corpus: corpus, prompts: prompts, logger: logger}
}
