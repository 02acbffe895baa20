package character

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/mock"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

func writeTemplates(t *testing.T, dir string) {
	t.Helper()
	dirs := map[string][]string{
		"generators": {"FIRST_PASS_CHARACTER_DESIGNER", "FIRST_PASS_CHARACTER_ENRICHMENT"},
		"refiners":   {"FULL_DESCRIPTION_CHARACTER_REFINER"},
	}
	for category, names := range dirs {
		catDir := filepath.Join(dir, category)
		if err := os.MkdirAll(catDir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		for _, name := range names {
			path := filepath.Join(catDir, name+".txt")
			if err := os.WriteFile(path, []byte("template body\n"), 0o644); err != nil {
				t.Fatalf("write %s: %v", name, err)
			}
		}
	}
}

func newService(t *testing.T, provider *mock.Provider) *Service {
	t.Helper()
	dir := t.TempDir()
	writeTemplates(t, dir)
	prompts := promptregistry.New(dir)
	client := llmclient.New(provider, provider, nil)
	return New(client, prompts, nil)
}

func testTCCN() *types.TCCN {
	return &types.TCCN{Teleology: "redemption", Context: "a besieged coastal city"}
}

func TestGenerate_ParsesStructuredProfile(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{
			"name": "Keeper",
			"internal_state": "haunted by the wreck",
			"ambitions": "keep the light burning",
			"teleology": "atone for the lost crew",
			"philosophy": "duty outlasts grief",
			"physical_state": "weathered, scarred hands"
		}`},
	}
	svc := newService(t, provider)

	char := svc.Generate(context.Background(), testTCCN(), types.CharacterSummary{Name: "Keeper", Description: "guards the lighthouse"})
	if char.Name != "Keeper" {
		t.Errorf("unexpected name: %q", char.Name)
	}
	if char.Ambitions != "keep the light burning" {
		t.Errorf("unexpected ambitions: %q", char.Ambitions)
	}
}

func TestGenerate_FallsBackToMinimalOnLLMFailure(t *testing.T) {
	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	svc := newService(t, provider)

	char := svc.Generate(context.Background(), testTCCN(), types.CharacterSummary{Name: "Mara", Description: "a smuggler"})
	if char.Name != "Mara" {
		t.Errorf("unexpected name: %q", char.Name)
	}
	if char.InternalState != "a smuggler" {
		t.Errorf("expected summary description carried into internal state, got %q", char.InternalState)
	}
}

func TestGenerate_MissingNameFallsBackToSummaryName(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"internal_state": "quiet and watchful"}`},
	}
	svc := newService(t, provider)

	char := svc.Generate(context.Background(), testTCCN(), types.CharacterSummary{Name: "Mara", Description: "a smuggler"})
	if char.Name != "Mara" {
		t.Errorf("expected name to fall back to summary name, got %q", char.Name)
	}
}

func TestRefine_RunsRequestedRounds(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"name": "Keeper", "internal_state": "deepened"}`},
	}
	svc := newService(t, provider)

	char := types.Character{Name: "Keeper", InternalState: "haunted"}
	refined := svc.Refine(context.Background(), testTCCN(), char, 2)
	if refined.InternalState != "deepened" {
		t.Errorf("expected refined state, got %q", refined.InternalState)
	}
	if len(provider.CompleteCalls) != 2 {
		t.Errorf("expected 2 refine rounds to call the LLM twice, got %d", len(provider.CompleteCalls))
	}
}

func TestRefine_StopsEarlyOnFailureKeepingLastGoodProfile(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir)
	prompts := promptregistry.New(dir)
	provider := &failAfterNProvider{n: 1}
	client := llmclient.New(provider, provider, nil)
	svc := New(client, prompts, nil)

	char := types.Character{Name: "Keeper", InternalState: "haunted"}
	refined := svc.Refine(context.Background(), testTCCN(), char, 3)
	if refined.InternalState != "refined once" {
		t.Errorf("expected first-round result preserved, got %q", refined.InternalState)
	}
}

// failAfterNProvider succeeds with a fixed response for the first n calls,
// then fails every call after that.
type failAfterNProvider struct {
	n     int
	calls int
}

func (p *failAfterNProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.calls <= p.n {
		return &llm.CompletionResponse{Content: `{"name": "Keeper", "internal_state": "refined once"}`}, nil
	}
	return nil, context.DeadlineExceeded
}

func (p *failAfterNProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return nil, context.DeadlineExceeded
}

func (p *failAfterNProvider) CountTokens(messages []types.Message) (int, error) {
	return 0, nil
}

func (p *failAfterNProvider) Capabilities() types.ModelCapabilities {
	return types.ModelCapabilities{}
}

func TestEnrich_ParsesStructuredEnrichment(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"name": "Keeper", "internal_state": "touched by old myths of drowned kings"}`},
	}
	svc := newService(t, provider)

	char := svc.Enrich(context.Background(), types.Character{Name: "Keeper", InternalState: "haunted"})
	if char.InternalState != "touched by old myths of drowned kings" {
		t.Errorf("unexpected enriched state: %q", char.InternalState)
	}
}

func TestEnrich_AppendsRawTextWhenUnparseable(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "The keeper recalls drowned kings and old debts to the sea."},
	}
	svc := newService(t, provider)

	char := svc.Enrich(context.Background(), types.Character{Name: "Keeper", InternalState: "haunted"})
	if char.Name != "Keeper" {
		t.Errorf("unexpected name: %q", char.Name)
	}
	want := "haunted\n\n[Enrichment]\nThe keeper recalls drowned kings and old debts to the sea."
	if char.InternalState != want {
		t.Errorf("unexpected internal state: got %q, want %q", char.InternalState, want)
	}
}

func TestEnrich_LLMFailureLeavesCharacterUnchanged(t *testing.T) {
	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	svc := newService(t, provider)

	original := types.Character{Name: "Keeper", InternalState: "haunted"}
	got := svc.Enrich(context.Background(), original)
	if got.InternalState != original.InternalState {
		t.Errorf("expected unchanged state on failure, got %q", got.InternalState)
	}
}
