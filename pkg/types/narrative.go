package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/playwright-engine/internal/convmem"
)

// ─── Dice / Stochastic System ───────────────────────────────────────────

// DiceOutcome is the five-tier outcome ladder produced by resolving a d100
// roll (after fate modifiers) against the resolution table.
type DiceOutcome string

const (
	OutcomeCatastrophicFailure DiceOutcome = "catastrophic_failure"
	OutcomeFailure             DiceOutcome = "failure"
	OutcomeMixed               DiceOutcome = "mixed"
	OutcomeSuccess             DiceOutcome = "success"
	OutcomeCriticalSuccess     DiceOutcome = "critical_success"
)

// FateModifier is a trope applied as a signed modifier to a dice roll.
// Modifier is always clamped to [-30, 30] by the dice service before this
// value is constructed.
type FateModifier struct {
	Trope     Trope
	Modifier  int
	Rationale string
}

// DiceRoll is the complete record of a single stochastic action resolution.
type DiceRoll struct {
	RawRoll           int // 1-100, the unmodified d100 result
	FateModifiers     []FateModifier
	FinalValue        int // RawRoll + sum(modifiers), clamped 1-100
	Outcome           DiceOutcome
	ActionDescription string
	Actor             string
}

// ─── Tropes ──────────────────────────────────────────────────────────────

// Trope is a single literary-trope corpus entry.
type Trope struct {
	TropeID     string
	Name        string
	Description string
}

// TropeSample is a collection of sampled tropes with provenance, used both
// as the "literary fate" injected into scene prompts and as the dice
// service's active-trope pool for a single resolution.
type TropeSample struct {
	Tropes []Trope
	Source string // "random" | "filtered" | "thematic" | "by_media"
}

// ToPromptText formats the sample as the bullet-list injection text used in
// scene and beat prompts.
func (s TropeSample) ToPromptText() string {
	lines := make([]string, 0, len(s.Tropes))
	for _, t := range s.Tropes {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, t.Description))
	}
	return strings.Join(lines, "\n")
}

// ─── Story Seed (TCCN) ───────────────────────────────────────────────────

// NarrativeThread is a single narrative thread expressed as a trope-shaped
// sentence: "ACTION between ACTORS in CONTEXT help attain TELEOLOGY: REASON".
type NarrativeThread struct {
	Thread string
}

// CharacterSummary is a lightweight character reference used inside a TCCN
// seed, before full Character profiles are generated.
type CharacterSummary struct {
	Name        string
	Description string
}

// TCCN is Teleology-Context-Characters-Narrative-threads: the fundamental
// story-seed structure that drives the entire engine.
type TCCN struct {
	// Teleology is the ultimate finality of the play — fate, moral, or
	// ethical teaching it is building toward.
	Teleology string

	// Context is the world-building background the play develops within.
	Context string

	// Characters are the actors that populate the world (aim for 10+).
	Characters []CharacterSummary

	// NarrativeThreads are the trope-based threads serving the teleology
	// (aim for 10+).
	NarrativeThreads []NarrativeThread
}

// ToPromptText renders the TCCN as a plain-text block suitable for prompt
// injection.
func (t TCCN) ToPromptText() string {
	chars := make([]string, 0, len(t.Characters))
	for i, c := range t.Characters {
		chars = append(chars, fmt.Sprintf("  %d. %s: %s", i+1, c.Name, c.Description))
	}
	threads := make([]string, 0, len(t.NarrativeThreads))
	for i, th := range t.NarrativeThreads {
		threads = append(threads, fmt.Sprintf("  %d. %s", i+1, th.Thread))
	}
	return fmt.Sprintf(
		"TELEOLOGY:\n%s\n\nCONTEXT:\n%s\n\nCHARACTERS:\n%s\n\nNARRATIVE THREADS:\n%s",
		t.Teleology, t.Context, strings.Join(chars, "\n"), strings.Join(threads, "\n"),
	)
}

// ─── Characters ──────────────────────────────────────────────────────────

// Character is a full character profile following the HPPTI framework:
// History (InternalState + LongTermMemory), Physical (PhysicalState),
// Philosophy, Teleology (Ambitions), and Internal contradictions.
type Character struct {
	Name                    string
	InternalState           string
	Ambitions               string
	Teleology               string
	Philosophy              string
	PhysicalState           string
	LongTermMemory          []string
	ShortTermMemory         []string
	InternalContradictions  []string
}

// ToPromptText renders the character as plain text for prompt injection.
func (c Character) ToPromptText() string {
	parts := []string{
		"Name: " + c.Name,
		"Internal State: " + c.InternalState,
		"Ambitions: " + c.Ambitions,
		"Teleology: " + c.Teleology,
		"Philosophy: " + c.Philosophy,
		"Physical State: " + c.PhysicalState,
		"Long-Term Memory: " + strings.Join(c.LongTermMemory, "; "),
		"Short-Term Memory: " + strings.Join(c.ShortTermMemory, "; "),
		"Internal Contradictions: " + strings.Join(c.InternalContradictions, "; "),
	}
	return strings.Join(parts, "\n")
}

// CharacterDelta describes changes to apply to a character after a beat
// resolves. Empty/nil fields are no-ops; non-empty ones are applied by the
// beat engine after a resolution.
type CharacterDelta struct {
	CharacterName         string
	NewShortTermMemories  []string
	NewLongTermMemories   []string
	InternalStateShift    string
	AmbitionShift         string
	ContradictionShifts   []string
	PhysicalStateChange   string
}

// ─── Beat (Small Scale) ──────────────────────────────────────────────────

// Beat is the smallest narrative unit: a single character action with
// stochastic resolution and prose output.
type Beat struct {
	ID               string
	SceneID          string
	Sequence         int // order within the scene
	Actor            string
	IntendedAction   string
	DiceRoll         *DiceRoll
	ActualOutcome    string // what happened after dice and trope modifiers
	Prose            string // theatrical prose for this beat
	CharacterDeltas  []CharacterDelta
	TropesActive     []Trope // tropes active as fate during this beat
}

// ─── Narrative Thread Tracking ───────────────────────────────────────────

// ThreadStatus is the lifecycle state of a single narrative thread.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadAdvancing ThreadStatus = "advancing"
	ThreadStalled   ThreadStatus = "stalled"
	ThreadResolved  ThreadStatus = "resolved"
	ThreadSpawned   ThreadStatus = "spawned"
)

// NarrativeThreadState tracks the lifecycle of a single narrative thread.
// Resolved is absorbing: once a thread reaches ThreadResolved it never
// transitions to any other status again.
type NarrativeThreadState struct {
	Thread       NarrativeThread
	Status       ThreadStatus
	TensionLevel int // 1-10
	Notes        string
}

// ─── Scene (Meso Scale) ───────────────────────────────────────────────────

// SceneStatus is the lifecycle state of an EngineScene.
type SceneStatus string

const (
	SceneStatusPlanned    SceneStatus = "planned"
	SceneStatusComposing  SceneStatus = "composing"
	SceneStatusInProgress SceneStatus = "in_progress"
	SceneStatusCompleted  SceneStatus = "completed"
)

// EngineScene is an extended Scene for the narrative engine, with
// beat-level tracking and thread-state snapshots.
type EngineScene struct {
	ID                 string
	ActID              string
	Number             int
	Actors             []string
	Setting            string
	PlaceDescription   string
	NarrativeThreads   []NarrativeThreadState
	TropesInjected     TropeSample
	Beats              []Beat
	SceneEvaluation    string
	FullProse          string
	Status             SceneStatus

	// PlannedActions holds the generated per-beat action intents for this
	// scene, produced once at composition time and consumed one at a time
	// as beats resolve. Not part of the original Python model's public
	// surface; kept here rather than recomputed so a resumed Advance call
	// sees the exact same planned beats.
	PlannedActions []PlannedAction
}

// PlannedAction is a single planned beat: an actor and the action they are
// about to attempt, generated ahead of resolution.
type PlannedAction struct {
	Actor  string
	Action string
}

// ─── Act (Large Scale) ────────────────────────────────────────────────────

// WorldEvent is a large-scale event that shifts the world context.
type WorldEvent struct {
	ID                  string
	Description         string
	ImpactOnContext     string
	AffectedCharacters  []string
	AffectedThreads     []string
	SpawnedThreads      []NarrativeThread
}

// TeleologyShift records how the teleology evolved across an act.
type TeleologyShift struct {
	Original string
	Shifted  string
	Reason   string
}

// ActPlan is the plan for an act: which scenes to run and with what goals.
type ActPlan struct {
	PlannedScenes      []string          // brief descriptions of intended scenes
	ThreadGoals        map[string]string // thread text -> what should happen this act
	CharacterArcs      map[string]string // character name -> intended development this act
	WorldEventsPlanned []string
}

// ActStatus is the lifecycle state of an Act.
type ActStatus string

const (
	ActStatusPlanned    ActStatus = "planned"
	ActStatusInProgress ActStatus = "in_progress"
	ActStatusCompleted  ActStatus = "completed"
)

// Act is a full act of the narrative — the large-scale container of scenes,
// world events, and at most one teleology shift.
type Act struct {
	ID                string
	Number            int
	Title             string
	Plan              *ActPlan
	Scenes            []EngineScene
	WorldEvents       []WorldEvent
	TeleologyShift    *TeleologyShift
	ContextEvolution  string // how the world context changed during this act
	Status            ActStatus
}

// ─── Director Mode ────────────────────────────────────────────────────────

// EngineMode selects whether a world advances purely autonomously or
// accepts director overrides between steps.
type EngineMode string

const (
	ModeAutonomous EngineMode = "autonomous"
	ModeDirector   EngineMode = "director"
)

// InterventionType enumerates the kinds of director interventions.
type InterventionType string

const (
	InterventionOverrideDice       InterventionType = "override_dice"
	InterventionChooseThread       InterventionType = "choose_thread"
	InterventionRedirectCharacter  InterventionType = "redirect_character"
	InterventionInjectEvent        InterventionType = "inject_event"
	InterventionSkipScene          InterventionType = "skip_scene"
	InterventionModifyPlan         InterventionType = "modify_plan"
	InterventionForceTrope         InterventionType = "force_trope"
)

// DirectorIntervention is a record of a single director override or choice.
type DirectorIntervention struct {
	Timestamp        time.Time
	InterventionType InterventionType
	Description      string
	Data             map[string]any
}

// ─── WorldState (Top-Level State) ─────────────────────────────────────────

// WorldStatus is a live phase label updated at every act/scene/beat
// transition, not just a one-time creation marker. It always reflects
// whatever the most recent Advance step did to the world.
type WorldStatus string

const (
	WorldInitialized    WorldStatus = "initialized"
	WorldActPlanned     WorldStatus = "act_planned"
	WorldSceneComposing WorldStatus = "scene_composing"
	WorldBeatResolved   WorldStatus = "beat_resolved"
	WorldSceneCompleted WorldStatus = "scene_completed"
	WorldActCompleted   WorldStatus = "act_completed"
)

// WorldState is the complete state of a single running narrative session.
// It is the unit of ownership for the per-world lock: only one Advance,
// Initialize, or director operation may run against a given WorldState at
// a time.
type WorldState struct {
	ID                     string
	SeedDescription        string
	TCCN                   *TCCN
	Characters             map[string]Character
	Acts                   []Act
	CurrentActIndex        int
	CurrentSceneIndex      int
	CurrentBeatIndex       int
	ThreadStates           []NarrativeThreadState
	GlobalTropePool        []Trope // tropes pre-sampled for the full run; uncapped
	Mode                   EngineMode
	DirectorInterventions  []DirectorIntervention
	AccumulatedProse       string
	CreatedAt              time.Time
	Status                 WorldStatus

	// History is the bounded conversation-memory window for this world: the
	// running transcript of narrated beats, rendered into scene and action
	// prompts for continuity beyond a single scene's own recent beats. Nil
	// is a valid zero value for worlds built outside worldinit (e.g. tests).
	History *convmem.Memory
}
