package shelter

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/talgya/shelter/internal/config"
)

// ErrDayRunning is returned by RunDay when another day is already in flight.
// Concurrent day-advance attempts are rejected, never queued.
var ErrDayRunning = errors.New("shelter: a day is already running")

// Shelter is the simulation engine. All state is owned here and mutated only
// by the day-cycle phases; external readers go through Snapshot and
// LiveState.
type Shelter struct {
	cfg config.Config

	// running guards the day cycle: at most one RunDay at a time.
	running atomic.Bool

	// mu protects every field below. RunDay releases it around blocking
	// provider calls so observers can poll mid-day.
	mu sync.RWMutex

	day                int
	remainingResources int
	systemEfficiency   float64
	eliminationCount   int
	globalTokens       int
	allocationMethod   string

	order     []string // agent processing order (config order, fixed)
	agents    map[string]*Agent
	proposals []*Proposal // append-only within a day; creation order
	nextSeq   int         // per-pool proposal sequence for id generation

	history []DaySummary

	providers map[string]DecisionProvider

	live liveState
}

// liveState is the non-authoritative in-progress view for pollers. Never an
// input to simulation results.
type liveState struct {
	CurrentActing string
	Phases        map[string]string // idle / thinking / executing / completed
	Thinking      map[string]string
	Requests      map[string]int
	Actions       map[string][]Action
}

// New builds a shelter from an explicit configuration and a provider per
// agent. Agents without a provider fall back to a conservative default
// decision every day.
func New(cfg config.Config, providers map[string]DecisionProvider) *Shelter {
	s := &Shelter{
		cfg:       cfg,
		providers: providers,
	}
	s.reset()
	slog.Info("shelter initialized",
		"agents", len(s.order),
		"total_resources", cfg.TotalResources,
		"survival_cost", cfg.SurvivalCostBase,
		"memory_length", cfg.MemoryLength,
		"token_budget", cfg.TotalSimulationBudget,
	)
	return s
}

// reset reinitializes all state to day 1. Caller holds mu or is the
// constructor.
func (s *Shelter) reset() {
	s.day = 1
	s.remainingResources = s.cfg.TotalResources
	s.systemEfficiency = 1.0
	s.eliminationCount = 0
	s.globalTokens = 0
	s.allocationMethod = AllocDefault
	s.proposals = nil
	s.nextSeq = 0
	s.history = nil

	s.order = s.cfg.AgentNames()
	s.agents = make(map[string]*Agent, len(s.order))
	for _, name := range s.order {
		s.agents[name] = &Agent{
			Name:   name,
			Health: clampHealth(s.cfg.InitialHealth),
			Alive:  true,
		}
	}
	s.live = liveState{
		Phases:   make(map[string]string, len(s.order)),
		Thinking: make(map[string]string, len(s.order)),
		Requests: make(map[string]int, len(s.order)),
		Actions:  make(map[string][]Action, len(s.order)),
	}
}

// Reset reinitializes the simulation: day 1, full resources, all agents
// alive at initial health. Rejected while a day is running.
func (s *Shelter) Reset() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrDayRunning
	}
	defer s.running.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	slog.Info("shelter reset", "agents", len(s.order))
	return nil
}

// Day returns the current (next unprocessed) day number.
func (s *Shelter) Day() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// GameOver returns the terminal reason if the simulation has ended, or nil.
func (s *Shelter) GameOver() *GameOver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameOverLocked()
}

func (s *Shelter) gameOverLocked() *GameOver {
	survivors := s.aliveNames()

	if s.remainingResources < s.cfg.SurvivalCostBase {
		return &GameOver{
			Reason:    GameOverResourceDepleted,
			Day:       s.day,
			Survivors: survivors,
		}
	}
	switch len(survivors) {
	case 0:
		return &GameOver{Reason: GameOverAllEliminated, Day: s.day}
	case 1:
		return &GameOver{Reason: GameOverOneSurvivor, Day: s.day, Survivors: survivors}
	}
	return nil
}

// aliveNames returns living agents in processing order. Caller holds mu.
func (s *Shelter) aliveNames() []string {
	names := make([]string, 0, len(s.order))
	for _, name := range s.order {
		if s.agents[name].Alive {
			names = append(names, name)
		}
	}
	return names
}

// addEvent appends an event to one agent's memory. Events are immutable
// after this point.
func (s *Shelter) addEvent(name string, e Event) {
	if a, ok := s.agents[name]; ok {
		a.Memory = append(a.Memory, e)
	}
}

// actionCost returns the action-point price of an action type. Unknown types
// cost nothing and do nothing.
func (s *Shelter) actionCost(t ActionType) int {
	switch t {
	case ActionPropose:
		return s.cfg.ActionCosts.Propose
	case ActionVote:
		return s.cfg.ActionCosts.Vote
	case ActionPrivateMessage:
		return s.cfg.ActionCosts.PrivateMessage
	case ActionCallMeeting:
		return s.cfg.ActionCosts.CallMeeting
	case ActionDoNothing:
		return s.cfg.ActionCosts.DoNothing
	}
	return 0
}

// lastAllocated returns the agent's allocation from the most recent day.
func (s *Shelter) lastAllocated(name string) int {
	if len(s.history) == 0 {
		return 0
	}
	return s.history[len(s.history)-1].Allocations[name]
}

// History returns a copy of all day summaries processed so far.
func (s *Shelter) History() []DaySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DaySummary, len(s.history))
	copy(out, s.history)
	return out
}

func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > 100 {
		return 100
	}
	return h
}
