package shelter

import (
	"context"
	"fmt"
	"log/slog"
)

// Day-cycle orchestrator. One RunDay call processes one simulated day in
// seven ordered phases. Provider calls are blocking and strictly sequential;
// everything else runs under the state lock so each phase commits atomically.

// Live phase labels exposed through LiveState.
const (
	phaseIdle      = "idle"
	phaseThinking  = "thinking"
	phaseExecuting = "executing"
	phaseCompleted = "completed"
)

// RunDay advances the simulation by one day and returns its summary. If
// another day is already in flight the call is rejected immediately with
// ErrDayRunning; nothing is mutated.
func (s *Shelter) RunDay(ctx context.Context) (DaySummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return DaySummary{}, ErrDayRunning
	}
	defer s.running.Store(false)

	s.mu.Lock()
	day := s.day
	slog.Info("day starting", "day", day)

	// Rejected proposals from earlier days leave the pool now; approved ones
	// were applied and pruned the day they passed.
	s.pruneProposals()

	// Transient per-day state.
	for _, name := range s.order {
		s.agents[name].TokensToday = 0
		s.live.Phases[name] = phaseIdle
		delete(s.live.Thinking, name)
		delete(s.live.Requests, name)
		delete(s.live.Actions, name)
	}
	s.live.CurrentActing = ""

	// The decision roster is fixed at day start.
	roster := s.aliveNames()
	s.mu.Unlock()

	var dayEvents []Event
	requests := make(map[string]int, len(roster))
	planned := make(map[string][]Action, len(roster))
	totalTokens := 0

	// ── Phase 1: decisions ────────────────────────────────────────────
	for _, name := range roster {
		s.mu.Lock()
		if !s.agents[name].Alive {
			s.mu.Unlock()
			continue
		}
		s.live.CurrentActing = name
		s.live.Phases[name] = phaseThinking
		view := s.worldViewLocked(name)
		s.mu.Unlock()

		decision, derr := s.safeDecide(ctx, name, view)

		s.mu.Lock()
		if derr != nil {
			decision = FallbackDecision(s.cfg.SurvivalCostBase,
				fmt.Sprintf("decision failed: %v", derr))
			dayEvents = append(dayEvents, Event{
				Day:     day,
				Type:    EventWarning,
				Actor:   name,
				Content: fmt.Sprintf("decision provider failed, using fallback: %v", derr),
			})
			slog.Warn("decision provider failed", "agent", name, "error", derr)
		}
		decision.Actions = sanitizeActions(decision.Actions)
		if decision.ResourceRequest < 0 {
			decision.ResourceRequest = 0
		}

		a := s.agents[name]
		requests[name] = decision.ResourceRequest
		planned[name] = decision.Actions
		a.LastRequest = decision.ResourceRequest

		// Provisional points from the request; the pool carries over, it is
		// not reset. Corrected against the real allocation in phase 5.
		gained := s.apFromResources(decision.ResourceRequest)
		a.ActionPoints += gained

		tokens := s.cfg.BaseDecisionCost
		if decision.TokensUsed > 0 {
			tokens = decision.TokensUsed
		}
		a.TokensToday = tokens
		totalTokens += tokens

		s.live.Thinking[name] = decision.Thinking
		s.live.Requests[name] = decision.ResourceRequest
		s.live.Actions[name] = decision.Actions

		content := fmt.Sprintf("requested %d resources, holding %d action points",
			decision.ResourceRequest, a.ActionPoints)
		ev := Event{
			Day:     day,
			Type:    EventRequest,
			Actor:   name,
			Content: content,
			Details: map[string]any{
				"request":       decision.ResourceRequest,
				"action_points": a.ActionPoints,
				"token_cost":    tokens,
			},
		}
		s.addEvent(name, ev)
		dayEvents = append(dayEvents, ev)

		slog.Info("agent decided",
			"agent", name,
			"request", decision.ResourceRequest,
			"gained_ap", gained,
			"total_ap", a.ActionPoints,
			"actions", len(decision.Actions),
		)
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ── Phase 2: action execution ─────────────────────────────────────
	apBefore := make(map[string]int, len(roster))
	for _, name := range roster {
		if a := s.agents[name]; a.Alive {
			apBefore[name] = a.ActionPoints
		}
	}
	for _, name := range roster {
		a := s.agents[name]
		if !a.Alive {
			continue
		}
		s.live.CurrentActing = name
		s.live.Phases[name] = phaseExecuting
		if a.ActionPoints > 0 {
			totalTokens += s.executeAgentActions(name, planned[name], &dayEvents)
		}
		s.live.Phases[name] = phaseCompleted
	}
	s.live.CurrentActing = ""

	// ── Phase 3: proposal resolution ──────────────────────────────────
	approved := s.resolveProposals()
	if approved != nil {
		dayEvents = append(dayEvents, Event{
			Day:     day,
			Type:    "proposal_approved",
			Actor:   approved.Proposer,
			Content: fmt.Sprintf("proposal %s approved (%s): %s", approved.ID, approved.Type, approved.Content),
			Details: map[string]any{"proposal_id": approved.ID, "proposal_type": string(approved.Type)},
		})
	}

	// ── Phase 4: allocation ───────────────────────────────────────────
	allocations := s.allocateResources(requests, approved, &dayEvents)

	// ── Phase 5: action-point reconciliation ──────────────────────────
	// Requests and final allocations can differ under rationing or proposal
	// overrides; replace the provisional pool with points from the actual
	// allocation, minus what phase 2 already spent.
	for name, allocated := range allocations {
		a := s.agents[name]
		if a == nil || !a.Alive {
			continue
		}
		spent := apBefore[name] - a.ActionPoints
		final := s.apFromResources(allocated) - spent
		if final < 0 {
			final = 0
		}
		slog.Debug("action points reconciled",
			"agent", name, "allocated", allocated, "spent", spent, "final", final)
		a.ActionPoints = final
	}

	// ── Phase 6: health and elimination ───────────────────────────────
	s.applyAllocations(allocations)
	eliminated := s.checkElimination(&dayEvents)

	// ── Phase 7: bookkeeping ──────────────────────────────────────────
	sumAllocated := 0
	for _, v := range allocations {
		sumAllocated += v
	}
	s.remainingResources = s.cfg.TotalResources - sumAllocated
	s.globalTokens += totalTokens

	budgetRemaining := s.cfg.TotalSimulationBudget - s.globalTokens
	if budgetRemaining < 0 {
		budgetRemaining = 0
	}
	summary := DaySummary{
		Day:                  day,
		ResourceRequests:     requests,
		Allocations:          allocations,
		AllocationMethod:     s.allocationMethod,
		Eliminated:           eliminated,
		RemainingResources:   s.remainingResources,
		TokensConsumed:       totalTokens,
		GlobalTokensConsumed: s.globalTokens,
		TokenBudgetRemaining: budgetRemaining,
		Events:               dayEvents,
	}
	s.history = append(s.history, summary)
	s.day++

	for _, name := range s.order {
		s.live.Phases[name] = phaseIdle
	}

	slog.Info("day complete",
		"day", day,
		"alive", len(s.aliveNames()),
		"eliminated", len(eliminated),
		"remaining_resources", s.remainingResources,
		"tokens", totalTokens,
		"global_tokens", s.globalTokens,
	)
	return summary, nil
}

// safeDecide invokes the agent's provider, converting panics to errors so a
// misbehaving provider can never abort the day.
func (s *Shelter) safeDecide(ctx context.Context, name string, view WorldView) (decision Decision, err error) {
	provider := s.providers[name]
	if provider == nil {
		return Decision{}, fmt.Errorf("no decision provider for %s", name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return provider.Decide(ctx, view)
}
