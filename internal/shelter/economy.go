package shelter

import (
	"fmt"
	"log/slog"
)

// Resource and action-point economy. Allocation is either governed by an
// approved resource_allocation proposal (taken at face value) or "strict":
// full requests when affordable, otherwise the same proportional cut for
// every requester. System efficiency only throttles strict allocation.

// apFromResources converts a resource amount into action points: one point
// per 10 units above survival cost, never negative.
func (s *Shelter) apFromResources(amount int) int {
	ap := (amount - s.cfg.SurvivalCostBase) / 10
	if ap < 0 {
		return 0
	}
	return ap
}

// effectiveSupply is the pool available to strict allocation after the
// efficiency penalty, floored to an integer.
func (s *Shelter) effectiveSupply() int {
	return int(float64(s.remainingResources) * s.systemEfficiency)
}

// strictAllocation grants full requests when the effective supply covers
// them; otherwise every living requester is scaled by the same
// integer-truncated ratio. There is no privileged minimum allocation.
func (s *Shelter) strictAllocation(requests map[string]int, effective int, alive []string, dayEvents *[]Event) map[string]int {
	allocations := make(map[string]int, len(alive))

	totalRequested := 0
	for _, name := range alive {
		totalRequested += requests[name]
	}

	if totalRequested == 0 {
		for _, name := range alive {
			allocations[name] = 0
		}
		return allocations
	}

	if totalRequested <= effective {
		for _, name := range alive {
			allocations[name] = requests[name]
		}
		return allocations
	}

	ratio := float64(effective) / float64(totalRequested)
	for _, name := range alive {
		allocations[name] = int(float64(requests[name]) * ratio)
	}
	*dayEvents = append(*dayEvents, Event{
		Day:  s.day,
		Type: EventAllocation,
		Content: fmt.Sprintf("supply short at %.1f%% efficiency: all requests scaled by %.2f",
			s.systemEfficiency*100, ratio),
		Details: map[string]any{"ratio": ratio, "effective_supply": effective, "total_requested": totalRequested},
	})
	slog.Warn("allocation rationed",
		"total_requested", totalRequested,
		"effective_supply", effective,
		"ratio", fmt.Sprintf("%.3f", ratio),
	)
	return allocations
}

// allocateResources computes the day's final per-agent allocation, applying
// the approved proposal first when there is one. Elimination and appeal
// proposals mutate liveness here, then fall back to strict allocation over
// the updated roster.
func (s *Shelter) allocateResources(requests map[string]int, approved *Proposal, dayEvents *[]Event) map[string]int {
	alive := s.aliveNames()
	effective := s.effectiveSupply()

	if approved == nil {
		s.allocationMethod = AllocDefault
		return s.strictAllocation(requests, effective, alive, dayEvents)
	}

	switch approved.Type {
	case ProposalResourceAllocation:
		plan, err := ParseAllocationPlan(approved.Content)
		if err != nil {
			// Bad agent output must not crash the day; surface it instead.
			*dayEvents = append(*dayEvents, Event{
				Day:     s.day,
				Type:    EventWarning,
				Actor:   approved.Proposer,
				Content: fmt.Sprintf("proposal %s has malformed allocation content: %v", approved.ID, err),
			})
			slog.Warn("malformed allocation proposal", "id", approved.ID, "error", err)
		}
		allocations := make(map[string]int, len(alive))
		for _, name := range alive {
			allocations[name] = plan[name] // unnamed living agents get 0
		}
		s.allocationMethod = AllocProposal
		*dayEvents = append(*dayEvents, Event{
			Day:     s.day,
			Type:    EventAllocation,
			Actor:   approved.Proposer,
			Content: fmt.Sprintf("resources allocated by proposal %s: %s", approved.ID, approved.Content),
			Details: map[string]any{"proposal_id": approved.ID},
		})
		return allocations

	case ProposalEliminationVote:
		target := approved.Content
		if a, ok := s.agents[target]; ok && a.Alive {
			a.Alive = false
			a.Health = 0
			s.eliminationCount++
			s.addEvent(target, Event{
				Day:     s.day,
				Type:    EventElimination,
				Actor:   target,
				Content: fmt.Sprintf("eliminated by vote (proposal %s)", approved.ID),
			})
			*dayEvents = append(*dayEvents, Event{
				Day:     s.day,
				Type:    EventElimination,
				Actor:   target,
				Content: fmt.Sprintf("%s eliminated by vote", target),
				Details: map[string]any{"proposal_id": approved.ID},
			})
			s.decayEfficiency(dayEvents)
			slog.Warn("agent eliminated by vote", "target", target, "efficiency", s.systemEfficiency)

			alive = s.aliveNames()
		}
		s.allocationMethod = AllocVoteElimination
		return s.strictAllocation(requests, effective, alive, dayEvents)

	case ProposalAppeal:
		target := approved.Content
		if a, ok := s.agents[target]; ok && !a.Alive {
			a.Alive = true
			a.Health = 50
			s.addEvent(target, Event{
				Day:     s.day,
				Type:    EventRevival,
				Actor:   target,
				Content: fmt.Sprintf("revived by appeal (proposal %s)", approved.ID),
			})
			*dayEvents = append(*dayEvents, Event{
				Day:     s.day,
				Type:    EventRevival,
				Actor:   target,
				Content: fmt.Sprintf("%s revived by appeal", target),
				Details: map[string]any{"proposal_id": approved.ID},
			})
			slog.Info("agent revived by appeal", "target", target)

			alive = s.aliveNames()
		}
		s.allocationMethod = AllocAppealRevival
		return s.strictAllocation(requests, effective, alive, dayEvents)
	}

	s.allocationMethod = AllocDefault
	return s.strictAllocation(requests, effective, alive, dayEvents)
}

// applyAllocations applies the health rule: at or above survival cost health
// holds (surplus became action points in reconciliation); below it, health
// drops by the shortfall. Health never rises from abundance.
func (s *Shelter) applyAllocations(allocations map[string]int) {
	for _, name := range s.order {
		a := s.agents[name]
		allocated, ok := allocations[name]
		if !ok || !a.Alive {
			continue
		}
		if allocated >= s.cfg.SurvivalCostBase {
			continue
		}
		old := a.Health
		a.Health = clampHealth(a.Health + allocated - s.cfg.SurvivalCostBase)
		slog.Debug("health reduced by shortfall",
			"agent", name,
			"allocated", allocated,
			"health", fmt.Sprintf("%d->%d", old, a.Health),
		)
	}
}

// checkElimination removes agents whose health reached zero. A vote
// elimination already decayed efficiency back in allocation and marked its
// target dead, so every death found here is an independent elimination event
// and decays efficiency itself.
func (s *Shelter) checkElimination(dayEvents *[]Event) []string {
	var eliminated []string
	for _, name := range s.order {
		a := s.agents[name]
		if !a.Alive || a.Health > 0 {
			continue
		}
		a.Alive = false
		eliminated = append(eliminated, name)
		s.eliminationCount++
		s.addEvent(name, Event{
			Day:     s.day,
			Type:    EventElimination,
			Actor:   name,
			Content: "eliminated: health reached zero",
		})
		*dayEvents = append(*dayEvents, Event{
			Day:     s.day,
			Type:    EventElimination,
			Actor:   name,
			Content: fmt.Sprintf("%s eliminated (health zero)", name),
		})
		slog.Warn("agent eliminated", "agent", name, "reason", "health_zero")
		s.decayEfficiency(dayEvents)
	}
	return eliminated
}

// decayEfficiency applies the one-time global penalty for an elimination
// event, floored at the configured minimum.
func (s *Shelter) decayEfficiency(dayEvents *[]Event) {
	old := s.systemEfficiency
	s.systemEfficiency -= s.cfg.EfficiencyDecay
	if s.systemEfficiency < s.cfg.MinEfficiency {
		s.systemEfficiency = s.cfg.MinEfficiency
	}
	*dayEvents = append(*dayEvents, Event{
		Day:  s.day,
		Type: EventEfficiency,
		Content: fmt.Sprintf("system efficiency decayed from %.1f%% to %.1f%%",
			old*100, s.systemEfficiency*100),
		Details: map[string]any{"old": old, "new": s.systemEfficiency},
	})
	slog.Warn("system efficiency decayed",
		"old", fmt.Sprintf("%.2f", old),
		"new", fmt.Sprintf("%.2f", s.systemEfficiency),
		"eliminations", s.eliminationCount,
	)
}
