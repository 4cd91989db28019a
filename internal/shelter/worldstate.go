package shelter

// World-state projection: the per-agent observation handed to the decision
// provider, and the full snapshot exposed to external callers. Projections
// are copies; holding one never aliases engine state.

// SelfView is the observing agent's own status.
type SelfView struct {
	Name          string `json:"name"`
	Health        int    `json:"health"`
	Alive         bool   `json:"alive"`
	ActionPoints  int    `json:"current_action_points"`
	LastRequest   int    `json:"last_request"`
	LastAllocated int    `json:"last_allocated"`
	MemoryCount   int    `json:"memory_count"`
	TokensToday   int    `json:"token_consumed_today"`
}

// ProposalView is a pending proposal with live tallies.
type ProposalView struct {
	ID         string       `json:"id"`
	Proposer   string       `json:"proposer"`
	Type       ProposalType `json:"type"`
	Content    string       `json:"content"`
	Day        int          `json:"proposal_day"`
	Supporters []string     `json:"supporters"`
	Opposers   []string     `json:"opposers"`
	Votable    bool         `json:"votable"`
}

// CostView tells the agent what decisions and actions cost.
type CostView struct {
	BaseDecisionCost     int     `json:"base_decision_cost"`
	TokensPerActionPoint int     `json:"token_per_action_point"`
	Propose              int     `json:"propose"`
	Vote                 int     `json:"vote"`
	PrivateMessage       int     `json:"private_message"`
	CallMeeting          int     `json:"call_meeting"`
	EfficiencyDecay      float64 `json:"efficiency_decay"`
	MinEfficiency        float64 `json:"min_efficiency"`
}

// WorldView is everything one agent is allowed to observe. It is the only
// channel of information into the decision provider.
type WorldView struct {
	Day                   int            `json:"day"`
	RemainingResources    int            `json:"remaining_resources"`
	TotalResources        int            `json:"total_resources"`
	AliveAgents           []string       `json:"alive_agents"`
	AliveCount            int            `json:"alive_count"`
	Self                  SelfView       `json:"my_state"`
	RecentEvents          []Event        `json:"recent_events"`
	ActiveProposals       []ProposalView `json:"active_proposals"`
	AllocationMethod      string         `json:"allocation_method"`
	SystemEfficiency      float64        `json:"system_efficiency"`
	EliminationCount      int            `json:"elimination_count"`
	GlobalTokensConsumed  int            `json:"global_token_consumed"`
	TotalSimulationBudget int            `json:"total_simulation_budget"`
	TokenBudgetRemaining  int            `json:"token_budget_remaining"`
	SurvivalCost          int            `json:"survival_cost"`
	Costs                 CostView       `json:"token_config"`
}

// WorldViewFor builds the read-only observation for one agent.
func (s *Shelter) WorldViewFor(name string) WorldView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.worldViewLocked(name)
}

func (s *Shelter) worldViewLocked(name string) WorldView {
	a := s.agents[name]

	view := WorldView{
		Day:                   s.day,
		RemainingResources:    s.remainingResources,
		TotalResources:        s.cfg.TotalResources,
		AliveAgents:           s.aliveNames(),
		AllocationMethod:      s.allocationMethod,
		SystemEfficiency:      s.systemEfficiency,
		EliminationCount:      s.eliminationCount,
		GlobalTokensConsumed:  s.globalTokens,
		TotalSimulationBudget: s.cfg.TotalSimulationBudget,
		SurvivalCost:          s.cfg.SurvivalCostBase,
		Costs: CostView{
			BaseDecisionCost:     s.cfg.BaseDecisionCost,
			TokensPerActionPoint: s.cfg.TokensPerActionPoint,
			Propose:              s.cfg.ActionCosts.Propose,
			Vote:                 s.cfg.ActionCosts.Vote,
			PrivateMessage:       s.cfg.ActionCosts.PrivateMessage,
			CallMeeting:          s.cfg.ActionCosts.CallMeeting,
			EfficiencyDecay:      s.cfg.EfficiencyDecay,
			MinEfficiency:        s.cfg.MinEfficiency,
		},
	}
	view.AliveCount = len(view.AliveAgents)
	if remaining := s.cfg.TotalSimulationBudget - s.globalTokens; remaining > 0 {
		view.TokenBudgetRemaining = remaining
	}

	if a != nil {
		view.Self = SelfView{
			Name:          a.Name,
			Health:        a.Health,
			Alive:         a.Alive,
			ActionPoints:  a.ActionPoints,
			LastRequest:   a.LastRequest,
			LastAllocated: s.lastAllocated(name),
			MemoryCount:   len(a.Memory),
			TokensToday:   a.TokensToday,
		}
		view.RecentEvents = s.recentEvents(a)
	}

	view.ActiveProposals = s.pendingProposalViews()
	return view
}

// recentEvents copies the agent's bounded recall window.
func (s *Shelter) recentEvents(a *Agent) []Event {
	n := s.cfg.MemoryLength
	if n <= 0 || n > len(a.Memory) {
		n = len(a.Memory)
	}
	window := a.Memory[len(a.Memory)-n:]
	out := make([]Event, len(window))
	copy(out, window)
	return out
}

// pendingProposalViews projects the pending pool with live tallies, in
// creation order.
func (s *Shelter) pendingProposalViews() []ProposalView {
	var views []ProposalView
	for _, p := range s.proposals {
		if p.Status != StatusPending {
			continue
		}
		views = append(views, ProposalView{
			ID:         p.ID,
			Proposer:   p.Proposer,
			Type:       p.Type,
			Content:    p.Content,
			Day:        p.Day,
			Supporters: append([]string(nil), p.Supporters...),
			Opposers:   append([]string(nil), p.Opposers...),
			Votable:    p.Votable(s.day),
		})
	}
	return views
}

// AgentStatus is the externally visible state of one agent.
type AgentStatus struct {
	Name         string `json:"name"`
	Health       int    `json:"health"`
	Alive        bool   `json:"alive"`
	ActionPoints int    `json:"action_points"`
	LastRequest  int    `json:"last_request"`
	TokensToday  int    `json:"token_consumed_today"`
	MemoryCount  int    `json:"memory_count"`
}

// Snapshot is the full system state for external observers.
type Snapshot struct {
	Day                   int            `json:"day"`
	RemainingResources    int            `json:"remaining_resources"`
	TotalResources        int            `json:"total_resources"`
	SystemEfficiency      float64        `json:"system_efficiency"`
	EliminationCount      int            `json:"elimination_count"`
	AllocationMethod      string         `json:"allocation_method"`
	GlobalTokensConsumed  int            `json:"global_token_consumed"`
	TotalSimulationBudget int            `json:"total_simulation_budget"`
	Agents                []AgentStatus  `json:"agents"`
	Proposals             []ProposalView `json:"proposals"`
}

// State returns the full snapshot. Safe to call at any time; two calls
// without an intervening RunDay return identical data.
func (s *Shelter) State() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Day:                   s.day,
		RemainingResources:    s.remainingResources,
		TotalResources:        s.cfg.TotalResources,
		SystemEfficiency:      s.systemEfficiency,
		EliminationCount:      s.eliminationCount,
		AllocationMethod:      s.allocationMethod,
		GlobalTokensConsumed:  s.globalTokens,
		TotalSimulationBudget: s.cfg.TotalSimulationBudget,
	}
	for _, name := range s.order {
		a := s.agents[name]
		snap.Agents = append(snap.Agents, AgentStatus{
			Name:         a.Name,
			Health:       a.Health,
			Alive:        a.Alive,
			ActionPoints: a.ActionPoints,
			LastRequest:  a.LastRequest,
			TokensToday:  a.TokensToday,
			MemoryCount:  len(a.Memory),
		})
	}
	for _, p := range s.proposals {
		snap.Proposals = append(snap.Proposals, ProposalView{
			ID:         p.ID,
			Proposer:   p.Proposer,
			Type:       p.Type,
			Content:    p.Content,
			Day:        p.Day,
			Supporters: append([]string(nil), p.Supporters...),
			Opposers:   append([]string(nil), p.Opposers...),
			Votable:    p.Votable(s.day),
		})
	}
	return snap
}

// AgentView is the detailed external projection of one agent.
type AgentView struct {
	AgentStatus
	LastAllocated int     `json:"last_allocated"`
	Memory        []Event `json:"memory"`
}

// AgentState returns the detailed view of one agent, or false if unknown.
func (s *Shelter) AgentState(name string) (AgentView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[name]
	if !ok {
		return AgentView{}, false
	}
	return AgentView{
		AgentStatus: AgentStatus{
			Name:         a.Name,
			Health:       a.Health,
			Alive:        a.Alive,
			ActionPoints: a.ActionPoints,
			LastRequest:  a.LastRequest,
			TokensToday:  a.TokensToday,
			MemoryCount:  len(a.Memory),
		},
		LastAllocated: s.lastAllocated(name),
		Memory:        s.recentEvents(a),
	}, true
}

// LiveView is the best-effort mid-day view for pollers. Non-authoritative:
// simulation results must never be derived from it.
type LiveView struct {
	Day           int                 `json:"day"`
	Running       bool                `json:"running"`
	CurrentActing string              `json:"current_acting_agent"`
	Phases        map[string]string   `json:"phases"`
	Thinking      map[string]string   `json:"thinking"`
	Requests      map[string]int      `json:"resource_requests"`
	Actions       map[string][]Action `json:"actions"`
}

// LiveState returns the in-progress day view.
func (s *Shelter) LiveState() LiveView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := LiveView{
		Day:           s.day,
		Running:       s.running.Load(),
		CurrentActing: s.live.CurrentActing,
		Phases:        make(map[string]string, len(s.live.Phases)),
		Thinking:      make(map[string]string, len(s.live.Thinking)),
		Requests:      make(map[string]int, len(s.live.Requests)),
		Actions:       make(map[string][]Action, len(s.live.Actions)),
	}
	for k, v := range s.live.Phases {
		view.Phases[k] = v
	}
	for k, v := range s.live.Thinking {
		view.Thinking[k] = v
	}
	for k, v := range s.live.Requests {
		view.Requests[k] = v
	}
	for k, v := range s.live.Actions {
		view.Actions[k] = append([]Action(nil), v...)
	}
	return view
}
