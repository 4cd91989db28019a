package shelter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/shelter/internal/config"
)

func testConfig(names ...string) config.Config {
	cfg := config.Default()
	cfg.Agents = nil
	for _, n := range names {
		cfg.Agents = append(cfg.Agents, config.AgentConfig{Name: n})
	}
	return cfg
}

func TestAPFromResources(t *testing.T) {
	s := New(testConfig("a"), nil)
	// survival cost 20, one point per 10 above it
	cases := []struct {
		amount, want int
	}{
		{0, 0},
		{19, 0},
		{20, 0},
		{29, 0},
		{30, 1},
		{100, 8},
		{125, 10},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, s.apFromResources(c.amount), "amount %d", c.amount)
	}
}

func TestStrictAllocationFullRequests(t *testing.T) {
	s := New(testConfig("a", "b", "c"), nil)
	requests := map[string]int{"a": 100, "b": 150, "c": 50}

	var events []Event
	got := s.strictAllocation(requests, s.effectiveSupply(), s.aliveNames(), &events)

	assert.Equal(t, requests, got)
	assert.Empty(t, events, "no rationing event when supply covers requests")
}

func TestStrictAllocationRationed(t *testing.T) {
	s := New(testConfig("a", "b"), nil)
	s.remainingResources = 300
	requests := map[string]int{"a": 200, "b": 200}

	var events []Event
	got := s.strictAllocation(requests, s.effectiveSupply(), s.aliveNames(), &events)

	// ratio 300/400 = 0.75, truncated per agent
	assert.Equal(t, map[string]int{"a": 150, "b": 150}, got)
	require.Len(t, events, 1)
	assert.Equal(t, EventAllocation, events[0].Type)
}

func TestStrictAllocationNeverExceedsSupply(t *testing.T) {
	s := New(testConfig("a", "b", "c"), nil)
	s.remainingResources = 100
	s.systemEfficiency = 0.85
	requests := map[string]int{"a": 77, "b": 131, "c": 19}

	var events []Event
	got := s.strictAllocation(requests, s.effectiveSupply(), s.aliveNames(), &events)

	sum := 0
	for _, v := range got {
		sum += v
	}
	assert.LessOrEqual(t, sum, s.effectiveSupply())
}

func TestStrictAllocationZeroRequests(t *testing.T) {
	s := New(testConfig("a", "b"), nil)
	requests := map[string]int{"a": 0, "b": 0}

	var events []Event
	got := s.strictAllocation(requests, s.effectiveSupply(), s.aliveNames(), &events)

	assert.Equal(t, map[string]int{"a": 0, "b": 0}, got)
}

func TestEffectiveSupplyEfficiencyPenalty(t *testing.T) {
	s := New(testConfig("a"), nil)
	s.remainingResources = 1000

	assert.Equal(t, 1000, s.effectiveSupply())
	s.systemEfficiency = 0.95
	assert.Equal(t, 950, s.effectiveSupply())
	s.systemEfficiency = 0.5
	assert.Equal(t, 500, s.effectiveSupply())
}

func TestApplyAllocationsHealth(t *testing.T) {
	s := New(testConfig("full", "short", "starved"), nil)
	s.agents["starved"].Health = 10

	s.applyAllocations(map[string]int{"full": 20, "short": 15, "starved": 0})

	assert.Equal(t, 100, s.agents["full"].Health, "meeting survival cost holds health")
	assert.Equal(t, 95, s.agents["short"].Health, "shortfall of 5 costs 5 health")
	assert.Equal(t, 0, s.agents["starved"].Health, "health clamps at zero")
}

func TestApplyAllocationsHealthNeverRises(t *testing.T) {
	s := New(testConfig("a"), nil)
	s.agents["a"].Health = 40

	s.applyAllocations(map[string]int{"a": 500})

	assert.Equal(t, 40, s.agents["a"].Health)
}

func TestCheckEliminationDecaysEfficiency(t *testing.T) {
	s := New(testConfig("a", "b", "c"), nil)
	s.agents["a"].Health = 0
	s.agents["b"].Health = 0

	var events []Event
	eliminated := s.checkElimination(&events)

	assert.ElementsMatch(t, []string{"a", "b"}, eliminated)
	assert.False(t, s.agents["a"].Alive)
	assert.False(t, s.agents["b"].Alive)
	assert.Equal(t, 2, s.eliminationCount)
	assert.InDelta(t, 0.90, s.systemEfficiency, 1e-9, "one decay per death")
}

func TestEfficiencyDecayFloor(t *testing.T) {
	s := New(testConfig("a"), nil)
	var events []Event
	for i := 0; i < 20; i++ {
		s.decayEfficiency(&events)
	}
	assert.Equal(t, s.cfg.MinEfficiency, s.systemEfficiency)
}

func TestAllocateEliminationVote(t *testing.T) {
	s := New(testConfig("a", "b", "c"), nil)
	approved := &Proposal{
		ID:      "1_a_0",
		Type:    ProposalEliminationVote,
		Content: "c",
		Status:  StatusApproved,
	}
	requests := map[string]int{"a": 30, "b": 30, "c": 30}

	var events []Event
	got := s.allocateResources(requests, approved, &events)

	assert.False(t, s.agents["c"].Alive)
	assert.Equal(t, 0, s.agents["c"].Health)
	assert.InDelta(t, 0.95, s.systemEfficiency, 1e-9)
	assert.Equal(t, AllocVoteElimination, s.allocationMethod)
	assert.NotContains(t, got, "c", "eliminated target drops out of allocation")
	assert.Equal(t, 30, got["a"])
	assert.Equal(t, 30, got["b"])
}

func TestAllocateAppealRevival(t *testing.T) {
	s := New(testConfig("a", "b", "c"), nil)
	s.agents["c"].Alive = false
	s.agents["c"].Health = 0
	approved := &Proposal{
		ID:      "2_a_0",
		Type:    ProposalAppeal,
		Content: "c",
		Status:  StatusApproved,
	}
	requests := map[string]int{"a": 30, "b": 30}

	var events []Event
	got := s.allocateResources(requests, approved, &events)

	assert.True(t, s.agents["c"].Alive)
	assert.Equal(t, 50, s.agents["c"].Health)
	assert.Equal(t, AllocAppealRevival, s.allocationMethod)
	assert.Contains(t, got, "c", "revived agent rejoins allocation")
}

func TestAllocateByProposal(t *testing.T) {
	s := New(testConfig("a", "b", "c"), nil)
	approved := &Proposal{
		ID:      "1_a_0",
		Type:    ProposalResourceAllocation,
		Content: "a:100, b:80",
		Status:  StatusApproved,
	}
	requests := map[string]int{"a": 10, "b": 10, "c": 10}

	var events []Event
	got := s.allocateResources(requests, approved, &events)

	assert.Equal(t, map[string]int{"a": 100, "b": 80, "c": 0}, got,
		"proposal is literal; unnamed agents get nothing")
	assert.Equal(t, AllocProposal, s.allocationMethod)
}

func TestAllocateByMalformedProposal(t *testing.T) {
	s := New(testConfig("a", "b"), nil)
	approved := &Proposal{
		ID:      "1_a_0",
		Type:    ProposalResourceAllocation,
		Content: "a:100, garbage, b:-5",
		Status:  StatusApproved,
	}
	requests := map[string]int{"a": 10, "b": 10}

	var events []Event
	got := s.allocateResources(requests, approved, &events)

	assert.Equal(t, 100, got["a"], "valid entries still apply")
	assert.Equal(t, 0, got["b"])

	warned := false
	for _, e := range events {
		if e.Type == EventWarning {
			warned = true
		}
	}
	assert.True(t, warned, "malformed segments surface as a warning event")
}
