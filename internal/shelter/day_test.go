package shelter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedProvider always requests the same amount and takes no actions.
func fixedProvider(request int) DecisionProvider {
	return DecisionProviderFunc(func(ctx context.Context, view WorldView) (Decision, error) {
		return Decision{ResourceRequest: request}, nil
	})
}

func TestRunDayBasic(t *testing.T) {
	providers := map[string]DecisionProvider{
		"a": fixedProvider(100),
		"b": fixedProvider(100),
		"c": fixedProvider(100),
	}
	s := New(testConfig("a", "b", "c"), providers)

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Day)
	assert.Equal(t, map[string]int{"a": 100, "b": 100, "c": 100}, summary.ResourceRequests)
	assert.Equal(t, map[string]int{"a": 100, "b": 100, "c": 100}, summary.Allocations)
	assert.Equal(t, AllocDefault, summary.AllocationMethod)
	assert.Empty(t, summary.Eliminated)
	assert.Equal(t, 5000-300, summary.RemainingResources)
	assert.Equal(t, 2, s.Day(), "day advances after processing")

	for _, name := range []string{"a", "b", "c"} {
		a, ok := s.AgentState(name)
		require.True(t, ok)
		assert.Equal(t, 100, a.Health, "full allocation holds health")
		assert.Equal(t, 8, a.ActionPoints, "(100-20)/10 points from the allocation")
	}
}

func TestRunDayTokenAccounting(t *testing.T) {
	s := New(testConfig("a", "b"), map[string]DecisionProvider{
		"a": fixedProvider(20),
		"b": DecisionProviderFunc(func(ctx context.Context, view WorldView) (Decision, error) {
			return Decision{ResourceRequest: 20, TokensUsed: 777}, nil
		}),
	})

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)

	// a is charged the base cost, b its reported usage.
	assert.Equal(t, 1500+777, summary.TokensConsumed)
	assert.Equal(t, summary.TokensConsumed, summary.GlobalTokensConsumed)
	assert.Equal(t, 200000-summary.TokensConsumed, summary.TokenBudgetRemaining)
}

func TestRunDayProviderFailureFallsBack(t *testing.T) {
	s := New(testConfig("a", "b"), map[string]DecisionProvider{
		"a": fixedProvider(50),
		"b": DecisionProviderFunc(func(ctx context.Context, view WorldView) (Decision, error) {
			return Decision{}, errors.New("model unreachable")
		}),
	})

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err, "provider failure never fails the day")

	assert.Equal(t, 20, summary.ResourceRequests["b"], "fallback requests bare survival")

	warned := false
	for _, e := range summary.Events {
		if e.Type == EventWarning && e.Actor == "b" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunDayProviderPanicRecovered(t *testing.T) {
	s := New(testConfig("a"), map[string]DecisionProvider{
		"a": DecisionProviderFunc(func(ctx context.Context, view WorldView) (Decision, error) {
			panic("boom")
		}),
	})

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.ResourceRequests["a"])
}

func TestRunDayMissingProviderFallsBack(t *testing.T) {
	s := New(testConfig("a"), nil)

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.ResourceRequests["a"])
}

func TestRunDayRejectsConcurrent(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := New(testConfig("a"), map[string]DecisionProvider{
		"a": DecisionProviderFunc(func(ctx context.Context, view WorldView) (Decision, error) {
			close(started)
			<-release
			return Decision{ResourceRequest: 20}, nil
		}),
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.RunDay(context.Background())
		done <- err
	}()
	<-started

	_, err := s.RunDay(context.Background())
	assert.ErrorIs(t, err, ErrDayRunning, "second day is rejected, not queued")

	// State reads stay possible mid-day.
	live := s.LiveState()
	assert.True(t, live.Running)
	assert.Equal(t, "a", live.CurrentActing)

	close(release)
	require.NoError(t, <-done)
}

func TestRunDayReconciliationUnderRationing(t *testing.T) {
	cfg := testConfig("a", "b")
	cfg.TotalResources = 100
	s := New(cfg, map[string]DecisionProvider{
		"a": fixedProvider(100),
		"b": fixedProvider(100),
	})

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)

	// ratio 100/200 = 0.5
	assert.Equal(t, map[string]int{"a": 50, "b": 50}, summary.Allocations)

	a, _ := s.AgentState("a")
	assert.Equal(t, 3, a.ActionPoints,
		"points follow the actual allocation, not the request")
}

func TestRunDaySanitizesDoNothing(t *testing.T) {
	var executed []Action
	s := New(testConfig("a", "b"), map[string]DecisionProvider{
		"a": DecisionProviderFunc(func(ctx context.Context, view WorldView) (Decision, error) {
			return Decision{
				ResourceRequest: 100,
				Actions: []Action{
					{Type: ActionDoNothing},
					{Type: ActionCallMeeting, Content: "rationing plan"},
				},
			}, nil
		}),
		"b": fixedProvider(20),
	})

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)

	for _, e := range summary.Events {
		if e.Type == EventMeeting {
			executed = append(executed, Action{Type: ActionCallMeeting})
		}
	}
	assert.Len(t, executed, 1, "do_nothing is dropped, the real action runs")

	a, _ := s.AgentState("a")
	// 8 points from the request, meeting costs 5, allocation unchanged.
	assert.Equal(t, 3, a.ActionPoints)
}

func TestProposalLifecycleAcrossDays(t *testing.T) {
	decide := func(ctx context.Context, view WorldView) (Decision, error) {
		d := Decision{ResourceRequest: 100}
		switch view.Day {
		case 1:
			if view.Self.Name == "a" {
				d.Actions = []Action{{
					Type:         ActionPropose,
					ProposalType: ProposalEliminationVote,
					Content:      "c",
				}}
			}
		case 2:
			if view.Self.Name != "c" && len(view.ActiveProposals) > 0 {
				d.Actions = []Action{{
					Type:       ActionVote,
					ProposalID: view.ActiveProposals[0].ID,
					Support:    true,
				}}
			}
		}
		return d, nil
	}
	providers := map[string]DecisionProvider{
		"a": DecisionProviderFunc(decide),
		"b": DecisionProviderFunc(decide),
		"c": DecisionProviderFunc(decide),
	}
	s := New(testConfig("a", "b", "c"), providers)

	day1, err := s.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AllocDefault, day1.AllocationMethod,
		"a proposal cannot pass on its creation day")

	day2, err := s.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AllocVoteElimination, day2.AllocationMethod)
	assert.Empty(t, day2.Allocations["c"])

	c, _ := s.AgentState("c")
	assert.False(t, c.Alive)
	assert.Equal(t, 0, c.Health)

	snap := s.State()
	assert.InDelta(t, 0.95, snap.SystemEfficiency, 1e-9)
	assert.Equal(t, 1, snap.EliminationCount)
}

func TestRunDayNegativeRequestClamped(t *testing.T) {
	s := New(testConfig("a"), map[string]DecisionProvider{
		"a": fixedProvider(-50),
	})

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ResourceRequests["a"])
}

func TestRunDaySkipsDeadAgents(t *testing.T) {
	calls := make(map[string]int)
	decide := func(ctx context.Context, view WorldView) (Decision, error) {
		calls[view.Self.Name]++
		return Decision{ResourceRequest: 30}, nil
	}
	s := New(testConfig("a", "b"), map[string]DecisionProvider{
		"a": DecisionProviderFunc(decide),
		"b": DecisionProviderFunc(decide),
	})
	s.agents["b"].Alive = false
	s.agents["b"].Health = 0

	summary, err := s.RunDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls["a"])
	assert.Zero(t, calls["b"], "dead agents make no decisions")
	assert.NotContains(t, summary.Allocations, "b")
}
