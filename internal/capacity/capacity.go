// Package capacity implements the rolling token-budget monitor: it samples
// each agent's recent consumption, classifies it into a zone, forecasts
// time-to-exhaustion, and publishes a capacity.updated event on every
// sample, plus a capacity.zone_changed event when the zone itself moved.
package capacity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentmemory/backend/internal/bus"
	"github.com/agentmemory/backend/internal/store"
	"github.com/agentmemory/backend/pkg/protocol"
)

// Zone thresholds, as a fraction of an agent's configured max budget.
const (
	redThreshold    = 0.90
	orangeThreshold = 0.75
	yellowThreshold = 0.50
)

// sampleWindow is how far back SumSince looks when computing a
// consumption rate.
const sampleWindow = 15 * time.Minute

// pollInterval is how often Run re-samples every known agent.
const pollInterval = 30 * time.Second

// Monitor is the Capacity component.
type Monitor struct {
	capacity store.CapacityStore
	tokens   store.TokenConsumptionStore
	notify   store.Notifier
	pub      bus.Publisher

	maxBudget int64 // default per-agent token budget used for zone classification
}

// New constructs a Monitor over the given stores with a fixed 200,000-token
// per-agent budget; every agent is classified against this ceiling, with no
// per-agent override.
func New(capacity store.CapacityStore, tokens store.TokenConsumptionStore, notify store.Notifier, pub bus.Publisher) *Monitor {
	return &Monitor{capacity: capacity, tokens: tokens, notify: notify, pub: pub, maxBudget: 200_000}
}

// classify maps a usage fraction to a zone name.
func classify(fraction float64) string {
	switch {
	case fraction >= redThreshold:
		return store.ZoneRed
	case fraction >= orangeThreshold:
		return store.ZoneOrange
	case fraction >= yellowThreshold:
		return store.ZoneYellow
	default:
		return store.ZoneGreen
	}
}

// Sample recomputes agentID's rolling usage and persists the updated
// aggregate, publishing capacity.updated always and capacity.zone_changed
// additionally when the zone differs from what was previously stored.
func (m *Monitor) Sample(ctx context.Context, agentID string) (*store.AgentCapacityData, error) {
	since := time.Now().Add(-sampleWindow)
	input, output, err := m.tokens.SumSince(ctx, agentID, since)
	if err != nil {
		return nil, fmt.Errorf("sum token consumption: %w", err)
	}
	usage := input + output

	prev, err := m.capacity.Get(ctx, agentID)
	prevZone := ""
	if err == nil {
		prevZone = prev.Zone
	} else if err != store.ErrNotFound {
		return nil, fmt.Errorf("load prior capacity: %w", err)
	}

	fraction := float64(usage) / float64(m.maxBudget)
	rate := float64(usage) / sampleWindow.Minutes() // tokens/minute over the sample window

	var predicted *float64
	if rate > 0 && fraction < 1 {
		remaining := float64(m.maxBudget) - float64(usage)
		mins := remaining / rate
		predicted = &mins
	}

	zone := classify(fraction)

	agg := &store.AgentCapacityData{
		AgentID:              agentID,
		CurrentUsage:         usage,
		ConsumptionRate:      rate,
		PredictedExhaustMins: predicted,
		Zone:                 zone,
		UpdatedAt:            time.Now(),
	}
	if prev != nil {
		agg.LastCompactAt = prev.LastCompactAt
		agg.CompactCount = prev.CompactCount
	}

	if err := m.capacity.Upsert(ctx, agg); err != nil {
		return nil, fmt.Errorf("persist capacity: %w", err)
	}

	m.publish(ctx, protocol.EventCapacityUpdated, agg)
	if prevZone != "" && prevZone != zone {
		m.publish(ctx, protocol.EventCapacityZoneChanged, map[string]any{
			"agent_id":  agentID,
			"from_zone": prevZone,
			"to_zone":   zone,
		})
	}

	return agg, nil
}

// NoteCompact records that agentID just compacted by stamping LastCompactAt
// and incrementing CompactCount, which the agent's next Sample carries forward.
func (m *Monitor) NoteCompact(ctx context.Context, agentID string) error {
	agg, err := m.capacity.Get(ctx, agentID)
	if err == store.ErrNotFound {
		now := time.Now()
		agg = &store.AgentCapacityData{AgentID: agentID, Zone: store.ZoneGreen, LastCompactAt: &now, CompactCount: 1, UpdatedAt: now}
		return m.capacity.Upsert(ctx, agg)
	}
	if err != nil {
		return fmt.Errorf("load capacity: %w", err)
	}
	now := time.Now()
	agg.LastCompactAt = &now
	agg.CompactCount++
	agg.UpdatedAt = now
	if err := m.capacity.Upsert(ctx, agg); err != nil {
		return fmt.Errorf("persist capacity after compact: %w", err)
	}
	return nil
}

// All returns the current capacity snapshot for every tracked agent.
func (m *Monitor) All(ctx context.Context) ([]*store.AgentCapacityData, error) {
	agents, err := m.capacity.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list capacity: %w", err)
	}
	return agents, nil
}

// Run periodically re-samples every agent with a stored capacity row,
// keeping zone classifications fresh even when no tool call happens to
// trigger a Sample. It blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agents, err := m.capacity.All(ctx)
			if err != nil {
				slog.Warn("capacity: list agents failed", "error", err)
				continue
			}
			for _, a := range agents {
				if _, err := m.Sample(ctx, a.AgentID); err != nil {
					slog.Warn("capacity: sample failed", "agent_id", a.AgentID, "error", err)
				}
			}
		}
	}
}

func (m *Monitor) publish(ctx context.Context, event string, payload any) {
	if m.pub != nil {
		m.pub.Broadcast(bus.Event{Name: event, Payload: payload})
	}
	if m.notify != nil {
		if err := m.notify.Publish(ctx, event, payload); err != nil {
			slog.Warn("capacity: publish failed", "event", event, "error", err)
		}
	}
}
