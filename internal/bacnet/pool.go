package bacnet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Strategy selects which wrapper serves the next operation.
type Strategy string

const (
	StrategyRoundRobin    Strategy = "round_robin"
	StrategyLeastBusy     Strategy = "least_busy"
	StrategyFirstAvailable Strategy = "first_available"
)

// WrapperUtilization is one entry of Pool.Utilization's report.
type WrapperUtilization struct {
	ActiveOperations int
	IsBusy           bool
	IP               string
	Port             int
	Strategy         Strategy
}

// Pool owns a set of Wrapper instances and selects one per operation by
// the active Strategy. Selection is non-blocking: it may
// briefly acquire each wrapper's internal lock to read its active-op
// counter, but never waits on an operation to complete.
type Pool struct {
	mu       sync.RWMutex
	wrappers []*Wrapper
	byID     map[string]*Wrapper
	strategy Strategy
	rrIndex  int

	// whoisGroup coalesces concurrent Who-Is calls for the same address
	// across goroutines issuing discovery concurrently, avoiding redundant
	// broadcast storms on a busy subnet.
	whoisGroup singleflight.Group
}

// NewPool constructs an empty pool with the given default strategy.
func NewPool(strategy Strategy) *Pool {
	if strategy == "" {
		strategy = StrategyRoundRobin
	}
	return &Pool{strategy: strategy, byID: make(map[string]*Wrapper)}
}

// Initialize (re)builds the pool from a reader configuration list. It is
// idempotent: any prior pool is torn down (wrappers disconnected) before
// the new set is built. Inactive entries are filtered out; two active
// entries sharing (IP, port) are a configuration error — the first wins
// and subsequent duplicates are rejected.
func (p *Pool) Initialize(ctx context.Context, configs []ReaderConfig, newClient NewClientFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleanupLocked()

	seen := make(map[string]string) // endpointKey -> reader id
	wrappers := make([]*Wrapper, 0, len(configs))
	byID := make(map[string]*Wrapper, len(configs))

	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}
		key := cfg.endpointKey()
		if existingID, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s (already claimed by reader %s)", ErrDuplicateEndpoint, key, existingID)
		}
		seen[key] = cfg.ID

		w := NewWrapper(cfg, newClient(cfg))
		wrappers = append(wrappers, w)
		byID[cfg.ID] = w
	}

	p.wrappers = wrappers
	p.byID = byID
	p.rrIndex = 0
	return nil
}

// cleanupLocked disconnects every wrapper currently in the pool. Caller
// must hold p.mu.
func (p *Pool) cleanupLocked() {
	for _, w := range p.wrappers {
		_ = w.Disconnect()
	}
	p.wrappers = nil
	p.byID = make(map[string]*Wrapper)
}

// Cleanup tears down the pool, disconnecting every wrapper.
func (p *Pool) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanupLocked()
}

// GetAll returns every wrapper currently in the pool, in declared order.
func (p *Pool) GetAll() []*Wrapper {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Wrapper, len(p.wrappers))
	copy(out, p.wrappers)
	return out
}

// SetStrategy changes the active selection strategy. The round-robin
// index is reset, ("reset on strategy change").
func (p *Pool) SetStrategy(s Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy = s
	p.rrIndex = 0
}

// Strategy returns the active selection strategy.
func (p *Pool) Strategy() Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strategy
}

// GetForOperation returns a wrapper chosen by the active strategy, or nil
// if the pool is empty.
func (p *Pool) GetForOperation() *Wrapper {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.wrappers) == 0 {
		return nil
	}

	switch p.strategy {
	case StrategyLeastBusy:
		return p.leastBusyLocked()
	case StrategyFirstAvailable:
		return p.wrappers[0]
	case StrategyRoundRobin:
		fallthrough
	default:
		return p.roundRobinLocked()
	}
}

func (p *Pool) roundRobinLocked() *Wrapper {
	if p.rrIndex >= len(p.wrappers) {
		p.rrIndex = 0
	}
	w := p.wrappers[p.rrIndex]
	p.rrIndex++
	return w
}

func (p *Pool) leastBusyLocked() *Wrapper {
	best := p.wrappers[0]
	bestLoad := best.ActiveOperations()
	for _, w := range p.wrappers[1:] {
		load := w.ActiveOperations()
		if load < bestLoad {
			best = w
			bestLoad = load
		}
	}
	return best
}

// Utilization reports, per wrapper id, its current load and endpoint —
// used by Monitor to log pool state before/after each cycle.
func (p *Pool) Utilization() map[string]WrapperUtilization {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]WrapperUtilization, len(p.wrappers))
	for _, w := range p.wrappers {
		active := w.ActiveOperations()
		out[w.ID()] = WrapperUtilization{
			ActiveOperations: active,
			IsBusy:           active > 0,
			IP:               w.Config().BindIP,
			Port:             w.Config().Port,
			Strategy:         p.strategy,
		}
	}
	return out
}

// SortedIDs returns wrapper ids sorted lexically, convenient for
// deterministic test assertions and log output.
func (p *Pool) SortedIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.wrappers))
	for _, w := range p.wrappers {
		ids = append(ids, w.ID())
	}
	sort.Strings(ids)
	return ids
}

// WhoIs coalesces concurrent identical Who-Is calls via singleflight,
// then fans the (possibly shared) result out to every caller. Picks the
// wrapper through GetForOperation (the pool's active strategy), since
// discovery is a pool-wide operation rather than a per-controller one.
func (p *Pool) WhoIs(ctx context.Context, address string) ([]uint32, error) {
	w := p.GetForOperation()
	if w == nil {
		return nil, ErrNoWrapperAvailable
	}

	v, err, _ := p.whoisGroup.Do(address, func() (any, error) {
		return w.WhoIs(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return v.([]uint32), nil
}
