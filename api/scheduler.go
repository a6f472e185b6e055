/*
scheduler.go - Automated materialization scheduler

PURPOSE:
  Periodically materializes due recurring rules for every owner that has
  any. Keeps ledgers current without waiting for a client-triggered run.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Asks the store which owners have rules due as of today
  - Runs the engine's materialization per owner; materialization is
    idempotent, so overlapping with a client-triggered run is harmless
  - Per-owner errors are logged and skipped, never fatal

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMaterializationScheduler(eng)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Materialize endpoint (client-triggered run)
  - engine/materialize.go: The materialization loop itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/moneta/finance-engine/engine"
)

// MaterializationScheduler handles automated recurring-rule materialization.
type MaterializationScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaterializationScheduler creates a new scheduler.
func NewMaterializationScheduler(eng *engine.Engine) *MaterializationScheduler {
	return &MaterializationScheduler{
		Engine:        eng,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ms *MaterializationScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.wg.Add(1)

	go ms.run()

	log.Printf("[Scheduler] Started with check interval: %v", ms.CheckInterval)
}

// Stop stops the scheduler.
func (ms *MaterializationScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		close(ms.stop)
		ms.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ms *MaterializationScheduler) run() {
	defer ms.wg.Done()

	// Run immediately on start
	ms.checkAndProcess()

	for {
		select {
		case <-ms.ticker.C:
			ms.checkAndProcess()
		case <-ms.stop:
			return
		}
	}
}

func (ms *MaterializationScheduler) checkAndProcess() {
	ctx := context.Background()
	today := ms.Engine.Now()

	owners, err := ms.Engine.Store.DueRuleOwners(ctx, today)
	if err != nil {
		log.Printf("[Scheduler] Error listing owners with due rules: %v", err)
		return
	}
	if len(owners) == 0 {
		return
	}

	log.Printf("[Scheduler] Materializing %d owner(s) as of %s", len(owners), today)

	generated := 0
	for _, owner := range owners {
		summary, err := ms.Engine.Materialize(ctx, owner, today)
		if err != nil {
			log.Printf("[Scheduler] Error materializing owner %s: %v", owner, err)
			continue
		}
		generated += summary.TransactionsGenerated
	}

	if generated > 0 {
		log.Printf("[Scheduler] Completed: %d transaction(s) generated", generated)
	}
}
