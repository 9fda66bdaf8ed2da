/*
scheduler.go - Periodic sync trigger

PURPOSE:
  Runs MaybeSync on a timer so the ledger converges even when no change
  notification arrives (missed Kafka messages, records created while the
  service was down). The coordinator's own guards make over-triggering
  harmless, so the ticker just fires and lets the cooldown decide.

CONFIGURATION:
  - CheckInterval: How often to trigger (default: 5 minutes)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(handler.Coordinator)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - notify/: Event-driven trigger via Kafka
  - ledger/sync.go: Guard logic
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// SyncScheduler triggers periodic reconciliation passes.
type SyncScheduler struct {
	Coordinator   *ledger.Coordinator
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(coordinator *ledger.Coordinator) *SyncScheduler {
	return &SyncScheduler{
		Coordinator:   coordinator,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SyncScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SyncScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SyncScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start so a cold service converges right away.
	ss.trigger()

	for {
		select {
		case <-ss.ticker.C:
			ss.trigger()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SyncScheduler) trigger() {
	report, err := ss.Coordinator.MaybeSync(context.Background())
	if err != nil {
		log.Printf("[Scheduler] sync pass: %v", err)
		return
	}
	if report.Ran && report.TotalCreated() > 0 {
		log.Printf("[Scheduler] created %d entries", report.TotalCreated())
	}
}
