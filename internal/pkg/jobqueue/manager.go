package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fundlink/fundlink/internal/pkg/database"
	"github.com/fundlink/fundlink/internal/pkg/env"
	"github.com/fundlink/fundlink/internal/pkg/partner"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue           *Queue
	svc             *partner.Service
	reconcileTicker *time.Ticker
	batchSyncTicker *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := envInt("JOBQUEUE_WORKERS", 5)
		svc := partner.NewServiceFromDB(database.GetDB())

		globalManager = &Manager{
			queue:  NewQueue(svc, workerCount),
			svc:    svc,
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// GetService returns the shared partner service the workers run against.
func (m *Manager) GetService() *partner.Service {
	return m.svc
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Periodic payment/payout reconciliation against the processor
	reconcileInterval := time.Duration(envInt("RECONCILE_INTERVAL_MINUTES", 60)) * time.Minute
	m.reconcileTicker = time.NewTicker(reconcileInterval)
	m.wg.Add(1)
	go m.reconcileWorker(reconcileInterval)

	// Periodic merchant status refresh with the platform credentials
	batchInterval := time.Duration(envInt("MERCHANT_SYNC_INTERVAL_MINUTES", 360)) * time.Minute
	m.batchSyncTicker = time.NewTicker(batchInterval)
	m.wg.Add(1)
	go m.batchSyncWorker(batchInterval)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.batchSyncTicker != nil {
		m.batchSyncTicker.Stop()
	}

	// Signal workers to stop. The channel stays non-nil so a late select
	// still observes the close; Start replaces it on the next cycle.
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// reconcileWorker periodically enqueues payment and payout reconciliation
// jobs for every onboarded merchant. Jobs rather than direct calls: the
// worker pool bounds the fan-out and a slow processor call cannot block the
// ticker.
func (m *Manager) reconcileWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started reconcile worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Reconcile worker stopping")
			return
		case <-m.reconcileTicker.C:
			if err := m.EnqueueReconciliation(); err != nil {
				log.Errorf("[JobQueue Manager] Reconcile enqueue error: %v", err)
			}
		}
	}
}

// batchSyncWorker periodically refreshes all merchant records from the
// processor with the platform credentials.
func (m *Manager) batchSyncWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started merchant batch sync worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Batch sync worker stopping")
			return
		case <-m.batchSyncTicker.C:
			report, err := m.svc.SyncAuthorizedMerchants(context.Background())
			if err != nil {
				log.Errorf("[JobQueue Manager] Merchant batch sync error: %v", err)
				continue
			}
			log.Infof("[JobQueue Manager] Merchant batch sync: synced=%d failed=%d", report.Synced, report.Failed)
		}
	}
}

// EnqueueReconciliation enqueues one payments and one payouts reconcile job
// per onboarded merchant, looking back over the configured window.
func (m *Manager) EnqueueReconciliation() error {
	merchants, err := m.svc.Repo().ListOnboardedMerchants()
	if err != nil {
		return err
	}

	window := time.Duration(envInt("RECONCILE_WINDOW_HOURS", 48)) * time.Hour
	since := time.Now().Add(-window)

	for _, merchant := range merchants {
		payload := ReconcileJobPayload{MerchantID: merchant.ID, Since: &since}
		if _, err := m.queue.EnqueueJob(JobTypePaymentsReconcile, payload.ToMap()); err != nil {
			return err
		}
		if _, err := m.queue.EnqueueJob(JobTypePayoutsReconcile, payload.ToMap()); err != nil {
			return err
		}
	}

	log.Infof("[JobQueue Manager] Enqueued reconciliation for %d merchants (window: %s)", len(merchants), window)
	return nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func envInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
