package background

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"gatekit/internal/caching"
	"gatekit/internal/repositories"
	"gatekit/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// subscriptionWarmTTL matches the read-through TTL used on the request
// path so warmed entries age out on the same schedule.
const subscriptionWarmTTL = 5 * time.Minute

// JobScheduler owns the recurring maintenance jobs: audit archival and
// subscription cache warming.
type JobScheduler struct {
	scheduler        gocron.Scheduler
	archiveSvc       services.ArchiveService
	cacheSvc         caching.CacheService
	tenantRepo       repositories.TenantRepository
	subscriptionRepo repositories.ModuleSubscriptionRepository
	auditRetention   time.Duration
	archiveBatch     int
	jobJobs          map[string]gocron.Job
	mu               sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(archiveSvc services.ArchiveService, cacheSvc caching.CacheService,
	tenantRepo repositories.TenantRepository, subscriptionRepo repositories.ModuleSubscriptionRepository,
	auditRetention time.Duration, archiveBatch int) *JobScheduler {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:        scheduler,
		archiveSvc:       archiveSvc,
		cacheSvc:         cacheSvc,
		tenantRepo:       tenantRepo,
		subscriptionRepo: subscriptionRepo,
		auditRetention:   auditRetention,
		archiveBatch:     archiveBatch,
		jobJobs:          make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	// Audit archival job - every hour
	archiveJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.archiveAuditLogs, context.Background()),
		gocron.WithName("audit-archival"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create audit archival job: %v", err)
	} else {
		js.jobJobs["audit-archival"] = archiveJob
	}

	// Subscription cache warm job - every 30 minutes
	warmJob, err := js.scheduler.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(js.warmSubscriptionCache, context.Background()),
		gocron.WithName("subscription-cache-warm"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create subscription cache warm job: %v", err)
	} else {
		js.jobJobs["subscription-cache-warm"] = warmJob
	}

	log.Printf("Registered %d background jobs", len(js.jobJobs))
}

// archiveAuditLogs exports aged audit entries to object storage in
// batches until no unarchived entries older than the cutoff remain.
func (js *JobScheduler) archiveAuditLogs(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-js.auditRetention)
	log.Printf("Starting audit archival for entries before %s", cutoff.Format(time.RFC3339))

	total := 0
	for {
		n, err := js.archiveSvc.ArchiveBefore(ctx, cutoff, js.archiveBatch)
		total += n
		if err != nil {
			log.Printf("Audit archival stopped after %d entries: %v", total, err)
			return err
		}
		if n < js.archiveBatch {
			break
		}
	}

	log.Printf("Completed audit archival, exported %d entries", total)
	return nil
}

// warmSubscriptionCache refreshes cached subscription statuses for all
// resolvable tenants so the access path rarely misses.
func (js *JobScheduler) warmSubscriptionCache(ctx context.Context) error {
	log.Printf("Starting subscription cache warm")

	tenants, err := js.tenantRepo.List(ctx, 1000, 0)
	if err != nil {
		log.Printf("Failed to get tenants for subscription cache warm: %v", err)
		return err
	}

	semaphore := make(chan struct{}, 5)
	var wg sync.WaitGroup

	warmed := 0
	for _, tenant := range tenants {
		if !tenant.Resolvable() {
			continue
		}
		warmed++

		wg.Add(1)
		go func(tenantID uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			subscriptions, err := js.subscriptionRepo.ListByTenant(ctx, tenantID)
			if err != nil {
				log.Printf("Failed to list subscriptions for tenant %s: %v", tenantID.String(), err)
				return
			}
			for _, sub := range subscriptions {
				if err := js.cacheSvc.SetSubscriptionStatus(ctx, tenantID, sub.ModuleCode, sub.Status, subscriptionWarmTTL); err != nil {
					log.Printf("Failed to cache subscription %s for tenant %s: %v", sub.ModuleCode, tenantID.String(), err)
				}
			}
		}(tenant.ID)
	}

	wg.Wait()
	log.Printf("Completed subscription cache warm for %d tenants", warmed)
	return nil
}

// ErrUnknownJob reports a trigger request for a job name that was never
// registered.
var ErrUnknownJob = errors.New("unknown job")

// JobStatus is the introspection view of one registered job.
type JobStatus struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run"`
	NextRun time.Time `json:"next_run"`
}

// Status reports every registered job with its run times, ordered by name.
func (js *JobScheduler) Status() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(js.jobJobs))
	for name, job := range js.jobJobs {
		status := JobStatus{Name: name}
		if last, err := job.LastRun(); err == nil {
			status.LastRun = last
		}
		if next, err := job.NextRun(); err == nil {
			status.NextRun = next
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// RunNow triggers a registered job outside its schedule. The regular run
// schedule is unaffected.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, exists := js.jobJobs[name]
	js.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	log.Printf("Triggering job %s outside its schedule", name)
	return job.RunNow()
}
