package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Redis key prefixes
const (
	queuePrefix    = "queue:"
	coalescePrefix = "coalesce:"
)

// Job represents a background job. The row is the source of truth; Redis
// only carries the job ID to a worker.
type Job struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	RetryCount  int             `json:"retry_count" gorm:"default:0"`
	MaxRetries  int             `json:"max_retries" gorm:"default:3"`
	CoalesceKey string          `json:"coalesce_key,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) error

// EnqueueOptions represents options for enqueueing a job
type EnqueueOptions struct {
	maxRetry    int
	coalesceKey string
	coalesceTTL time.Duration
}

// EnqueueOption is a function that modifies EnqueueOptions
type EnqueueOption func(*EnqueueOptions)

// WithMaxRetry sets the maximum number of retries for a job
func WithMaxRetry(maxRetry int) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.maxRetry = maxRetry
	}
}

// WithCoalesce suppresses the enqueue when another job with the same key
// was enqueued within ttl. Used to batch leaderboard touches: a burst of
// awards produces one recompute, not one per award.
func WithCoalesce(key string, ttl time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.coalesceKey = key
		o.coalesceTTL = ttl
	}
}

// RedisQueue is a Redis-fronted job queue with rows persisted in the
// database for retry accounting and post-mortems.
type RedisQueue struct {
	client   *redis.Client
	db       *gorm.DB
	handlers map[JobType]JobHandler
	mu       sync.RWMutex
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewRedisQueue creates a queue and migrates its job table
func NewRedisQueue(client *redis.Client, db *gorm.DB) (*RedisQueue, error) {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("failed to migrate job table: %w", err)
	}

	return &RedisQueue{
		client:   client,
		db:       db,
		handlers: make(map[JobType]JobHandler),
		quit:     make(chan struct{}),
	}, nil
}

// RegisterHandler registers a handler for a job type
func (q *RedisQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue persists a job and pushes its ID onto the Redis list for its type
func (q *RedisQueue) Enqueue(ctx context.Context, jobType JobType, payload interface{}, opts ...EnqueueOption) (string, error) {
	options := &EnqueueOptions{maxRetry: 3}
	for _, opt := range opts {
		opt(options)
	}

	if options.coalesceKey != "" {
		set, err := q.client.SetNX(ctx, coalescePrefix+options.coalesceKey, 1, options.coalesceTTL).Result()
		if err != nil {
			return "", fmt.Errorf("failed to check coalesce key: %w", err)
		}
		if !set {
			// A recent enqueue already covers this work.
			return "", nil
		}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payloadBytes,
		Status:      JobStatusPending,
		MaxRetries:  options.maxRetry,
		CoalesceKey: options.coalesceKey,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	if err := q.client.LPush(ctx, queuePrefix+string(jobType), job.ID.String()).Err(); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	return job.ID.String(), nil
}

// Start launches numWorkers worker goroutines per registered job type
func (q *RedisQueue) Start(numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}

	q.mu.RLock()
	types := make([]JobType, 0, len(q.handlers))
	for jobType := range q.handlers {
		types = append(types, jobType)
	}
	q.mu.RUnlock()

	for _, jobType := range types {
		for i := 0; i < numWorkers; i++ {
			q.wg.Add(1)
			go q.worker(jobType)
		}
	}
	log.Printf("queue started: %d worker(s) for %d job type(s)", numWorkers, len(types))
}

// Stop signals all workers and waits for them to drain
func (q *RedisQueue) Stop() {
	close(q.quit)
	q.wg.Wait()
}

func (q *RedisQueue) worker(jobType JobType) {
	defer q.wg.Done()
	ctx := context.Background()
	key := queuePrefix + string(jobType)

	for {
		select {
		case <-q.quit:
			return
		default:
		}

		result, err := q.client.BRPop(ctx, time.Second, key).Result()
		if err != nil {
			if err != redis.Nil {
				log.Printf("error popping from queue %s: %v", jobType, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		q.processJob(ctx, jobType, result[1])
	}
}

func (q *RedisQueue) processJob(ctx context.Context, jobType JobType, jobID string) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("invalid job id %q on queue %s", jobID, jobType)
		return
	}

	var job Job
	if err := q.db.First(&job, "id = ?", id).Error; err != nil {
		log.Printf("failed to load job %s: %v", jobID, err)
		return
	}

	// Release the coalesce key up front so work arriving while the
	// handler runs enqueues a fresh job instead of being dropped.
	if job.CoalesceKey != "" {
		if err := q.client.Del(ctx, coalescePrefix+job.CoalesceKey).Err(); err != nil {
			log.Printf("failed to release coalesce key %q: %v", job.CoalesceKey, err)
		}
	}

	q.updateStatus(&job, JobStatusProcessing, "")

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()
	if !ok {
		q.updateStatus(&job, JobStatusFailed, "no handler registered")
		return
	}

	if err := handler(ctx, job); err != nil {
		q.handleFailure(ctx, &job, err)
		return
	}

	q.updateStatus(&job, JobStatusCompleted, "")
}

// handleFailure requeues the job until its retry budget is spent
func (q *RedisQueue) handleFailure(ctx context.Context, job *Job, cause error) {
	job.RetryCount++
	if job.RetryCount < job.MaxRetries {
		log.Printf("job %s failed (attempt %d/%d): %v", job.ID, job.RetryCount, job.MaxRetries, cause)
		if err := q.db.Model(job).Updates(map[string]interface{}{
			"status":      JobStatusPending,
			"retry_count": job.RetryCount,
			"error":       cause.Error(),
			"updated_at":  time.Now(),
		}).Error; err != nil {
			log.Printf("failed to update job %s for retry: %v", job.ID, err)
			return
		}
		if err := q.client.LPush(ctx, queuePrefix+string(job.Type), job.ID.String()).Err(); err != nil {
			log.Printf("failed to requeue job %s: %v", job.ID, err)
		}
		return
	}

	log.Printf("job %s failed permanently: %v", job.ID, cause)
	q.updateStatus(job, JobStatusFailed, cause.Error())
}

func (q *RedisQueue) updateStatus(job *Job, status JobStatus, errMsg string) {
	if err := q.db.Model(job).Updates(map[string]interface{}{
		"status":     status,
		"error":      errMsg,
		"updated_at": time.Now(),
	}).Error; err != nil {
		log.Printf("failed to update job %s status: %v", job.ID, err)
	}
}
