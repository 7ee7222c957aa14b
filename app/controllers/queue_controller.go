package controllers

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fundlink/fundlink/app/repository"
	"github.com/fundlink/fundlink/internal/pkg/jobqueue"
)

// QueueController exposes the redis job queue for operators
type QueueController struct {
	queueRepo repository.QueueRepository
}

// NewQueueController creates a new queue controller with repository
func NewQueueController(queueRepo repository.QueueRepository) *QueueController {
	return &QueueController{queueRepo: queueRepo}
}

// QueueItem describes one redis entry in the monitor response
type QueueItem struct {
	Key   string        `json:"key"`
	Value string        `json:"value"`
	Type  string        `json:"type"`
	TTL   time.Duration `json:"ttl"`
	Size  int64         `json:"size"`
}

// HandleQueueStats returns job counters and queue depths
func (qc *QueueController) HandleQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()

	stats, err := queue.GetJobStats(c.Context())
	if err != nil {
		stats = map[jobqueue.JobStatus]int64{}
	}
	queueSize, _ := queue.GetQueueSize(c.Context())
	processingSize, _ := queue.GetProcessingSize(c.Context())

	return c.JSON(fiber.Map{
		"stats":      stats,
		"queued":     queueSize,
		"processing": processingSize,
		"running":    jobqueue.GetManager().IsRunning(),
	})
}

// HandleQueueItems lists job-related redis keys with TTL and payload
func (qc *QueueController) HandleQueueItems(c *fiber.Ctx) error {
	patterns := []string{jobqueue.JobKeyPrefix + "*", jobqueue.JobQueueKey, jobqueue.JobProcessingKey, jobqueue.JobStatsKey}
	keys, err := qc.queueRepo.FindKeysByPatterns(patterns)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "queue scan failed")
	}

	items := make([]QueueItem, 0, len(keys))
	for _, key := range keys {
		value, err := qc.queueRepo.GetValue(key)
		if err != nil && !errors.Is(err, redis.Nil) {
			// List keys have no string value; show the depth instead
			if length, lerr := qc.queueRepo.GetListLength(key); lerr == nil {
				items = append(items, QueueItem{Key: key, Type: queueKeyType(key), Size: length})
			}
			continue
		}

		ttl, err := qc.queueRepo.GetTTL(key)
		if err != nil {
			ttl = -1
		}

		items = append(items, QueueItem{
			Key:   key,
			Value: value,
			Type:  queueKeyType(key),
			TTL:   ttl,
			Size:  int64(len(value)),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].Key < items[j].Key
	})

	return c.JSON(fiber.Map{"items": items, "total": len(items)})
}

// HandleQueueItemDelete removes a single job key
func (qc *QueueController) HandleQueueItemDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "key is required")
	}
	// Only job data keys may be deleted through the monitor
	if !strings.HasPrefix(key, jobqueue.JobKeyPrefix) {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "only job keys can be deleted")
	}

	result, err := qc.queueRepo.DeleteKey(key)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "delete failed")
	}
	if result == 0 {
		return jsonError(c, fiber.StatusNotFound, "not_found", "key not found")
	}
	return c.JSON(fiber.Map{"ok": true})
}

func queueKeyType(key string) string {
	switch {
	case key == jobqueue.JobQueueKey:
		return "job_queue"
	case key == jobqueue.JobProcessingKey:
		return "job_processing"
	case key == jobqueue.JobStatsKey:
		return "job_stats"
	case strings.HasPrefix(key, jobqueue.JobKeyPrefix):
		return "job"
	default:
		return "unknown"
	}
}

var queueController *QueueController

// InitializeQueueController initializes the global queue controller
func InitializeQueueController() {
	queueRepo := repository.GetGlobalFactory().GetQueueRepository()
	queueController = NewQueueController(queueRepo)
}

// GetQueueController returns the global queue controller instance
func GetQueueController() *QueueController {
	if queueController == nil {
		InitializeQueueController()
	}
	return queueController
}
