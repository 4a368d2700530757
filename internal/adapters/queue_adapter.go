package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Publish when the buffer stays full past the publish timeout.
var ErrQueueFull = errors.New("queue full")

// JobHandler processes one message taken from a queue.
type JobHandler func(ctx context.Context, data []byte) error

// QueueAdapter is the job queue used for background work such as report exports.
type QueueAdapter interface {
	// Publish enqueues jobData on queueName.
	Publish(ctx context.Context, queueName string, jobData []byte) error
	// StartConsuming runs handler for every message of queueName on a background goroutine.
	StartConsuming(ctx context.Context, queueName string, handler JobHandler) error
	// StopConsuming stops the consumer of queueName. Queued messages are kept.
	StopConsuming(ctx context.Context, queueName string) error
	// StopAll stops every consumer and waits for in-flight handlers to return.
	StopAll(ctx context.Context) error
}

const (
	defaultQueueBuffer    = 100
	defaultPublishTimeout = 2 * time.Second
)

// InMemoryQueueAdapter implements QueueAdapter with buffered channels.
type InMemoryQueueAdapter struct {
	queues         map[string]chan []byte
	stopChan       map[string]chan struct{}
	mu             sync.Mutex
	logger         *zap.Logger
	wg             sync.WaitGroup
	consumerCtx    context.Context
	cancelFunc     context.CancelFunc
	publishTimeout time.Duration
}

func NewInMemoryQueueAdapter(logger *zap.Logger) *InMemoryQueueAdapter {
	consumerCtx, cancelFunc := context.WithCancel(context.Background())
	return &InMemoryQueueAdapter{
		queues:         make(map[string]chan []byte),
		stopChan:       make(map[string]chan struct{}),
		logger:         logger,
		consumerCtx:    consumerCtx,
		cancelFunc:     cancelFunc,
		publishTimeout: defaultPublishTimeout,
	}
}

func (q *InMemoryQueueAdapter) getOrCreateQueue(queueName string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[queueName]; !ok {
		q.queues[queueName] = make(chan []byte, defaultQueueBuffer)
		q.logger.Debug("in-memory queue created", zap.String("queue", queueName))
	}
	return q.queues[queueName]
}

func (q *InMemoryQueueAdapter) Publish(ctx context.Context, queueName string, jobData []byte) error {
	queue := q.getOrCreateQueue(queueName)
	timer := time.NewTimer(q.publishTimeout)
	defer timer.Stop()
	select {
	case queue <- jobData:
		q.logger.Debug("message published", zap.String("queue", queueName), zap.Int("depth", len(queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		q.logger.Warn("publish timed out, queue full", zap.String("queue", queueName))
		return fmt.Errorf("%w: %s", ErrQueueFull, queueName)
	}
}

func (q *InMemoryQueueAdapter) StartConsuming(ctx context.Context, queueName string, handler JobHandler) error {
	queue := q.getOrCreateQueue(queueName)

	q.mu.Lock()
	if _, running := q.stopChan[queueName]; running {
		q.mu.Unlock()
		return fmt.Errorf("consumer already running for queue %s", queueName)
	}
	stop := make(chan struct{})
	q.stopChan[queueName] = stop
	q.mu.Unlock()

	log := q.logger.With(zap.String("queue", queueName))
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		log.Info("consumer started")
		for {
			select {
			case data, ok := <-queue:
				if !ok {
					log.Info("queue closed, consumer exiting")
					return
				}
				if err := handler(q.consumerCtx, data); err != nil {
					log.Error("job failed", zap.Error(err))
				}
			case <-stop:
				log.Info("consumer stopped")
				return
			case <-q.consumerCtx.Done():
				log.Info("adapter shut down, consumer exiting")
				return
			}
		}
	}()
	return nil
}

func (q *InMemoryQueueAdapter) StopConsuming(ctx context.Context, queueName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if stop, ok := q.stopChan[queueName]; ok {
		close(stop)
		delete(q.stopChan, queueName)
	}
	return nil
}

func (q *InMemoryQueueAdapter) StopAll(ctx context.Context) error {
	q.cancelFunc()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.logger.Info("all queue consumers stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
