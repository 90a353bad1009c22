package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"collabrag/internal/logger"
	"collabrag/internal/metrics"
	"collabrag/internal/model"
	"collabrag/internal/platform/rabbitmq"
)

// Reindexer rebuilds the index entries of one file.
type Reindexer interface {
	Reindex(ctx context.Context, fileID string) (int, error)
}

// ReindexWorker consumes reindex jobs published when ingestion could not
// finish indexing a file.
type ReindexWorker struct {
	conn      *amqp.Connection
	reindexer Reindexer
	queueName string
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewReindexWorker(conn *amqp.Connection, reindexer Reindexer, queueName string, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *ReindexWorker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ReindexWorker{
		conn:      conn,
		reindexer: reindexer,
		queueName: queueName,
		timeout:   timeout,
		metrics:   m,
		log:       logger.OrDiscard(log),
	}
}

func (w *ReindexWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("reindex delivery channel closed")
					return
				}
				switch err := w.handle(workerCtx, d.Body); {
				case err == nil:
					_ = d.Ack(false)
				case errors.Is(err, errMalformedJob) || d.Redelivered:
					_ = d.Nack(false, false)
				default:
					_ = d.Nack(false, true)
				}
			}
		}
	}()

	return nil
}

var errMalformedJob = errors.New("malformed reindex job")

// handle processes one job body. Malformed jobs are reported with
// errMalformedJob so they are dropped instead of requeued.
func (w *ReindexWorker) handle(ctx context.Context, body []byte) error {
	var job model.ReindexJob
	if err := json.Unmarshal(body, &job); err != nil || job.FileID == "" {
		w.log.Error("worker decode reindex job failed", "error", err)
		w.metrics.ObserveReindex("malformed")
		return errMalformedJob
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	n, err := w.reindexer.Reindex(ctx, job.FileID)
	if err != nil {
		w.log.Error("worker reindex failed", "file_id", job.FileID, "error", err)
		w.metrics.ObserveReindex("failed")
		return err
	}
	w.log.Info("file reindexed", "file_id", job.FileID, "chunks", n, "reason", job.Reason)
	w.metrics.ObserveReindex("ok")
	return nil
}

func (w *ReindexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
