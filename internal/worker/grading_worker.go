package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/worker/queue"
)

// GradingWorker feeds assignment.graded messages through the pool and settles
// each one: ack on success, reject malformed ones, requeue the rest.
type GradingWorker struct {
	consumer queue.Consumer
	handler  queue.MessageHandler
	pool     *WorkerPool
	logger   zerolog.Logger
}

func NewGradingWorker(consumer queue.Consumer, handler queue.MessageHandler, pool *WorkerPool, logger zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		consumer: consumer,
		handler:  handler,
		pool:     pool,
		logger:   logger,
	}
}

// Run blocks until ctx is done or the consumer stops delivering.
func (w *GradingWorker) Run(ctx context.Context) error {
	msgs, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	for msg := range msgs {
		msg := msg
		if err := w.pool.Submit(ctx, func() { w.process(ctx, msg) }); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to schedule grading message, requeueing")
			if err := msg.Nack(false, true); err != nil {
				w.logger.Error().Err(err).Msg("Failed to nack grading message")
			}
		}
	}

	return nil
}

func (w *GradingWorker) process(ctx context.Context, msg queue.Delivery) {
	log := w.logger.With().Str("message_id", msg.MessageID).Logger()
	if msg.Redelivered {
		log.Debug().Msg("Processing redelivered grading message")
	}

	err := w.handler.ProcessMessage(ctx, msg.Body)

	var settleErr error
	switch {
	case err == nil:
		settleErr = msg.Ack(false)
	case errors.Is(err, queue.ErrMalformed):
		log.Error().Err(err).Bytes("body", msg.Body).Msg("Rejecting malformed grading message")
		settleErr = msg.Nack(false, false)
	default:
		log.Error().Err(err).Msg("Failed to process grading message, requeueing")
		settleErr = msg.Nack(false, true)
	}

	if settleErr != nil {
		log.Error().Err(settleErr).Msg("Failed to settle grading message")
	}
}
