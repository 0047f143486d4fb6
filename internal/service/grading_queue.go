package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/assessly/assess-api/internal/observability"
)

// ErrQueueFull indicates the local grading buffer rejected a job.
var ErrQueueFull = errors.New("grading queue full")

const gradingQueueGroup = "assess-graders"

// gradingJob is the wire payload published for each pending submission.
type gradingJob struct {
	SubmissionID uint `json:"submission_id"`
}

// NATSGradingQueue distributes grading jobs over a NATS subject so any
// instance in the queue group can pick them up. When no connection is
// configured it degrades to an in-process buffered channel, which keeps
// single-node deployments working without a broker.
type NATSGradingQueue struct {
	conn    *nats.Conn
	subject string
	grader  GradingService
	local   chan gradingJob
	logger  zerolog.Logger
}

// NewGradingQueue constructs a queue backed by NATS when conn is non-nil,
// otherwise by a local buffer of the given size.
func NewGradingQueue(conn *nats.Conn, subject string, bufferSize int, grader GradingService, logger zerolog.Logger) *NATSGradingQueue {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &NATSGradingQueue{
		conn:    conn,
		subject: subject,
		grader:  grader,
		local:   make(chan gradingJob, bufferSize),
		logger:  logger.With().Str("component", "grading_queue").Logger(),
	}
}

// Enqueue hands a submission to the grading workers. The caller's request
// returns immediately; grading happens on the consumer side.
func (q *NATSGradingQueue) Enqueue(ctx context.Context, submissionID uint) error {
	job := gradingJob{SubmissionID: submissionID}

	if q.conn != nil {
		payload, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return err
		}
		q.logger.Debug().Uint("submission_id", submissionID).Msg("grading job published")
		return nil
	}

	select {
	case q.local <- job:
		observability.GradingQueueDepth().Set(float64(len(q.local)))
		q.logger.Debug().Uint("submission_id", submissionID).Msg("grading job buffered")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Start launches the consumer side: a queue subscription when NATS is
// available, a worker goroutine over the local buffer otherwise. The
// subscription is torn down when ctx is cancelled.
func (q *NATSGradingQueue) Start(ctx context.Context) error {
	if q.conn != nil {
		sub, err := q.conn.QueueSubscribe(q.subject, gradingQueueGroup, func(msg *nats.Msg) {
			var job gradingJob
			if err := json.Unmarshal(msg.Data, &job); err != nil {
				q.logger.Error().Err(err).Msg("malformed grading job dropped")
				return
			}
			q.process(ctx, job)
		})
		if err != nil {
			return err
		}

		go func() {
			<-ctx.Done()
			if err := sub.Unsubscribe(); err != nil {
				q.logger.Warn().Err(err).Msg("grading subscription teardown failed")
			}
		}()

		q.logger.Info().Str("subject", q.subject).Msg("grading queue consuming from nats")
		return nil
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-q.local:
				observability.GradingQueueDepth().Set(float64(len(q.local)))
				q.process(ctx, job)
			}
		}
	}()

	q.logger.Info().Int("buffer", cap(q.local)).Msg("grading queue consuming locally")
	return nil
}

func (q *NATSGradingQueue) process(ctx context.Context, job gradingJob) {
	if err := q.grader.GradeSubmission(ctx, job.SubmissionID); err != nil {
		switch {
		case errors.Is(err, ErrSubmissionNotPending), errors.Is(err, ErrSubmissionNotFound):
			// Stale job: the submission was edited, deleted, or claimed
			// by another worker since it was queued.
			q.logger.Debug().Err(err).Uint("submission_id", job.SubmissionID).Msg("grading job skipped")
		default:
			q.logger.Error().Err(err).Uint("submission_id", job.SubmissionID).Msg("grading job failed")
		}
	}
}
