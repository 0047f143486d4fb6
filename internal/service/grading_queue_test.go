package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingGrader collects submission ids handed to it by the queue consumer.
type recordingGrader struct {
	mu     sync.Mutex
	graded []uint
	err    error
	seen   chan uint
}

func newRecordingGrader(buffer int) *recordingGrader {
	return &recordingGrader{seen: make(chan uint, buffer)}
}

func (g *recordingGrader) GradeSubmission(_ context.Context, id uint) error {
	g.mu.Lock()
	g.graded = append(g.graded, id)
	g.mu.Unlock()
	g.seen <- id
	return g.err
}

func (g *recordingGrader) BatchGrade(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if err := g.GradeSubmission(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func waitForJob(t *testing.T, grader *recordingGrader) uint {
	t.Helper()
	select {
	case id := <-grader.seen:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for grading job")
		return 0
	}
}

func TestGradingQueueLocalDelivery(t *testing.T) {
	grader := newRecordingGrader(4)
	queue := NewGradingQueue(nil, "assess.grading", 4, grader, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Start(ctx))

	require.NoError(t, queue.Enqueue(context.Background(), 11))
	require.NoError(t, queue.Enqueue(context.Background(), 12))

	first := waitForJob(t, grader)
	second := waitForJob(t, grader)
	require.ElementsMatch(t, []uint{11, 12}, []uint{first, second})
}

func TestGradingQueueLocalBufferFull(t *testing.T) {
	grader := newRecordingGrader(1)
	queue := NewGradingQueue(nil, "assess.grading", 1, grader, testLogger())

	// No consumer is running, so the second job has nowhere to go.
	require.NoError(t, queue.Enqueue(context.Background(), 1))
	require.ErrorIs(t, queue.Enqueue(context.Background(), 2), ErrQueueFull)
}

func TestGradingQueueSkipsStaleJobs(t *testing.T) {
	grader := newRecordingGrader(4)
	grader.err = ErrSubmissionNotPending
	queue := NewGradingQueue(nil, "assess.grading", 4, grader, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Start(ctx))

	// Errors from stale jobs must not stall the consumer.
	require.NoError(t, queue.Enqueue(context.Background(), 21))
	require.NoError(t, queue.Enqueue(context.Background(), 22))

	waitForJob(t, grader)
	waitForJob(t, grader)

	grader.mu.Lock()
	defer grader.mu.Unlock()
	require.Len(t, grader.graded, 2)
}
