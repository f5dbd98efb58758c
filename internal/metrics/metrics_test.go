package metrics

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"quoteflow/logger"
)

func TestEmitWithoutClientIsNoop(t *testing.T) {
	Gauge("test", "noop", 1, nil)
	if len(queue) != 0 {
		t.Fatalf("expected empty queue without a client, got %d", len(queue))
	}
}

// Emit must never block the caller, even with a configured client and
// no flush worker draining the queue.
func TestEmitNeverBlocks(t *testing.T) {
	prev := cwState.Load()
	defer cwState.Store(prev)
	cwState.Store(&cloudWatchState{
		client:    cloudwatch.New(cloudwatch.Options{Region: "us-east-1"}),
		namespace: "Test",
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize*2; i++ {
			Count("test", "hot_path", 1, logger.Fields{"venue": "FAKE"})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emit blocked on a full metric queue")
	}

	// Drain what this test enqueued so other tests see a clean queue.
	for {
		select {
		case <-queue:
		default:
			return
		}
	}
}
