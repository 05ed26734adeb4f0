package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor defines the interface for processing a batch of queued jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls the job queue on a fixed interval and hands each batch to its
// processor. One worker per process is enough; the queue claim is what keeps
// multiple processes from stepping on each other.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled or Stop is
// called. The first poll happens immediately so documents queued before
// startup are not left waiting a full interval.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("Index worker started, polling every %v", w.pollInterval)

	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("Error processing index jobs: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Index worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("Index worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("Error processing index jobs: %v", err)
			}
		}
	}
}

// Stop gracefully stops the worker and waits for the in-flight batch
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("Index worker shutdown complete")
}
