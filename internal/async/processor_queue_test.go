package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/fifo"
	"github.com/kitchenledger/invoice-pipeline/internal/mapping"
	"github.com/kitchenledger/invoice-pipeline/internal/parser"
	"github.com/kitchenledger/invoice-pipeline/internal/pipeline"
	"github.com/kitchenledger/invoice-pipeline/internal/reconcile"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
	"github.com/kitchenledger/invoice-pipeline/internal/uom"
)

func testProcessor() *pipeline.Processor {
	store := repository.NewMemoryStore()
	store.SeedRules(entity.MappingRule{
		ID: 1, Pattern: "beef", CategoryCode: string(constants.Meat),
		Confidence: 0.99, Priority: 10, Active: true,
	})
	conv := uom.NewConverter(store, nil)
	p := parser.New(conv, nil, parser.LineItemOptions{})
	m := mapping.NewMapper(store, store, store, store, 0.95, nil)
	r := reconcile.NewReconciler(50, nil)
	b := fifo.NewBuilder(store, nil)
	return pipeline.NewProcessor(p, m, r, b, nil)
}

func rawInvoice(n string) *entity.RawInvoice {
	return &entity.RawInvoice{
		InvoiceNumber: n,
		Vendor:        "GFS",
		ExtractedText: "Sub Total $90.00\nInvoice Total $90.00\n",
		LineItems: []entity.RawLineItem{
			{ProductCode: "1001", Description: "BEEF STRIPLOIN", Quantity: "2", LineTotal: "90.00"},
		},
	}
}

func TestProcessorQueueDrainsAllJobs(t *testing.T) {
	var mu sync.Mutex
	var done int
	var failed int

	q := NewProcessorQueue(testProcessor(), nil,
		WithWorkers(3),
		WithQueueSize(8),
		WithProcessTimeout(5*time.Second),
		WithResultHandler(func(job Job, res *pipeline.Result, err error) {
			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				failed++
			}
		}),
	)

	ctx := context.Background()
	const jobs = 20
	for i := 0; i < jobs; i++ {
		if err := q.Enqueue(ctx, Job{
			ID:          uuid.New(),
			Invoice:     rawInvoice(uuid.New().String()),
			SubmittedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	mu.Lock()
	defer mu.Unlock()
	if done != jobs {
		t.Errorf("handled %d jobs, want %d", done, jobs)
	}
	if failed != 0 {
		t.Errorf("%d jobs failed", failed)
	}
}

func TestProcessorQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(testProcessor(), nil, WithWorkers(1))

	ctx := context.Background()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	// Must not panic on the closed channel.
	if err := q.Enqueue(ctx, Job{ID: uuid.New(), Invoice: rawInvoice("LATE")}); err != nil {
		t.Fatalf("Enqueue after shutdown: %v", err)
	}

	// Second shutdown is a no-op.
	q.Shutdown(shutdownCtx)
}
