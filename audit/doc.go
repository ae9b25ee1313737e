// Package audit provides a non-blocking, batched audit trail for
// multi-tenant services.
//
// Producers call Queue.TryEnqueue on the request path; the call never
// blocks meaningfully and never returns an error. A single BatchWriter
// consumes the queue in the background, batches entries, groups them by
// tenant and bulk-inserts each group into that tenant's own audit store
// through a per-tenant resilience pipeline. Persistence failures fall
// back to a Sink or are dropped with a metric; they never reach the
// producer.
//
// # Usage
//
//	queue := audit.NewQueue(audit.QueueConfig{Capacity: 4096})
//	writer, err := audit.NewBatchWriter(audit.WriterConfig{
//		Queue:     queue,
//		Store:     auditStore,
//		Pipelines: pipelines,
//		Fallback:  audit.NewLoggerSink(logger),
//	})
//	if err != nil {
//		return err
//	}
//	writer.Start()
//	defer writer.Stop(shutdownCtx)
//
//	entry := audit.NewEntry("acme", "Order.Create", actor, outcome)
//	queue.TryEnqueue(ctx, entry)
package audit
