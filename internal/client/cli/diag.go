package cli

import (
	"context"
	"log"
)

// Diag dumps the telemetry buffers: recent request timings and failures.
func (a *App) Diag(ctx context.Context) error {
	rec := a.client.Recorder()

	perf := rec.Performance.Snapshot()
	log.Printf("--- performance (%d) ---", len(perf))
	for _, r := range perf {
		log.Printf("%s %s %s -> %d in %s [%s]",
			r.Timestamp.Format("15:04:05"), r.Method, r.URL, r.Status, r.Elapsed, r.RequestID)
	}

	errs := rec.Errors.Snapshot()
	log.Printf("--- errors (%d) ---", len(errs))
	for _, r := range errs {
		log.Printf("%s %s %s -> %d: %s [%s]",
			r.Timestamp.Format("15:04:05"), r.Method, r.URL, r.Status, r.Message, r.RequestID)
	}
	return nil
}
