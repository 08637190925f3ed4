package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/invoice-intake/internal/ledger"
	"github.com/dvloznov/invoice-intake/internal/logger"
)

// NewExportBookingsJob builds a job for the given entries.
func NewExportBookingsJob(sessionID string, entries []ledger.Entry) *ExportBookingsJob {
	return &ExportBookingsJob{
		SessionID: sessionID,
		Entries:   entries,
		Count:     len(entries),
	}
}

// ExportHandler returns a JobHandler writing export jobs to sink.
func ExportHandler(sink ledger.Sink) JobHandler {
	return func(ctx context.Context, job Job) error {
		export, ok := job.(*ExportBookingsJob)
		if !ok {
			return fmt.Errorf("ExportHandler: unexpected job type %s", job.GetType())
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", export.JobID).
			Str("session_id", export.SessionID).
			Str("sink", sink.Name()).
			Logger()

		if err := sink.Export(logger.WithContext(ctx, log), export.Entries); err != nil {
			log.Warn().Err(err).Int("attempt", export.RetryCount+1).Msg("Booking export failed")
			return fmt.Errorf("ExportHandler: %w", err)
		}

		log.Info().Int("count", len(export.Entries)).Msg("Bookings exported")
		return nil
	}
}
