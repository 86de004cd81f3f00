package reporter

import (
	"context"
	"fmt"

	"bustrack/internal/client"
	"bustrack/internal/logger"
)

// Run performs one background location report: read the persisted identity,
// post the sample over REST, exit. Designed to be invoked by an OS-level
// scheduler while the main agent is not in the foreground.
func Run(ctx context.Context, storePath, serverURL string, lat, lng, speedMS, heading float64) error {
	log := logger.New("background-reporter")

	rep := client.NewReporter(client.NewStore(storePath), serverURL, client.RetryPolicy{}, log)
	if err := rep.ReportOnce(ctx, lat, lng, speedMS, heading); err != nil {
		return fmt.Errorf("background report: %w", err)
	}

	logger.Info(ctx, log, "report_sent", "Background location report delivered",
		"lat", lat, "lng", lng)
	return nil
}
