package internal

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/rgrab/rgrab/utils"
)

var errRetriesExhausted = errors.New("retry budget exhausted")

// Result is the outcome of one batch entry.
type Result struct {
	JobID uuid.UUID
	Entry utils.DownloadEntry
	OK    bool
	Err   error
}

// BatchDownload runs the entries through a pool of workers, each driving
// its own engine against a shared client. The bandwidth cap in cfg is
// split across the pool via cfg.Parallelism.
func BatchDownload(ctx context.Context, entries []utils.DownloadEntry, workers int, cfg Config) []Result {
	log := utils.GetLogger("batch")
	if workers < 1 {
		workers = 1
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = workers
	}
	log.Info().Int("totalFiles", len(entries)).Int("workers", workers).Msg("Initiating download")

	display := NewDisplay()
	for _, entry := range entries {
		display.Register(entry.OutputPath)
	}
	display.Start()
	defer display.Stop()
	reporter := NewReporter(display)
	client := NewClient(cfg)

	entriesCh := make(chan utils.DownloadEntry, len(entries))
	for _, entry := range entries {
		entriesCh <- entry
	}
	close(entriesCh)
	resultCh := make(chan Result, len(entries))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := log.With().Int("workerID", workerID).Logger()
			for entry := range entriesCh {
				jobID := uuid.New()
				logger.Debug().Str("jobId", jobID.String()).Str("output", entry.OutputPath).Msg("Worker starting download")
				target := Target{URL: entry.URL, OutputPath: entry.OutputPath}
				ok, err := NewEngine(target, cfg, client, reporter).Run(ctx)
				switch {
				case err != nil:
					logger.Error().Err(err).Str("output", entry.OutputPath).Msg("Download failed")
					display.Fail(entry.OutputPath, err)
				case !ok:
					logger.Error().Str("output", entry.OutputPath).Msg("Download gave up after exhausting retries")
					display.Fail(entry.OutputPath, errRetriesExhausted)
					err = errRetriesExhausted
				default:
					logger.Debug().Str("output", entry.OutputPath).Msg("Download completed successfully")
				}
				resultCh <- Result{JobID: jobID, Entry: entry, OK: ok, Err: err}
			}
		}(i + 1)
	}
	wg.Wait()
	close(resultCh)

	results := make([]Result, 0, len(entries))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}
