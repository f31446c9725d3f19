package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/oralscan/pkg/logger"
)

// healthWait bounds how long Run waits for the service to come up.
const healthWait = 30 * time.Second

// Run uploads every planned image, then verifies each identity's history.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("loadtest")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg)

	log.Info(ctx, "starting predict load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("repeat", cfg.Repeat),
		logger.Int("identities", cfg.Identities),
		logger.Int("workers", cfg.Workers),
	)

	if err := client.waitHealthy(ctx, healthWait); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	images, err := loadImages(cfg.ImageDir)
	if err != nil {
		return stats, err
	}
	uploads, identities := plan(cfg, images)

	confirmed := submit(ctx, cfg, client, uploads, stats, log)

	if err := verify(ctx, client, identities, confirmed); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// submit posts uploads with cfg.Workers goroutines and returns the confirmed
// record ids per identity.
func submit(ctx context.Context, cfg *Config, client *HTTPClient, uploads []Upload, stats *Stats, log logger.Logger) map[string][]string {
	var (
		submitted, confirmed, notDetected, busy, failed atomic.Int64

		mu  sync.Mutex
		ids = make(map[string][]string)
		wg  sync.WaitGroup
	)

	jobs := make(chan Upload, max(1, cfg.Workers)*2)
	for i := 0; i < max(1, cfg.Workers); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				submitted.Add(1)
				status, resp, err := client.predict(ctx, u)
				switch {
				case err != nil:
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "upload failed", logger.String("image", u.Name), logger.Error(err))
					}
				case status == http.StatusServiceUnavailable:
					busy.Add(1)
				case status != http.StatusOK:
					failed.Add(1)
				case resp.Status == "confirmed":
					confirmed.Add(1)
					mu.Lock()
					ids[u.Identity] = append(ids[u.Identity], resp.ID)
					mu.Unlock()
				default:
					notDetected.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, u := range uploads {
			select {
			case <-ctx.Done():
				return
			case jobs <- u:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Confirmed = int(confirmed.Load())
	stats.NotDetected = int(notDetected.Load())
	stats.Busy = int(busy.Load())
	stats.Failed = int(failed.Load())
	return ids
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("confirmed", stats.Confirmed),
		logger.Int("notDetected", stats.NotDetected),
		logger.Int("busy", stats.Busy),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("uploadsPerSecond", perSecond),
	)
}
