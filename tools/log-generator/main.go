package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/hekad-gateway/internal/adapter/gelf"
	"github.com/V4T54L/hekad-gateway/internal/adapter/repository/rollingfile"
	"github.com/V4T54L/hekad-gateway/internal/domain"
)

// log-generator writes synthetic GELF records into a log directory so a
// locally running hekad has something to tail.
func main() {
	dir := flag.String("dir", filepath.Join(os.TempDir(), "hekad-logs"), "GELF log directory")
	deployment := flag.String("deployment", "local", "Deployment name")
	instance := flag.String("instance", "dev", "Instance identifier")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the run")
	rps := flag.Int("rps", 200, "Records per second limit")
	flag.Parse()

	log.Printf("Writing GELF records to %s", *dir)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink, err := rollingfile.NewSink(*dir, quiet)
	if err != nil {
		log.Fatalf("failed to open log directory: %v", err)
	}
	defer sink.Close()

	host, err := os.Hostname()
	if err != nil {
		log.Printf("could not resolve host name, using localhost: %v", err)
		host = "localhost"
	}
	var errorCount atomic.Int64
	handler := gelf.NewHandler(gelf.NewFormatter(host, *instance, *deployment), countingSink{sink, &errorCount}, domain.SeverityVerbose)
	logger := slog.New(handler).With("component", "log-generator")

	var wg sync.WaitGroup
	var written atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 50)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				n := written.Add(1)
				switch {
				case n%50 == 0:
					logger.Error("synthetic failure", "worker", workerID, "id", uuid.NewString(), "error", errors.New("simulated timeout"))
				case n%10 == 0:
					logger.Warn("synthetic warning", "worker", workerID, "id", uuid.NewString())
				default:
					logger.Info("synthetic event", "worker", workerID, "id", uuid.NewString(), "seq", n)
				}
			}
		}(i)
	}

	wg.Wait()

	log.Println("Run finished.")
	log.Printf("Records: %d", written.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(written.Load())/duration.Seconds())
}

type countingSink struct {
	domain.RecordSink
	errors *atomic.Int64
}

func (s countingSink) Write(ctx context.Context, record []byte) error {
	err := s.RecordSink.Write(ctx, record)
	if err != nil {
		s.errors.Add(1)
	}
	return err
}
