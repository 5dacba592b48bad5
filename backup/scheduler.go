/*
scheduler.go - Periodic backups

DESIGN:
  - Runs a background goroutine with a fixed interval
  - Takes one backup immediately on start, then one per tick
  - A failed run is logged and retried on the next tick

USAGE:
  scheduler := NewScheduler(service, 6*time.Hour, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package backup

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler takes a backup every Interval. A zero interval disables it.
type Scheduler struct {
	Service  *Service
	Interval time.Duration
	Log      logrus.FieldLogger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   int
}

func NewScheduler(service *Service, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Service:  service,
		Interval: interval,
		Log:      log.WithField("component", "backup-scheduler"),
	}
}

// Start begins the scheduler. It is a no-op when disabled or already running.
func (bs *Scheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.Interval <= 0 {
		bs.Log.Info("disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.Interval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run(bs.ticker, bs.stop)

	bs.Log.WithField("interval", bs.Interval).Info("started")
}

// Stop stops the scheduler and waits for a running backup to finish.
func (bs *Scheduler) Stop() {
	bs.mu.Lock()
	ticker, stop := bs.ticker, bs.stop
	bs.ticker, bs.stop = nil, nil
	bs.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	bs.wg.Wait()
	bs.Log.Info("stopped")
}

func (bs *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer bs.wg.Done()

	// Run immediately on start
	bs.RunNow()

	for {
		select {
		case <-ticker.C:
			bs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow takes one backup synchronously.
func (bs *Scheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := bs.Service.Backup(ctx); err != nil {
		bs.Log.WithError(err).Warn("backup failed")
		return
	}

	bs.mu.Lock()
	bs.runs++
	bs.mu.Unlock()
}

// Runs reports how many backups succeeded since construction.
func (bs *Scheduler) Runs() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.runs
}

// NextRunTime returns when the next scheduled backup will occur.
func (bs *Scheduler) NextRunTime() time.Time {
	return time.Now().Add(bs.Interval)
}
