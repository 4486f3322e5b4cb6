package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"presence/internal/events"
	"presence/internal/metrics"
	"presence/internal/models"
)

const runTimeout = 30 * time.Minute

// Publisher delivers a rendered report.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, doc Document) error
}

// Builder renders the report of a month.
type Builder interface {
	Build(ctx context.Context, ym models.YearMonth) (Document, error)
}

// Scheduler exports the previous month's report on the first day of every
// month at 00:01 local time.
type Scheduler struct {
	builder    Builder
	publishers []Publisher
	bus        *events.EventBus
	logger     zerolog.Logger
	onStart    bool
	now        func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. bus and logger may be nil.
func NewScheduler(builder Builder, publishers []Publisher, bus *events.EventBus, onStart bool, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		builder:    builder,
		publishers: publishers,
		bus:        bus,
		logger:     logger.With().Str("component", "report_scheduler").Logger(),
		onStart:    onStart,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the monthly schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.onStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduled()
		}()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("publishers", len(s.publishers)).Msg("report scheduler started")
}

// Stop cancels a running export and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.logger.Info().Msg("report scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(s.now())
	timer := time.NewTimer(nextRun.Sub(s.now()))
	defer timer.Stop()

	s.logger.Info().Time("time", nextRun).Msg("next export scheduled")

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.runScheduled()

			nextRun = nextFirstOfMonth(s.now())
			timer.Reset(nextRun.Sub(s.now()))
			s.logger.Info().Time("time", nextRun).Msg("next export scheduled")
		}
	}
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	ym := models.DateOf(s.now()).YearMonth().Previous()
	if _, err := s.Run(ctx, ym); err != nil {
		s.logger.Error().Err(err).Str("month", ym.String()).Msg("monthly export failed")
	}
}

// Run builds the report of ym and hands it to every publisher. Publishing
// continues past a failing publisher; the joined errors are returned.
func (s *Scheduler) Run(ctx context.Context, ym models.YearMonth) (Document, error) {
	doc, err := s.builder.Build(ctx, ym)
	if err != nil {
		metrics.IncExport("build", "error")
		return Document{}, err
	}
	metrics.IncExport("build", "ok")

	var errs []error
	for _, p := range s.publishers {
		err := p.Publish(ctx, doc)
		s.observe(p.Name(), doc, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return doc, errors.Join(errs...)
}

func (s *Scheduler) observe(publisher string, doc Document, err error) {
	payload := events.ReportExported{
		Month:     doc.Report.Month.String(),
		File:      doc.Filename,
		Publisher: publisher,
	}
	if err != nil {
		payload.Error = err.Error()
		metrics.IncExport(publisher, "error")
		s.logger.Error().Err(err).Str("publisher", publisher).Str("file", doc.Filename).Msg("publish report failed")
	} else {
		metrics.IncExport(publisher, "ok")
		s.logger.Info().Str("publisher", publisher).Str("file", doc.Filename).Msg("report published")
	}
	if s.bus != nil {
		_ = s.bus.PublishJSON(events.TypeReportExported, payload)
	}
}

// nextFirstOfMonth returns 00:01 on the first day of the month after now.
func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}
