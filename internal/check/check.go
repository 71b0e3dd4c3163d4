// Package check runs website probes for every club of the loaded regions
// and aggregates the results into an ordered report.
package check

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/club-websites/internal/logger"
	"github.com/pfrederiksen/club-websites/internal/probe"
	"github.com/pfrederiksen/club-websites/internal/region"
)

const (
	DefaultConcurrency = 8
	MaxConcurrency     = 64
)

// Record is the report line for one club.
type Record struct {
	Club     *string
	Region   string
	Website  *string
	Outcome  probe.Outcome
	Attempts int
}

// FinalURL returns the URL the response came from, if any.
func (r Record) FinalURL() *string {
	if r.Outcome.Kind != probe.KindSuccess {
		return nil
	}
	u := r.Outcome.FinalURL
	return &u
}

// Summary aggregates a finished run.
type Summary struct {
	TotalClubs   int
	Checked      int
	OK           int
	Errors       int
	Missing      int
	MissingFiles []string
	FailedFiles  []string
	Duration     time.Duration
}

// Report is the ordered result of a run.
type Report struct {
	Records []Record
	Summary Summary
}

// Observer is notified of progress in input order.
type Observer interface {
	Started(total int)
	RegionStarted(region string)
	ClubChecked(current, total int, club string, rec Record)
	Finished(summary Summary)
}

// Runner checks all clubs with a bounded number of concurrent probes.
type Runner struct {
	checker     probe.Checker
	concurrency int
	observer    Observer
}

// NewRunner creates a Runner. A concurrency of 1 checks clubs strictly one
// after another.
func NewRunner(checker probe.Checker, concurrency int, observer Observer) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Runner{
		checker:     checker,
		concurrency: concurrency,
		observer:    observer,
	}
}

type job struct {
	index int
	club  region.Club
}

type indexed struct {
	index  int
	record Record
}

// Run checks every club of set. Records keep region order, then feature
// order, whatever order the probes finish in. If ctx is canceled no
// further probes start and the context error is returned without a report.
func (r *Runner) Run(ctx context.Context, set *region.Set) (*Report, error) {
	start := time.Now()

	var jobs []job
	var banners []banner
	for _, reg := range set.Regions {
		banners = append(banners, banner{index: len(jobs), region: reg.ID})
		for _, c := range reg.Clubs {
			jobs = append(jobs, job{index: len(jobs), club: c})
		}
	}

	total := len(jobs)
	logger.SetGauge("clubs.total", float64(total))
	r.observer.Started(total)

	results := make(chan indexed)
	merged := make(chan []Record, 1)
	go func() {
		merged <- r.collect(jobs, banners, results)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results <- indexed{index: j.index, record: r.check(gctx, j.club)}
			return nil
		})
	}
	err := g.Wait()
	close(results)
	records := <-merged

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Warn("Run interrupted", logger.Fields{"clubs_total": total})
		return nil, err
	}

	summary := Summarize(records)
	summary.MissingFiles = set.Missing
	for _, f := range set.Failed {
		summary.FailedFiles = append(summary.FailedFiles, f.ID)
	}
	summary.Duration = time.Since(start)
	logger.SetGauge("clubs.ok", float64(summary.OK))
	logger.SetGauge("clubs.error", float64(summary.Errors))
	logger.SetGauge("clubs.missing", float64(summary.Missing))

	r.observer.Finished(summary)
	logger.Info("Run finished", logger.Fields{
		"clubs_total": summary.TotalClubs,
		"ok":          summary.OK,
		"errors":      summary.Errors,
		"missing":     summary.Missing,
		"duration":    summary.Duration.String(),
	})

	return &Report{Records: records, Summary: summary}, nil
}

func (r *Runner) check(ctx context.Context, c region.Club) Record {
	website := ""
	if c.Website != nil {
		website = *c.Website
	}

	res := probe.Resolve(ctx, r.checker, website)

	rec := Record{
		Club:     c.Name,
		Region:   c.Region,
		Outcome:  res.Outcome,
		Attempts: res.Attempts,
	}
	if res.Website != "" {
		w := res.Website
		rec.Website = &w
	}
	return rec
}

type banner struct {
	index  int
	region string
}

// collect is the only writer of the record slice. It merges results back
// into input order and reports progress as the ordered prefix grows.
func (r *Runner) collect(jobs []job, banners []banner, results <-chan indexed) []Record {
	total := len(jobs)
	records := make([]Record, total)
	done := make([]bool, total)
	next, nextBanner := 0, 0

	emitBanners := func() {
		for nextBanner < len(banners) && banners[nextBanner].index == next {
			r.observer.RegionStarted(banners[nextBanner].region)
			nextBanner++
		}
	}

	emitBanners()
	for res := range results {
		records[res.index] = res.record
		done[res.index] = true

		for next < total && done[next] {
			rec := records[next]
			next++
			r.observer.ClubChecked(next, total, jobs[next-1].club.DisplayName(), rec)
			emitBanners()
		}
	}
	return records
}

// Summarize classifies records: a 200 response is ok, a club without a
// website is missing, and transport errors or any other status are errors.
func Summarize(records []Record) Summary {
	s := Summary{TotalClubs: len(records)}
	for _, rec := range records {
		switch {
		case rec.Outcome.Kind == probe.KindNoWebsite:
			s.Missing++
			continue
		case rec.Outcome.Kind == probe.KindSuccess && rec.Outcome.StatusCode == http.StatusOK:
			s.OK++
		default:
			s.Errors++
		}
		s.Checked++
	}
	return s
}

type nopObserver struct{}

func (nopObserver) Started(int)                          {}
func (nopObserver) RegionStarted(string)                 {}
func (nopObserver) ClubChecked(int, int, string, Record) {}
func (nopObserver) Finished(Summary)                     {}
