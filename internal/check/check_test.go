package check

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/club-websites/internal/probe"
	"github.com/pfrederiksen/club-websites/internal/region"
)

// stubChecker answers from a table, optionally sleeping per URL so probes
// finish out of order.
type stubChecker struct {
	mu       sync.Mutex
	outcomes map[string]probe.Outcome
	delays   map[string]time.Duration
	calls    []string
}

func (s *stubChecker) Probe(ctx context.Context, url string) probe.Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, url)
	delay := s.delays[url]
	out, ok := s.outcomes[url]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return probe.TransportError(probe.ErrKindCanceled, ctx.Err())
		}
	}
	if !ok {
		return probe.TransportError(probe.ErrKindDNS, errors.New("no such host"))
	}
	return out
}

func (s *stubChecker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type event struct {
	kind   string
	detail string
}

type recordingObserver struct {
	events  []event
	total   int
	summary *Summary
}

func (o *recordingObserver) Started(total int) { o.total = total }

func (o *recordingObserver) RegionStarted(r string) {
	o.events = append(o.events, event{"region", r})
}

func (o *recordingObserver) ClubChecked(current, total int, club string, rec Record) {
	o.events = append(o.events, event{"club", fmt.Sprintf("[%d/%d] %s -> %s", current, total, club, rec.Outcome.Status())})
}

func (o *recordingObserver) Finished(s Summary) { o.summary = &s }

func str(s string) *string { return &s }

func club(regionID, name, website string) region.Club {
	c := region.Club{Name: str(name), Region: regionID}
	if website != "" {
		c.Website = str(website)
	}
	return c
}

func TestRun_FallbackRecord(t *testing.T) {
	sc := &stubChecker{outcomes: map[string]probe.Outcome{
		"https://alpha.se": probe.TransportError(probe.ErrKindTimeout, errors.New("timeout")),
		"http://alpha.se":  probe.Success(200, "http://www.alpha.se/"),
	}}
	set := &region.Set{Regions: []*region.Region{{
		ID:    "a.geojson",
		Clubs: []region.Club{club("a.geojson", "Alpha GK", "alpha.se"), club("a.geojson", "Beta GK", "")},
	}}}

	report, err := NewRunner(sc, 1, nil).Run(context.Background(), set)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	alpha := report.Records[0]
	assert.Equal(t, "Alpha GK", *alpha.Club)
	assert.Equal(t, "a.geojson", alpha.Region)
	assert.Equal(t, "http://alpha.se", *alpha.Website)
	assert.Equal(t, 200, alpha.Outcome.StatusCode)
	assert.Equal(t, "http://www.alpha.se/", *alpha.FinalURL())

	beta := report.Records[1]
	assert.Nil(t, beta.Website)
	assert.Nil(t, beta.FinalURL())
	assert.Equal(t, probe.StatusNoWebsite, beta.Outcome.Status())

	assert.Equal(t, 2, sc.callCount(), "no probe for the club without website")
}

func TestRun_PreservesOrder(t *testing.T) {
	sc := &stubChecker{
		outcomes: map[string]probe.Outcome{},
		delays:   map[string]time.Duration{},
	}
	var regions []*region.Region
	var want []string
	for r := 0; r < 3; r++ {
		reg := &region.Region{ID: fmt.Sprintf("r%d.geojson", r)}
		for i := 0; i < 6; i++ {
			site := fmt.Sprintf("club-%d-%d.se", r, i)
			url := "https://" + site
			sc.outcomes[url] = probe.Success(200, url+"/")
			// Earlier clubs take longer so they finish last.
			sc.delays[url] = time.Duration(6-i) * 3 * time.Millisecond
			reg.Clubs = append(reg.Clubs, club(reg.ID, site, site))
			want = append(want, url)
		}
		regions = append(regions, reg)
	}

	obs := &recordingObserver{}
	report, err := NewRunner(sc, 8, obs).Run(context.Background(), &region.Set{Regions: regions})
	require.NoError(t, err)

	got := make([]string, 0, len(report.Records))
	for _, rec := range report.Records {
		got = append(got, *rec.Website)
	}
	assert.Equal(t, want, got)

	// Progress lines are emitted in input order too, with banners in between.
	require.Len(t, obs.events, 18+3)
	assert.Equal(t, event{"region", "r0.geojson"}, obs.events[0])
	assert.Equal(t, event{"club", "[1/18] club-0-0.se -> 200"}, obs.events[1])
	assert.Equal(t, event{"region", "r1.geojson"}, obs.events[7])
	assert.Equal(t, event{"club", "[18/18] club-2-5.se -> 200"}, obs.events[20])
}

func TestRun_SequentialMatchesConcurrent(t *testing.T) {
	build := func() (*stubChecker, *region.Set) {
		sc := &stubChecker{outcomes: map[string]probe.Outcome{
			"https://a.se": probe.Success(200, "https://a.se/"),
			"https://b.se": probe.Success(404, "https://b.se/404"),
			"http://c.se":  probe.Success(301, "http://c.se/"),
		}}
		set := &region.Set{Regions: []*region.Region{
			{ID: "x", Clubs: []region.Club{club("x", "A", "a.se"), club("x", "B", "b.se")}},
			{ID: "y", Clubs: []region.Club{club("y", "C", "c.se"), club("y", "D", ""), club("y", "E", "e.se")}},
		}}
		return sc, set
	}

	sc1, set1 := build()
	seq, err := NewRunner(sc1, 1, nil).Run(context.Background(), set1)
	require.NoError(t, err)

	sc2, set2 := build()
	par, err := NewRunner(sc2, 4, nil).Run(context.Background(), set2)
	require.NoError(t, err)

	require.Equal(t, len(seq.Records), len(par.Records))
	for i := range seq.Records {
		assert.Equal(t, seq.Records[i].Outcome.Status(), par.Records[i].Outcome.Status())
		assert.Equal(t, seq.Records[i].Website, par.Records[i].Website)
	}
}

func TestRun_SummaryInvariant(t *testing.T) {
	sc := &stubChecker{outcomes: map[string]probe.Outcome{
		"https://ok.se":      probe.Success(200, "https://ok.se/"),
		"https://missing.se": probe.Success(404, "https://missing.se/"),
		"https://slow.se":    probe.TransportError(probe.ErrKindTimeout, nil),
		"http://slow.se":     probe.TransportError(probe.ErrKindTimeout, nil),
	}}
	set := &region.Set{
		Regions: []*region.Region{{ID: "r", Clubs: []region.Club{
			club("r", "Ok", "ok.se"),
			club("r", "NotFound", "missing.se"),
			club("r", "Slow", "slow.se"),
			club("r", "None", ""),
			club("r", "Unknown", "unknown.se"),
		}}},
		Missing: []string{"gone.geojson"},
		Failed:  []region.Failure{{ID: "bad.geojson", Err: errors.New("bad")}},
	}

	obs := &recordingObserver{}
	report, err := NewRunner(sc, 2, obs).Run(context.Background(), set)
	require.NoError(t, err)

	s := report.Summary
	assert.Equal(t, 5, s.TotalClubs)
	assert.Equal(t, 1, s.OK)
	assert.Equal(t, 3, s.Errors)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 4, s.Checked)
	assert.Equal(t, s.TotalClubs, s.OK+s.Errors+s.Missing)
	assert.Equal(t, []string{"gone.geojson"}, s.MissingFiles)
	assert.Equal(t, []string{"bad.geojson"}, s.FailedFiles)

	require.NotNil(t, obs.summary)
	assert.Equal(t, 5, obs.total)
}

func TestRun_EmptyRegions(t *testing.T) {
	set := &region.Set{Regions: []*region.Region{
		{ID: "empty-1"},
		{ID: "one", Clubs: []region.Club{club("one", "Solo", "")}},
		{ID: "empty-2"},
	}}

	obs := &recordingObserver{}
	report, err := NewRunner(&stubChecker{}, 3, obs).Run(context.Background(), set)
	require.NoError(t, err)
	assert.Len(t, report.Records, 1)

	assert.Equal(t, []event{
		{"region", "empty-1"},
		{"region", "one"},
		{"club", "[1/1] Solo -> NO WEBSITE"},
		{"region", "empty-2"},
	}, obs.events)
}

func TestRun_NoRegions(t *testing.T) {
	report, err := NewRunner(&stubChecker{}, 0, nil).Run(context.Background(), &region.Set{})
	require.NoError(t, err)
	assert.Empty(t, report.Records)
	assert.Equal(t, 0, report.Summary.TotalClubs)
}

func TestRun_Canceled(t *testing.T) {
	sc := &stubChecker{
		outcomes: map[string]probe.Outcome{},
		delays:   map[string]time.Duration{},
	}
	reg := &region.Region{ID: "r"}
	for i := 0; i < 50; i++ {
		site := fmt.Sprintf("c%d.se", i)
		sc.delays["https://"+site] = 20 * time.Millisecond
		sc.outcomes["https://"+site] = probe.Success(200, "https://"+site)
		reg.Clubs = append(reg.Clubs, club("r", site, site))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	report, err := NewRunner(sc, 2, nil).Run(ctx, &region.Set{Regions: []*region.Region{reg}})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, sc.callCount(), 50, "probing stops after cancellation")
}

func TestNewRunner_Concurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, NewRunner(nil, 0, nil).concurrency)
	assert.Equal(t, MaxConcurrency, NewRunner(nil, 1000, nil).concurrency)
	assert.Equal(t, 3, NewRunner(nil, 3, nil).concurrency)
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Outcome: probe.Success(200, "x")},
		{Outcome: probe.Success(200, "y")},
		{Outcome: probe.Success(503, "z")},
		{Outcome: probe.TransportError(probe.ErrKindTLS, nil)},
		{Outcome: probe.NoWebsite()},
	}

	s := Summarize(records)
	assert.Equal(t, Summary{TotalClubs: 5, Checked: 4, OK: 2, Errors: 2, Missing: 1}, s)
}
