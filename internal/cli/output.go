package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/pfrederiksen/club-websites/internal/check"
	"github.com/pfrederiksen/club-websites/internal/logger"
	"github.com/pfrederiksen/club-websites/internal/region"
)

const progressBarWidth = 30

// Progress prints run progress to the console. It implements check.Observer.
type Progress struct {
	w     io.Writer
	quiet bool
	bar   *progress.Model
}

// NewProgress creates a console observer. In quiet mode only the club total
// and the summary are printed; with showBar each club line is prefixed with
// a progress bar.
func NewProgress(w io.Writer, quiet, showBar bool) *Progress {
	p := &Progress{w: w, quiet: quiet}
	if showBar {
		bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth))
		p.bar = &bar
	}
	return p
}

func (p *Progress) Started(total int) {
	fmt.Fprintf(p.w, "\nTotal clubs to check: %d\n", total)
}

func (p *Progress) RegionStarted(name string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, "\n=== Checking file: %s ===\n", name)
}

func (p *Progress) ClubChecked(current, total int, club string, rec check.Record) {
	if p.quiet {
		return
	}
	if p.bar != nil && total > 0 {
		fmt.Fprintf(p.w, "%s ", p.bar.ViewAs(float64(current)/float64(total)))
	}
	fmt.Fprintf(p.w, "[%d/%d] %s -> %s\n", current, total, club, rec.Outcome.Status())
}

func (p *Progress) Finished(summary check.Summary) {
	WriteSummary(p.w, summary)
}

// WriteLoadIssues reports region files that were skipped.
func WriteLoadIssues(w io.Writer, set *region.Set) {
	for _, id := range set.Missing {
		fmt.Fprintf(w, "File missing: %s\n", id)
	}
	for _, f := range set.Failed {
		fmt.Fprintf(w, "File unreadable: %s (%v)\n", f.ID, f.Err)
	}
}

// WriteSummary prints the closing totals of a run.
func WriteSummary(w io.Writer, s check.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "Clubs:    %d\n", s.TotalClubs)
	fmt.Fprintf(w, "Checked:  %d\n", s.Checked)
	fmt.Fprintf(w, "OK (200): %d\n", s.OK)
	fmt.Fprintf(w, "Errors:   %d\n", s.Errors)
	fmt.Fprintf(w, "Missing:  %d\n", s.Missing)
	if n := len(s.MissingFiles) + len(s.FailedFiles); n > 0 {
		fmt.Fprintf(w, "Skipped files: %d\n", n)
	}
	fmt.Fprintf(w, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}

// WriteReportPaths tells where the reports were written.
func WriteReportPaths(w io.Writer, jsonPath, csvPath string) {
	fmt.Fprintf(w, "\nReport written to %s", jsonPath)
	if csvPath != "" {
		fmt.Fprintf(w, " and %s", csvPath)
	}
	fmt.Fprintln(w)
}

// WriteMetrics dumps collected metrics, sorted by name.
func WriteMetrics(w io.Writer, snap logger.Snapshot) {
	fmt.Fprintln(w, "\nMetrics:")

	for _, name := range sortedKeys(snap.Counters) {
		fmt.Fprintf(w, "  %s: %d\n", name, snap.Counters[name])
	}
	for _, name := range sortedKeys(snap.Gauges) {
		fmt.Fprintf(w, "  %s: %g\n", name, snap.Gauges[name])
	}
	for _, name := range sortedKeys(snap.Timings) {
		t := snap.Timings[name]
		fmt.Fprintf(w, "  %s: count=%d avg=%s min=%s max=%s\n",
			name, t.Count, t.Average.Round(time.Millisecond), t.Min.Round(time.Millisecond), t.Max.Round(time.Millisecond))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
