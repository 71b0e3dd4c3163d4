package probe

import (
	"context"
	"strings"

	"github.com/pfrederiksen/club-websites/internal/logger"
)

// Resolution is the final verdict for one listed website.
type Resolution struct {
	// Website is the URL behind Outcome; empty when there was none to check.
	Website  string
	Outcome  Outcome
	Attempts int
}

// Resolve checks a club's listed website. The HTTPS form is probed first;
// if that fails at the transport level, the http:// form of the same URL
// is probed once and its result is final.
func Resolve(ctx context.Context, c Checker, rawWebsite string) Resolution {
	target := Normalize(rawWebsite)
	if target == "" {
		return Resolution{Outcome: NoWebsite()}
	}

	res := Resolution{
		Website:  target,
		Outcome:  c.Probe(ctx, target),
		Attempts: 1,
	}
	if res.Outcome.Kind != KindTransportError || !strings.HasPrefix(target, "https://") {
		return res
	}
	if ctx.Err() != nil {
		return res
	}

	fallback := downgrade(target)
	logger.Debug("Falling back to plain HTTP", logger.Fields{
		"url":   target,
		"error": res.Outcome.ErrorKind,
	})
	logger.IncrCounter("probe.fallback")

	res.Website = fallback
	res.Outcome = c.Probe(ctx, fallback)
	res.Attempts = 2
	return res
}
