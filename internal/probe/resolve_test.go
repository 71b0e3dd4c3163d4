package probe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeChecker answers probes from a table and records every call.
type fakeChecker struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	calls    []string
}

func (f *fakeChecker) Probe(_ context.Context, url string) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if out, ok := f.outcomes[url]; ok {
		return out
	}
	return TransportError(ErrKindDNS, errors.New("no such host"))
}

func TestResolve_NoWebsite(t *testing.T) {
	fc := &fakeChecker{}

	res := Resolve(context.Background(), fc, "")

	assert.Equal(t, KindNoWebsite, res.Outcome.Kind)
	assert.Equal(t, StatusNoWebsite, res.Outcome.Status())
	assert.Empty(t, res.Website)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, fc.calls, "no network call for a club without website")
}

func TestResolve_PrimarySuccess(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok", 200},
		{"not found", 404},
		{"server error", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeChecker{outcomes: map[string]Outcome{
				"https://alpha.se": Success(tt.status, "https://www.alpha.se/"),
			}}

			res := Resolve(context.Background(), fc, "alpha.se")

			assert.Equal(t, []string{"https://alpha.se"}, fc.calls)
			assert.Equal(t, "https://alpha.se", res.Website)
			assert.Equal(t, tt.status, res.Outcome.StatusCode)
			assert.Equal(t, "https://www.alpha.se/", res.Outcome.FinalURL)
			assert.Equal(t, 1, res.Attempts)
		})
	}
}

func TestResolve_FallbackToHTTP(t *testing.T) {
	fc := &fakeChecker{outcomes: map[string]Outcome{
		"https://alpha.se": TransportError(ErrKindTimeout, errors.New("timeout")),
		"http://alpha.se":  Success(200, "http://www.alpha.se/"),
	}}

	res := Resolve(context.Background(), fc, "alpha.se")

	assert.Equal(t, []string{"https://alpha.se", "http://alpha.se"}, fc.calls)
	assert.Equal(t, "http://alpha.se", res.Website)
	assert.Equal(t, KindSuccess, res.Outcome.Kind)
	assert.Equal(t, 200, res.Outcome.StatusCode)
	assert.Equal(t, "http://www.alpha.se/", res.Outcome.FinalURL)
	assert.Equal(t, 2, res.Attempts)
}

func TestResolve_FallbackFailsToo(t *testing.T) {
	fc := &fakeChecker{outcomes: map[string]Outcome{
		"https://beta.se": TransportError(ErrKindTLS, errors.New("bad cert")),
		"http://beta.se":  TransportError(ErrKindRefused, errors.New("refused")),
	}}

	res := Resolve(context.Background(), fc, "https://beta.se")

	assert.Len(t, fc.calls, 2, "never a third attempt")
	assert.Equal(t, "http://beta.se", res.Website)
	assert.Equal(t, "ERROR: ConnectionRefused", res.Outcome.Status())
}

func TestResolve_NoFallbackForHTTP(t *testing.T) {
	fc := &fakeChecker{outcomes: map[string]Outcome{
		"http://gamma.se": TransportError(ErrKindRefused, errors.New("refused")),
	}}

	res := Resolve(context.Background(), fc, "http://gamma.se")

	assert.Equal(t, []string{"http://gamma.se"}, fc.calls)
	assert.Equal(t, "http://gamma.se", res.Website)
	assert.Equal(t, ErrKindRefused, res.Outcome.ErrorKind)
	assert.Equal(t, 1, res.Attempts)
}

func TestResolve_ReplacesFirstSchemeOnly(t *testing.T) {
	fc := &fakeChecker{}

	res := Resolve(context.Background(), fc, "https://delta.se/?next=https://elsewhere.se")

	assert.Equal(t, "http://delta.se/?next=https://elsewhere.se", res.Website)
	assert.Equal(t, 2, res.Attempts)
}

func TestResolve_CanceledSkipsFallback(t *testing.T) {
	fc := &fakeChecker{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Resolve(ctx, fc, "alpha.se")

	assert.Len(t, fc.calls, 1)
	assert.Equal(t, "https://alpha.se", res.Website)
}

func TestResolve_BlankWebsite(t *testing.T) {
	fc := &fakeChecker{}

	res := Resolve(context.Background(), fc, " \t ")

	assert.Equal(t, KindNoWebsite, res.Outcome.Kind)
	assert.Empty(t, res.Website)
	assert.Empty(t, fc.calls)
}
