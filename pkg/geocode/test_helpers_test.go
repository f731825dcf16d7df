package geocode

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// fakeProvider is a scripted Provider for cascade tests.
type fakeProvider struct {
	name      string
	available bool
	result    *Result
	err       error
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Geocode(_ context.Context, _ Request) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func jsonHandler(body string, check func(r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}
