package sentrymiddleware

import (
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
)

// Sentry attaches a Sentry hub to every request and reports panics. It must
// sit inside chi's Recoverer; with nil options it repanics so the Recoverer
// still writes the 500 response.
func Sentry(options *sentryhttp.Options) func(http.Handler) http.Handler {
	if options == nil {
		options = &sentryhttp.Options{Repanic: true, Timeout: 2 * time.Second}
	}
	return sentryhttp.New(*options).Handle
}
