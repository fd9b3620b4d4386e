package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/whatscottcodes/paceutils/generic"
)

// InitSentry is a no-op when dsn is empty.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// CaptureBackendErr reports only backend failures. Bad input and unknown
// indicators are the caller's problem, not an incident.
func CaptureBackendErr(err error) {
	if err == nil || generic.IsClientError(err) || generic.IsNotFound(err) {
		return
	}
	CaptureErr(err)
}
