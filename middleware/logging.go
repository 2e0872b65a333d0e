package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Logging records method, duration and outcome for every dispatch. It never
// alters the request or response.
type Logging struct {
	logger *logrus.Logger
	clock  clockwork.Clock
}

// NewLogging creates the middleware. A nil logger defaults to logrus.New().
func NewLogging(logger *logrus.Logger) *Logging {
	return NewLoggingWithClock(logger, clockwork.NewRealClock())
}

// NewLoggingWithClock creates the middleware on an injected clock.
func NewLoggingWithClock(logger *logrus.Logger, clock clockwork.Clock) *Logging {
	if logger == nil {
		logger = logrus.New()
	}
	return &Logging{logger: logger, clock: clock}
}

func (l *Logging) Name() string { return "logging" }

func (l *Logging) Call(ctx context.Context, req *http.Request, next Handler) (*http.Response, error) {
	start := l.clock.Now()
	resp, err := next(ctx, req)
	elapsed := l.clock.Since(start)

	fields := logrus.Fields{
		"method":   MethodFromContext(ctx),
		"url":      req.URL.String(),
		"duration": elapsed.Round(time.Microsecond),
	}
	switch {
	case err != nil:
		l.logger.WithFields(fields).WithError(err).Warn("rpc call failed")
	case resp != nil:
		fields["status"] = resp.StatusCode
		l.logger.WithFields(fields).Debug("rpc call completed")
	}
	return resp, err
}
