package backend

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
)

// MaxAttempts bounds the round trips a single negotiation may make.
const MaxAttempts = 4

// AttemptOutcome is what one credential shape produced. Status is 0 when no
// HTTP response was received.
type AttemptOutcome struct {
	Status int
	Result *AuthResult
	Err    error
}

// succeeded reports whether the outcome is an HTTP 200 carrying a token.
func (o AttemptOutcome) succeeded() bool {
	return o.Status == http.StatusOK && o.Result != nil && o.Result.Token != ""
}

// Attempt is one credential shape.
type Attempt struct {
	Name string
	Do   func(ctx context.Context) AttemptOutcome
}

// Negotiation is the result of folding a list of attempts.
type Negotiation struct {
	Result     *AuthResult
	Shape      string
	Attempts   int
	LastStatus int
}

// Negotiator tries credential shapes in order and stops at the first success.
type Negotiator struct {
	kind   models.BackendKind
	logger *slog.Logger
}

// NewNegotiator creates a negotiator for a backend kind.
func NewNegotiator(kind models.BackendKind, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{kind: kind, logger: logger}
}

// Negotiate runs attempts in order, each at most once, and never more than
// MaxAttempts of them. On failure it returns an *AuthenticationError carrying
// the last observed status.
func (n *Negotiator) Negotiate(ctx context.Context, attempts []Attempt) (*Negotiation, error) {
	if len(attempts) > MaxAttempts {
		attempts = attempts[:MaxAttempts]
	}

	out := &Negotiation{}
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			break
		}
		outcome := attempt.Do(ctx)
		out.Attempts++
		if outcome.Status != 0 {
			out.LastStatus = outcome.Status
		}

		if outcome.succeeded() {
			observability.AuthAttemptsTotal.WithLabelValues(string(n.kind), attempt.Name, "success").Inc()
			n.logger.Debug("credential shape accepted",
				slog.String("shape", attempt.Name),
				slog.Int("attempt", out.Attempts),
			)
			out.Result = outcome.Result
			out.Shape = attempt.Name
			return out, nil
		}

		observability.AuthAttemptsTotal.WithLabelValues(string(n.kind), attempt.Name, "rejected").Inc()
		attrs := []any{
			slog.String("shape", attempt.Name),
			slog.Int("status", outcome.Status),
		}
		if outcome.Err != nil {
			attrs = append(attrs, slog.String("error", outcome.Err.Error()))
		}
		n.logger.Debug("credential shape rejected", attrs...)
	}

	return out, &AuthenticationError{Kind: n.kind, Attempts: out.Attempts, LastStatus: out.LastStatus}
}
