package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mediabridge/internal/models"
)

func countingAttempt(name string, calls *[]string, status int, token string) Attempt {
	return Attempt{
		Name: name,
		Do: func(context.Context) AttemptOutcome {
			*calls = append(*calls, name)
			out := AttemptOutcome{Status: status}
			if token != "" {
				out.Result = &AuthResult{UserID: "u1", Token: token}
			}
			return out
		},
	}
}

func TestNegotiator_StopsAtFirstSuccess(t *testing.T) {
	var calls []string
	n := NewNegotiator(models.BackendJellyfin, nil)

	res, err := n.Negotiate(context.Background(), []Attempt{
		countingAttempt("a", &calls, http.StatusUnauthorized, ""),
		countingAttempt("b", &calls, http.StatusOK, "tok"),
		countingAttempt("c", &calls, http.StatusOK, "other"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "b", res.Shape)
	assert.Equal(t, "tok", res.Result.Token)
}

func TestNegotiator_OKWithoutTokenIsRejected(t *testing.T) {
	var calls []string
	n := NewNegotiator(models.BackendEmby, nil)

	_, err := n.Negotiate(context.Background(), []Attempt{
		countingAttempt("a", &calls, http.StatusOK, ""),
		countingAttempt("b", &calls, http.StatusBadRequest, ""),
	})
	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 2, authErr.Attempts)
	assert.Equal(t, http.StatusBadRequest, authErr.LastStatus)
	assert.Equal(t, "authentication failed", authErr.Error())
}

func TestNegotiator_CapsRoundTrips(t *testing.T) {
	var calls []string
	attempts := make([]Attempt, 0, 6)
	for _, name := range []string{"1", "2", "3", "4", "5", "6"} {
		attempts = append(attempts, countingAttempt(name, &calls, http.StatusUnauthorized, ""))
	}

	res, err := NewNegotiator(models.BackendEmby, nil).Negotiate(context.Background(), attempts)
	require.Error(t, err)
	assert.Len(t, calls, MaxAttempts)
	assert.Equal(t, MaxAttempts, res.Attempts)
}

func TestNegotiator_TransportFailureKeepsLastStatus(t *testing.T) {
	var calls []string
	attempts := []Attempt{
		countingAttempt("a", &calls, http.StatusForbidden, ""),
		{Name: "b", Do: func(context.Context) AttemptOutcome {
			calls = append(calls, "b")
			return AttemptOutcome{Err: errors.New("connection refused")}
		}},
	}

	_, err := NewNegotiator(models.BackendJellyfin, nil).Negotiate(context.Background(), attempts)
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.LastStatus)
	assert.Equal(t, 2, authErr.Attempts)
}

func TestNegotiator_CancelledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNegotiator(models.BackendJellyfin, nil).Negotiate(ctx, []Attempt{
		countingAttempt("a", &calls, http.StatusOK, "tok"),
	})
	require.Error(t, err)
	assert.Empty(t, calls)
}
