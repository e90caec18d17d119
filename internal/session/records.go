package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jmylchreest/mediabridge/internal/models"
	"github.com/jmylchreest/mediabridge/internal/observability"
	"github.com/jmylchreest/mediabridge/internal/repository"
)

// DefaultTTL is how long a record may stay idle before it is swept.
const DefaultTTL = 30 * time.Minute

const maxDescriptorLen = 512

// OpenParams describes a new login.
type OpenParams struct {
	UserID           string
	Username         string
	ConnectionLabel  string
	DeviceDescriptor string
	OriginAddress    string
}

// Records maintains the persisted active session table. The table is
// informational and never gates access.
type Records struct {
	repo   repository.ActiveSessionRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRecords creates a Records store.
func NewRecords(repo repository.ActiveSessionRepository, ttl time.Duration, logger *slog.Logger) *Records {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Records{
		repo:   repo,
		ttl:    ttl,
		now:    time.Now,
		logger: observability.WithComponent(logger, "session_records"),
	}
}

// TTL returns the idle timeout.
func (s *Records) TTL() time.Duration { return s.ttl }

// Open inserts a record for a new login and returns it.
func (s *Records) Open(ctx context.Context, p OpenParams) (*models.ActiveSession, error) {
	rec := &models.ActiveSession{
		SessionID:        uuid.NewString(),
		UserID:           p.UserID,
		Username:         p.Username,
		ConnectionLabel:  p.ConnectionLabel,
		DeviceDescriptor: truncate(p.DeviceDescriptor, maxDescriptorLen),
		OriginAddress:    p.OriginAddress,
		LastActivityAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("opening session record: %w", err)
	}
	observability.ActiveSessionRecords.Inc()
	s.logger.Debug("session opened",
		slog.String("user_id", rec.UserID),
		slog.String("device", rec.DeviceDescriptor),
	)
	return rec, nil
}

// Touch records activity for sessionID. Activity never moves backwards.
func (s *Records) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.repo.Touch(ctx, sessionID, s.now().UTC()); err != nil {
		return fmt.Errorf("touching session record: %w", err)
	}
	return nil
}

// Close deletes the caller's own record.
func (s *Records) Close(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.repo.DeleteBySessionID(ctx, sessionID); err != nil {
		return fmt.Errorf("closing session record: %w", err)
	}
	s.refreshGauge(ctx)
	return nil
}

// Sweep deletes records idle for longer than the TTL as of now. Activity
// is stored in UTC, so the cutoff is too.
func (s *Records) Sweep(ctx context.Context, now time.Time) (int64, error) {
	removed, err := s.repo.DeleteIdleBefore(ctx, now.UTC().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweeping session records: %w", err)
	}
	if removed > 0 {
		observability.SessionsSweptTotal.Add(float64(removed))
		s.logger.Info("idle sessions swept", slog.Int64("removed", removed))
	}
	s.refreshGauge(ctx)
	return removed, nil
}

// ListForUser returns a user's records, most recently active first.
func (s *Records) ListForUser(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// ListAll returns every record, most recently active first.
func (s *Records) ListAll(ctx context.Context) ([]*models.ActiveSession, error) {
	return s.repo.ListAll(ctx)
}

func (s *Records) refreshGauge(ctx context.Context) {
	if n, err := s.repo.Count(ctx); err == nil {
		observability.ActiveSessionRecords.Set(float64(n))
	}
}

// DeviceDescriptor describes the requesting device from its User-Agent and
// optional X-Device-Name header.
func DeviceDescriptor(r *http.Request) string {
	ua := strings.TrimSpace(r.UserAgent())
	name := strings.TrimSpace(r.Header.Get("X-Device-Name"))
	switch {
	case name != "" && ua != "":
		return name + " (" + ua + ")"
	case name != "":
		return name
	case ua != "":
		return ua
	default:
		return "unknown device"
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
