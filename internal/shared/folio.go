package shared

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// FolioPattern validates document folios such as OT-20240110-001.
// The sequence is zero-padded to three digits but keeps growing past 999.
var FolioPattern = regexp.MustCompile(`^[A-Z]{2,4}-\d{8}-\d{3,}$`)

const folioKeyTTL = 48 * time.Hour

// FolioSequencer issues day-scoped sequential document folios backed by an
// atomic Redis counter, so concurrent writers never observe the same sequence.
// The unique constraint on the folio column remains the final backstop.
type FolioSequencer struct {
	client *redis.Client
	now    func() time.Time
}

// NewFolioSequencer constructs a sequencer on the given Redis client.
func NewFolioSequencer(client *redis.Client) *FolioSequencer {
	return &FolioSequencer{client: client, now: time.Now}
}

// Next returns the next folio for the prefix, e.g. Next(ctx, "OT").
func (s *FolioSequencer) Next(ctx context.Context, prefix string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("folio sequencer not initialised")
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", errors.New("folio prefix required")
	}
	day := s.now().Format("20060102")
	key := fmt.Sprintf("folio:%s:%s", prefix, day)
	seq, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("folio: incr %s: %w", key, err)
	}
	if seq == 1 {
		// Counters are per day, so let stale keys age out on their own.
		_ = s.client.Expire(ctx, key, folioKeyTTL).Err()
	}
	return FormatFolio(prefix, day, seq), nil
}

// FormatFolio renders {PREFIX}-{YYYYMMDD}-{seq:03d}.
func FormatFolio(prefix, day string, seq int64) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day, seq)
}

// NextFolioAfter derives the successor of the highest same-day folio. It is
// the fallback path used inside an insert transaction when Redis is
// unavailable, preserving the read-max-then-increment behaviour.
func NextFolioAfter(prefix, day, maxExisting string) string {
	seq := int64(1)
	if maxExisting != "" {
		parts := strings.Split(maxExisting, "-")
		if n, err := strconv.ParseInt(parts[len(parts)-1], 10, 64); err == nil {
			seq = n + 1
		}
	}
	return FormatFolio(prefix, day, seq)
}
