package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSequencer(t *testing.T) (*FolioSequencer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFolioSequencer(client), mr
}

func TestFolioSequencerMonotonicPerDay(t *testing.T) {
	seq, _ := newTestSequencer(t)
	seq.now = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := seq.Next(ctx, "OT")
	require.NoError(t, err)
	require.Equal(t, "OT-20240110-001", first)

	second, err := seq.Next(ctx, "OT")
	require.NoError(t, err)
	require.Equal(t, "OT-20240110-002", second)

	require.Regexp(t, FolioPattern, first)
	require.Regexp(t, FolioPattern, second)
}

func TestFolioSequencerResetsAcrossDays(t *testing.T) {
	seq, _ := newTestSequencer(t)
	day := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	seq.now = func() time.Time { return day }
	ctx := context.Background()

	_, err := seq.Next(ctx, "ENT")
	require.NoError(t, err)

	day = day.Add(2 * time.Hour)
	folio, err := seq.Next(ctx, "ENT")
	require.NoError(t, err)
	require.Equal(t, "ENT-20240111-001", folio)
}

func TestFolioSequencerIndependentPrefixes(t *testing.T) {
	seq, _ := newTestSequencer(t)
	seq.now = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	ot, err := seq.Next(ctx, "OT")
	require.NoError(t, err)
	req, err := seq.Next(ctx, "REQ")
	require.NoError(t, err)
	require.Equal(t, "OT-20240110-001", ot)
	require.Equal(t, "REQ-20240110-001", req)
}

func TestFolioSequencerGrowsPastThreeDigits(t *testing.T) {
	seq, mr := newTestSequencer(t)
	seq.now = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	mr.Set("folio:SAL:20240110", "999")

	folio, err := seq.Next(context.Background(), "SAL")
	require.NoError(t, err)
	require.Equal(t, "SAL-20240110-1000", folio)
	require.Regexp(t, FolioPattern, folio)
}

func TestNextFolioAfter(t *testing.T) {
	require.Equal(t, "OC-20240110-001", NextFolioAfter("OC", "20240110", ""))
	require.Equal(t, "OC-20240110-008", NextFolioAfter("OC", "20240110", "OC-20240110-007"))
}
