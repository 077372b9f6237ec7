package routing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeZip(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "already five digits", in: "07004", want: "07004"},
		{name: "zero padding", in: "7004", want: "07004"},
		{name: "single digit", in: "7", want: "00007"},
		{name: "surrounding whitespace", in: " 07004 ", want: "07004"},
		{name: "empty", in: "", wantErr: true},
		{name: "too long", in: "070041", wantErr: true},
		{name: "letters", in: "0700a", wantErr: true},
		{name: "zip+4", in: "07004-1234", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeZip(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidZip)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestZipIndexLoadAndLookup(t *testing.T) {
	registry, err := NewRegistry(validTiers())
	require.NoError(t, err)
	idx := NewZipIndex(registry)

	t.Run("empty index misses", func(t *testing.T) {
		_, ok := idx.Lookup("07004")
		assert.False(t, ok)
		assert.Zero(t, idx.Stats().TotalZips)
	})

	loaded, skipped := idx.Load([]ZipRecord{
		{Zip: "07004", Tier: "tier_1"},
		{Zip: "7005", Tier: "tier_1"},  // normalized to 07005
		{Zip: "10001", Tier: "tier_2"},
		{Zip: "garbage", Tier: "tier_2"},  // malformed, skipped
		{Zip: "20002", Tier: "tier_9"},    // unknown tier, skipped
		{Zip: "07004", Tier: "tier_3"},    // duplicate, first-seen wins
	})
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 3, skipped)

	t.Run("lookup present zips", func(t *testing.T) {
		tier, ok := idx.Lookup("07004")
		require.True(t, ok)
		assert.Equal(t, TierID("tier_1"), tier, "first-seen tier wins for duplicate zips")

		tier, ok = idx.Lookup("07005")
		require.True(t, ok)
		assert.Equal(t, TierID("tier_1"), tier)

		tier, ok = idx.Lookup("10001")
		require.True(t, ok)
		assert.Equal(t, TierID("tier_2"), tier)
	})

	t.Run("lookup absent zip", func(t *testing.T) {
		_, ok := idx.Lookup("00000")
		assert.False(t, ok)
	})

	t.Run("stats", func(t *testing.T) {
		stats := idx.Stats()
		assert.Equal(t, 3, stats.TotalZips)
		assert.Equal(t, 2, stats.PerTier["tier_1"])
		assert.Equal(t, 1, stats.PerTier["tier_2"])
		assert.Equal(t, 3, stats.Skipped)
		assert.False(t, stats.LoadedAt.IsZero())
	})

	t.Run("reload replaces snapshot wholesale", func(t *testing.T) {
		loaded, _ := idx.Load([]ZipRecord{{Zip: "30303", Tier: "tier_3"}})
		assert.Equal(t, 1, loaded)

		_, ok := idx.Lookup("07004")
		assert.False(t, ok, "old snapshot entries must be gone")

		tier, ok := idx.Lookup("30303")
		require.True(t, ok)
		assert.Equal(t, TierID("tier_3"), tier)
	})
}

func TestZipIndexSamplesBounded(t *testing.T) {
	registry, err := NewRegistry(validTiers())
	require.NoError(t, err)
	idx := NewZipIndex(registry)

	records := make([]ZipRecord, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, ZipRecord{Zip: fmt.Sprintf("%05d", 10000+i), Tier: "tier_1"})
	}
	idx.Load(records)

	samples := idx.Samples()
	assert.Len(t, samples["tier_1"], 20)
}
