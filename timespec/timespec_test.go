package timespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSeconds(t *testing.T) {
	cases := map[string]int64{
		"5m":  300,
		"1h":  3600,
		"2d":  2 * 86400,
		"1w":  7 * 86400,
		"1t":  31 * 86400,
		"1y":  365 * 86400,
		"90":  90,
		"":    0,
		"bad": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ToSeconds(in), "input %q", in)
	}
}

func TestRoundToGranularityNowSentinel(t *testing.T) {
	old := Now
	defer func() { Now = old }()
	Now = func() int64 { return 1000 }

	assert.Equal(t, int64(900), RoundToGranularity("N", 300))
}

func TestRoundToGranularityExplicit(t *testing.T) {
	assert.Equal(t, int64(1200), RoundToGranularity("1234", 300))
	assert.Equal(t, int64(1234), RoundToGranularity("1234", 0))
}

func TestParseUpdateRate(t *testing.T) {
	sec, aligned := ParseUpdateRate("5m aligned")
	assert.Equal(t, int64(300), sec)
	assert.True(t, aligned)

	sec, aligned = ParseUpdateRate("300")
	assert.Equal(t, int64(300), sec)
	assert.False(t, aligned)

	sec, aligned = ParseUpdateRate("not a rate")
	assert.Equal(t, int64(0), sec)
	assert.False(t, aligned)
}

func TestParseCustomResolutionBareCount(t *testing.T) {
	archives := ParseCustomResolution("100", 300)
	if assert.Len(t, archives, 1) {
		assert.Equal(t, int64(1), archives[0].Multiplier)
		assert.Equal(t, int64(110), archives[0].Count)
	}
}

func TestParseCustomResolutionStepForSpan(t *testing.T) {
	archives := ParseCustomResolution("5m for 2d, 1h for 30d", 300)
	if assert.Len(t, archives, 2) {
		assert.Equal(t, int64(1), archives[0].Multiplier)
		assert.Equal(t, int64(12), archives[1].Multiplier)
	}
}

func TestParseCustomResolutionPair(t *testing.T) {
	archives := ParseCustomResolution("100, 12 50", 300)
	if assert.Len(t, archives, 2) {
		assert.Equal(t, int64(1), archives[0].Multiplier)
		assert.Equal(t, int64(12), archives[1].Multiplier)
		assert.Equal(t, int64(55), archives[1].Count)
	}
}

func TestNormalProfileShape(t *testing.T) {
	archives := NormalProfile()
	assert.Len(t, archives, 4)
	assert.Equal(t, int64(1), archives[0].Multiplier)
}

func TestHugeProfileShape(t *testing.T) {
	archives := HugeProfile()
	assert.Len(t, archives, 1)
}
