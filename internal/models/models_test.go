package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForMinutes(t *testing.T) {
	cases := []struct {
		name    string
		minutes int
		want    SpeedTier
	}{
		{"no rounds recorded", 0, SpeedTierAverage},
		{"negative sentinel", -1, SpeedTierAverage},
		{"well under the fast threshold", 200, SpeedTierFast},
		{"exactly the fast threshold", FastThresholdMinutes, SpeedTierFast},
		{"between thresholds", 240, SpeedTierAverage},
		{"exactly the slow threshold", SlowThresholdMinutes, SpeedTierAverage},
		{"over the slow threshold", SlowThresholdMinutes + 1, SpeedTierSlow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TierForMinutes(tc.minutes))
		})
	}
}

func TestValidWindow(t *testing.T) {
	for _, w := range Windows() {
		assert.True(t, ValidWindow(w))
	}
	assert.False(t, ValidWindow(PreferenceWindow("evening")))
	assert.False(t, ValidWindow(PreferenceWindow("")))
}
