package detection

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	th := Thresholds{Medium: 30, High: 60}

	tests := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{29, domain.RiskLow},
		{30, domain.RiskMedium},
		{59, domain.RiskMedium},
		{60, domain.RiskHigh},
		{1000, domain.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.score), "score %d", tt.score)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	for _, th := range []Thresholds{{30, 60}, {0, 0}, {10, 10}, {0, 100}} {
		prev := th.Classify(0).Rank()
		for score := 1; score <= 200; score++ {
			rank := th.Classify(score).Rank()
			assert.GreaterOrEqual(t, rank, prev, "thresholds %+v score %d", th, score)
			prev = rank
		}
	}
}

func TestClassifyEqualCutoffsSkipMedium(t *testing.T) {
	th := Thresholds{Medium: 40, High: 40}
	assert.Equal(t, domain.RiskLow, th.Classify(39))
	assert.Equal(t, domain.RiskHigh, th.Classify(40))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, Thresholds{Medium: 30, High: 60}.Validate())
	assert.NoError(t, Thresholds{Medium: 0, High: 0}.Validate())
	assert.ErrorIs(t, Thresholds{Medium: 60, High: 30}.Validate(), domain.ErrInvalidConfig)
	assert.ErrorIs(t, Thresholds{Medium: -1, High: 30}.Validate(), domain.ErrInvalidConfig)
}

func TestThresholdsFrom(t *testing.T) {
	th := ThresholdsFrom(domain.DefaultConfig().Detection)
	assert.Equal(t, Thresholds{Medium: 30, High: 60}, th)
}
