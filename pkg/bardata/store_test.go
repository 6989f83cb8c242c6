package bardata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantatrix/backlab/internal/types"
	"github.com/quantatrix/backlab/pkg/errors"
)

type StoreTestSuite struct {
	suite.Suite
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) TestValidateSeries() {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		times         []time.Time
		expectedError bool
	}{
		{
			name:          "Empty series",
			times:         nil,
			expectedError: false,
		},
		{
			name:          "Ascending series",
			times:         []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)},
			expectedError: false,
		},
		{
			name:          "Duplicate timestamp",
			times:         []time.Time{start, start},
			expectedError: true,
		},
		{
			name:          "Out of order",
			times:         []time.Time{start.AddDate(0, 0, 1), start},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			bars := make([]types.Bar, 0, len(tt.times))
			for _, t := range tt.times {
				bars = append(bars, types.Bar{Symbol: "AAPL", Time: t, Close: 100})
			}

			err := ValidateSeries(bars)
			if tt.expectedError {
				suite.Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeDataOutOfOrder))
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *StoreTestSuite) TestSessionBounds() {
	t := time.Date(2024, 3, 4, 15, 30, 45, 0, time.UTC)

	start, end := SessionBounds(t)
	suite.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)
	suite.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), end)
}
