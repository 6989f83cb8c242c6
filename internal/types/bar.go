package types

import "time"

// Granularity identifies the sampling interval of a bar series.
type Granularity string

const (
	Granularity1m  Granularity = "1m"
	Granularity5m  Granularity = "5m"
	Granularity15m Granularity = "15m"
	Granularity30m Granularity = "30m"
	Granularity1h  Granularity = "1h"
	Granularity1d  Granularity = "1d"
)

// AllGranularities lists every supported granularity, used for config validation.
var AllGranularities = []any{
	string(Granularity1m),
	string(Granularity5m),
	string(Granularity15m),
	string(Granularity30m),
	string(Granularity1h),
	string(Granularity1d),
}

// Bar is a single OHLCV price sample for one time interval.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Day returns the bar's trading day truncated to midnight UTC.
func (b Bar) Day() time.Time {
	return Day(b.Time)
}

// Day truncates t to midnight UTC, the canonical form of a trading day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
