package types

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/quantatrix/backlab/pkg/errors"
)

// Candidate is an entry signal produced by a Scanner for one simulated day.
// A Candidate is immutable once produced; the engine consumes it once to size
// and open a position, or discards it when capacity is exhausted.
type Candidate struct {
	Symbol     string    `yaml:"symbol" json:"symbol" validate:"required"`
	ScanDate   time.Time `yaml:"scan_date" json:"scan_date" validate:"required"`
	Score      float64   `yaml:"score" json:"score"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price" validate:"required,gt=0"`
	StopPrice  float64   `yaml:"stop_price" json:"stop_price" validate:"gte=0"`
	// Target is the suggested profit target. Can be None if the scanner has no target.
	Target optional.Option[float64] `yaml:"target" json:"target"`
	// Metadata carries strategy-specific key/value context, opaque to the engine.
	Metadata map[string]string `yaml:"metadata" json:"metadata"`
}

// Validate validates the Candidate struct.
func (c *Candidate) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidCandidate, "invalid candidate", err)
	}

	if c.Target.IsSome() && c.Target.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidCandidate, "target price must be positive")
	}

	return nil
}

// SortCandidates orders candidates by descending score, ties broken by symbol
// ascending. Admission order is part of the engine contract, so the sort is
// stable and fully deterministic.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}

		return candidates[i].Symbol < candidates[j].Symbol
	})
}
