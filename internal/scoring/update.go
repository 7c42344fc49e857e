// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package scoring

import (
	"math"
	"time"

	"github.com/perkola/activeboard/internal/config"
	"github.com/perkola/activeboard/internal/models"
)

// Observation is one telemetry reading after device resolution.
type Observation struct {
	Standing bool
	Outside  bool
	Steps    int
}

// Params holds the score update weights and limits.
type Params struct {
	// ElapsedCapMinutes bounds a single observation's time credit, so
	// a long gap between events (backlog, clock skew, a board waking
	// up after hours) cannot dump its whole duration into the counters.
	ElapsedCapMinutes float64

	StepWeight     float64
	StandingWeight float64
	OutsideWeight  float64

	// Location is the reference timezone for calendar-day boundaries.
	Location *time.Location
}

// ParamsFromConfig resolves the configured timezone and builds Params.
func ParamsFromConfig(cfg config.ScoringConfig) (Params, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Params{}, err
	}
	return Params{
		ElapsedCapMinutes: cfg.ElapsedCapMinutes,
		StepWeight:        cfg.StepWeight,
		StandingWeight:    cfg.StandingWeight,
		OutsideWeight:     cfg.OutsideWeight,
		Location:          loc,
	}, nil
}

// Apply folds one observation into the entry's counters and recomputes
// the composite score. The caller persists the entry afterwards; Apply
// itself never does partial work.
func (p Params) Apply(entry *models.ScoreEntry, obs Observation, now time.Time) {
	elapsed := now.Sub(entry.LastUpdate).Minutes()
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > p.ElapsedCapMinutes {
		elapsed = p.ElapsedCapMinutes
	}

	if obs.Standing {
		entry.StandingMinutes = round2(entry.StandingMinutes + elapsed)
	}
	if obs.Outside {
		entry.OutsideMinutes = round2(entry.OutsideMinutes + elapsed)
	}
	entry.Steps += obs.Steps
	entry.Score = p.Score(entry)
	entry.LastUpdate = now
}

// Score computes the weighted composite score from the entry's
// counters, rounded up to the next integer.
func (p Params) Score(entry *models.ScoreEntry) int {
	raw := float64(entry.Steps)*p.StepWeight +
		entry.StandingMinutes*p.StandingWeight +
		entry.OutsideMinutes*p.OutsideWeight
	return int(math.Ceil(raw))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
