// Package alert grades forecast salinity against rice cultivation thresholds.
package alert

import (
	"errors"
	"fmt"

	"github.com/aouyang1/go-salinity/forecast"
	"github.com/aouyang1/go-salinity/notify"

	"github.com/jonboulle/clockwork"
)

// Rice phase thresholds in ‰
const (
	DefaultSafeSowing = 0.5
	DefaultCritical   = 2.0
	DefaultRedAlert   = 3.0
)

var (
	ErrThresholdOrder = errors.New("thresholds must satisfy 0 <= safe sowing <= critical <= red alert")
	ErrNoForecast     = errors.New("no forecast to assess")
	ErrUnknownLevel   = errors.New("unknown alert level")
)

type Level int

const (
	// LevelSafe is at or below the safe sowing threshold
	LevelSafe Level = iota
	// LevelCaution is above safe sowing, the field is still being leached
	LevelCaution
	// LevelCritical exceeds what rice tolerates
	LevelCritical
	// LevelRedAlert calls for closing the salinity sluices
	LevelRedAlert
)

var levelNames = []string{"safe", "caution", "critical", "red_alert"}

func (l Level) String() string {
	if l < LevelSafe || l > LevelRedAlert {
		return "unknown"
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	if l < LevelSafe || l > LevelRedAlert {
		return nil, fmt.Errorf("%d, %w", int(l), ErrUnknownLevel)
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	for i, name := range levelNames {
		if name == string(text) {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("%q, %w", string(text), ErrUnknownLevel)
}

// Thresholds are the upper bounds of the safe, caution, and critical levels
type Thresholds struct {
	SafeSowing float64 `json:"safe_sowing"`
	Critical   float64 `json:"critical"`
	RedAlert   float64 `json:"red_alert"`
}

func NewDefaultThresholds() *Thresholds {
	return &Thresholds{
		SafeSowing: DefaultSafeSowing,
		Critical:   DefaultCritical,
		RedAlert:   DefaultRedAlert,
	}
}

// Validate returns a copy of the thresholds, the defaults when nil
func (t *Thresholds) Validate() (*Thresholds, error) {
	if t == nil {
		return NewDefaultThresholds(), nil
	}
	if t.SafeSowing < 0 || t.SafeSowing > t.Critical || t.Critical > t.RedAlert {
		return nil, ErrThresholdOrder
	}
	th := *t
	return &th, nil
}

// Level grades a salinity value. Each bound belongs to the lower level.
func (t *Thresholds) Level(salinity float64) Level {
	switch {
	case salinity > t.RedAlert:
		return LevelRedAlert
	case salinity > t.Critical:
		return LevelCritical
	case salinity > t.SafeSowing:
		return LevelCaution
	}
	return LevelSafe
}

// PointAlert is the graded prediction of one horizon
type PointAlert struct {
	DayAhead     int     `json:"day_ahead"`
	Date         string  `json:"date"`
	SalinityPred float64 `json:"salinity_pred"`
	Level        Level   `json:"level"`
}

// Assessment grades every point of a forecast
type Assessment struct {
	Province     string       `json:"province"`
	AsOf         string       `json:"as_of"`
	ModelVersion string       `json:"model_version"`
	Thresholds   Thresholds   `json:"thresholds"`
	Points       []PointAlert `json:"points"`

	// Worst is the highest level of any point
	Worst Level `json:"worst"`

	// FirstCritical is the earliest date at critical or worse, empty if none
	FirstCritical string `json:"first_critical,omitempty"`
}

// Assess grades a forecast. Nil thresholds use the defaults.
func Assess(res *forecast.Result, th *Thresholds) (*Assessment, error) {
	if res == nil || len(res.Forecast) == 0 {
		return nil, ErrNoForecast
	}
	th, err := th.Validate()
	if err != nil {
		return nil, err
	}

	a := &Assessment{
		Province:     res.Province,
		AsOf:         res.AsOf,
		ModelVersion: res.ModelVersion,
		Thresholds:   *th,
		Points:       make([]PointAlert, 0, len(res.Forecast)),
	}
	for _, p := range res.Forecast {
		level := th.Level(p.SalinityPred)
		a.Points = append(a.Points, PointAlert{
			DayAhead:     p.DayAhead,
			Date:         p.Date,
			SalinityPred: p.SalinityPred,
			Level:        level,
		})
		a.Worst = max(a.Worst, level)
		if level >= LevelCritical && a.FirstCritical == "" {
			a.FirstCritical = p.Date
		}
	}
	return a, nil
}

// Triggered is true when any point reaches a red alert
func (a *Assessment) Triggered() bool {
	return a.Worst == LevelRedAlert
}

// Event builds the alert event of a triggered assessment
func (a *Assessment) Event(clock clockwork.Clock) notify.Event {
	var peak PointAlert
	for _, p := range a.Points {
		if p.SalinityPred > peak.SalinityPred || peak.Date == "" {
			peak = p
		}
	}
	return notify.NewEvent(clock, notify.TypeAlertTriggered, notify.DefaultSource, map[string]any{
		"province":       a.Province,
		"as_of":          a.AsOf,
		"model_version":  a.ModelVersion,
		"level":          a.Worst.String(),
		"first_critical": a.FirstCritical,
		"peak_date":      peak.Date,
		"peak_salinity":  peak.SalinityPred,
	})
}
