package models

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Persisted model kinds
const (
	KindOLS = "ols"
	KindGBT = "gbt"
)

var ErrUnknownModelKind = errors.New("unknown persisted model kind")

type envelope struct {
	Kind string    `json:"kind"`
	OLS  *OLSModel `json:"ols,omitempty"`
	GBT  *GBTModel `json:"gbt,omitempty"`
}

// Marshal serializes a fitted model into its json envelope
func Marshal(model Model) ([]byte, error) {
	var env envelope
	switch m := model.(type) {
	case *OLSRegression:
		state := m.Model()
		env = envelope{Kind: KindOLS, OLS: &state}
	case *GradientBoostedTrees:
		state := m.Model()
		env = envelope{Kind: KindGBT, GBT: &state}
	default:
		return nil, fmt.Errorf("%T, %w", model, ErrUnknownModelKind)
	}
	return json.MarshalIndent(env, "", "  ")
}

// Unmarshal restores a model from its json envelope
func Unmarshal(data []byte) (Model, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unable to decode model, %w", err)
	}
	switch {
	case env.Kind == KindOLS && env.OLS != nil:
		return NewOLSRegressionFromModel(*env.OLS)
	case env.Kind == KindGBT && env.GBT != nil:
		return NewGradientBoostedTreesFromModel(*env.GBT)
	}
	return nil, fmt.Errorf("%q, %w", env.Kind, ErrUnknownModelKind)
}

// Save writes a fitted model to path
func Save(path string, model Model) error {
	data, err := Marshal(model)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write model to %s, %w", path, err)
	}
	return nil
}

// Load reads a model written by Save. A missing file is reported with os.ErrNotExist in the
// chain.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read model %s, %w", path, err)
	}
	return Unmarshal(data)
}

// BaselineFile is the file name of the baseline model of a horizon
func BaselineFile(horizon int) string {
	return fmt.Sprintf("baseline_day%d.json", horizon)
}

// BoostedFile is the file name of the boosted model of a horizon
func BoostedFile(horizon int) string {
	return fmt.Sprintf("salinity_day%d.json", horizon)
}
