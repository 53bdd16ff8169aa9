package domain

import (
	"fmt"
	"math"
	"sync"
)

// StepSize is the lattice spacing, in degrees, used for grid sampling.
type StepSize float64

// Named step-size presets.
const (
	StepCoarse StepSize = 0.0005
	StepMedium StepSize = 0.0002
	StepFine   StepSize = 0.0001

	DefaultStep = StepMedium
)

var stepPresets = map[string]StepSize{
	"coarse": StepCoarse,
	"medium": StepMedium,
	"fine":   StepFine,
	// names used by the first version of the map UI
	"low":  StepCoarse,
	"high": StepFine,
}

// ParseStepSize resolves a preset name. Names match exactly.
func ParseStepSize(name string) (StepSize, error) {
	s, ok := stepPresets[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown step size %q", ErrInvalidInput, name)
	}
	return s, nil
}

// StepPresetNames lists the canonical preset names.
func StepPresetNames() []string {
	return []string{"coarse", "medium", "fine"}
}

// Validate checks that the step is a positive finite number.
func (s StepSize) Validate() error {
	f := float64(s)
	if !(f > 0) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: step size must be positive, got %v", ErrInvalidInput, f)
	}
	return nil
}

// Name returns the canonical preset name, or "custom".
func (s StepSize) Name() string {
	switch s {
	case StepCoarse:
		return "coarse"
	case StepMedium:
		return "medium"
	case StepFine:
		return "fine"
	}
	return "custom"
}

// StepSetting holds the step size used by enumerations that start after a
// change. Enumerations read it once, so an in-flight scan keeps its step.
type StepSetting struct {
	mu   sync.RWMutex
	step StepSize
}

// NewStepSetting creates a setting initialised to step.
func NewStepSetting(step StepSize) *StepSetting {
	if step.Validate() != nil {
		step = DefaultStep
	}
	return &StepSetting{step: step}
}

// Get returns the current step.
func (s *StepSetting) Get() StepSize {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// Set replaces the current step.
func (s *StepSetting) Set(step StepSize) error {
	if err := step.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
	return nil
}
