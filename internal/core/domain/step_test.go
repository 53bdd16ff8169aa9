package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepSize_Presets(t *testing.T) {
	cases := map[string]StepSize{
		"coarse": StepCoarse,
		"medium": StepMedium,
		"fine":   StepFine,
		"low":    StepCoarse,
		"high":   StepFine,
	}
	for name, want := range cases {
		got, err := ParseStepSize(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseStepSize_NamesMatchExactly(t *testing.T) {
	for _, name := range []string{"Fine", "FINE", " fine", "fine ", "Low", "", "ultra"} {
		_, err := ParseStepSize(name)
		assert.ErrorIs(t, err, ErrInvalidInput, "%q", name)
	}
}

func TestStepSize_Name(t *testing.T) {
	assert.Equal(t, "coarse", StepCoarse.Name())
	assert.Equal(t, "fine", StepFine.Name())
	assert.Equal(t, "custom", StepSize(0.25).Name())
}

func TestStepSetting_RejectsInvalid(t *testing.T) {
	s := NewStepSetting(0)
	assert.Equal(t, DefaultStep, s.Get())

	assert.ErrorIs(t, s.Set(-1), ErrInvalidInput)
	assert.Equal(t, DefaultStep, s.Get())

	require.NoError(t, s.Set(StepFine))
	assert.Equal(t, StepFine, s.Get())
}
