package pipeline

import (
	"math"
	"strconv"
	"strings"
)

// Gender is the closed set of voice genders the synthesizer supports.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// VoiceConfig is a fully normalized voice selection.
type VoiceConfig struct {
	Gender Gender
	Speed  float64
}

const (
	minSpeed     = 0.5
	maxSpeed     = 2.0
	defaultSpeed = 1.0
)

// ParseSpeed turns raw client input into a playback speed. Non-numeric input
// coerces to 1.0; numeric input clamps into [0.5, 2.0].
func ParseSpeed(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return defaultSpeed
	}
	return ClampSpeed(v)
}

// ClampSpeed bounds a numeric speed into the supported range.
func ClampSpeed(v float64) float64 {
	if v < minSpeed {
		return minSpeed
	}
	if v > maxSpeed {
		return maxSpeed
	}
	return v
}

// ParseGender maps raw client input onto the supported set, defaulting to
// female for anything unrecognized.
func ParseGender(raw string) Gender {
	if strings.EqualFold(strings.TrimSpace(raw), string(GenderMale)) {
		return GenderMale
	}
	return GenderFemale
}

// NewVoiceConfig normalizes raw speed and gender inputs in one step.
func NewVoiceConfig(rawSpeed, rawGender string) VoiceConfig {
	return VoiceConfig{
		Gender: ParseGender(rawGender),
		Speed:  ParseSpeed(rawSpeed),
	}
}
