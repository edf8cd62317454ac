package repository

import (
	"strconv"

	"PVResonance/internal/domain/models"
)

// SessionMinutes is the length of one trading day in minutes.
const SessionMinutes = 240

// Frequency is a bar length in minutes. SessionMinutes means one bar per day.
type Frequency int

// FreqDaily is one bar per trading day.
const FreqDaily Frequency = SessionMinutes

// IsDaily reports whether f is the one-bar-per-day frequency.
func (f Frequency) IsDaily() bool { return f == FreqDaily }

// IsValidFrequency returns true if f is daily or evenly divides the session.
func IsValidFrequency(f Frequency) bool {
	if f <= 0 || f > SessionMinutes {
		return false
	}
	return SessionMinutes%int(f) == 0
}

// ValidateFrequency returns a ConfigurationError for unsupported frequencies.
func ValidateFrequency(f Frequency) error {
	if IsValidFrequency(f) {
		return nil
	}
	return models.NewConfigurationError("frequency", strconv.Itoa(int(f)),
		"must be 240 (daily) or a minute count dividing the 240-minute session")
}
