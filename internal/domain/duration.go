package domain

import "time"

// Seconds is an exercise-level duration expressed in whole seconds.
// Durations carry their unit in the type so a value converted once at the
// reconciliation boundary can never be converted again downstream.
type Seconds int64

// Minutes is a phase- and workout-level duration expressed in whole minutes.
type Minutes int64

// SecondsPerMinute converts between the two duration units.
const SecondsPerMinute = 60

// ToMinutes converts a second-denominated duration to minutes, rounding up so
// a 90-second exercise still accounts for two minutes of phase time.
func (s Seconds) ToMinutes() Minutes {
	if s <= 0 {
		return 0
	}
	return Minutes((int64(s) + SecondsPerMinute - 1) / SecondsPerMinute)
}

// Duration returns the value as a time.Duration for timer arithmetic.
func (s Seconds) Duration() time.Duration { return time.Duration(s) * time.Second }

// ToSeconds converts a minute-denominated duration to seconds.
func (m Minutes) ToSeconds() Seconds { return Seconds(int64(m) * SecondsPerMinute) }

// Duration returns the value as a time.Duration for timer arithmetic.
func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }
