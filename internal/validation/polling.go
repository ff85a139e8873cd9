package validation

import "strconv"

// MaxSleepSeconds bounds every polling setting (eight hours).
const MaxSleepSeconds = 28800

// CheckSleepTime validates a single polling interval in seconds.
func CheckSleepTime(value string) string {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return "Not a positive integer"
	}
	if n > MaxSleepSeconds {
		return "Cannot be greater than 28800 (eight hours)"
	}
	return ""
}

// CheckPollingBounds validates the minimum, maximum and jitter intervals in
// seconds. The maximum must not be below the minimum.
func CheckPollingBounds(minSleep, maxSleep, jitter int) string {
	for _, v := range []int{minSleep, maxSleep, jitter} {
		if msg := CheckSleepTime(strconv.Itoa(v)); msg != "" {
			return msg
		}
	}
	if maxSleep < minSleep {
		return "Must be greater than minimum interval"
	}
	return ""
}
