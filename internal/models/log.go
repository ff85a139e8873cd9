package models

import "time"

// LogLine is a single build log line published to report subscribers.
type LogLine struct {
	BuildID   string    `json:"build_id"`
	Sequence  int       `json:"sequence"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
