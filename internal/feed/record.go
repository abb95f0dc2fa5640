// Package feed consumes the external telemetry feed: a six-field record
// A,B,C,D,E,F (exercise code, heart rate, reps, start flag, valid flag,
// form label) published by the wearable pipeline.
package feed

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Form labels.
const (
	LabelGood  = "Good Form"
	LabelBad   = "Bad Form"
	LabelError = "Error"
)

// ExerciseHROnly is reported for heart-rate-only sessions and unknown codes.
const ExerciseHROnly = "Hr Only"

var (
	ErrShortRecord = errors.New("feed record has fewer than 6 fields")
	ErrNoRecord    = errors.New("no feed record in body")
)

var headingRe = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)

// Record is one parsed feed sample.
type Record struct {
	Code      int    `json:"code"`
	Exercise  string `json:"exercise"`
	HeartRate int    `json:"heart_rate"`
	Reps      int    `json:"reps"`
	Started   bool   `json:"started"`
	Valid     bool   `json:"valid"`
	Label     string `json:"label,omitempty"` // empty unless Valid
}

// ExerciseName maps a feed exercise code to the exercise type sent to devices.
func ExerciseName(code int) string {
	switch code {
	case 2:
		return "lateral-raises"
	case 3:
		return "squats"
	case 4:
		return "bicep-curls"
	default:
		return ExerciseHROnly
	}
}

// ParseRecord extracts a record from body, which is either the bare
// comma-separated record or an HTML page carrying it in an <h1> element.
// Fields past the sixth are ignored.
func ParseRecord(body string) (Record, error) {
	raw := strings.TrimSpace(body)
	if m := headingRe.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	} else if strings.Contains(raw, "<") {
		return Record{}, ErrNoRecord
	}
	if raw == "" {
		return Record{}, ErrNoRecord
	}

	fields := strings.Split(raw, ",")
	if len(fields) < 6 {
		return Record{}, fmt.Errorf("%w: got %d", ErrShortRecord, len(fields))
	}

	var vals [5]int
	for i := range vals {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return Record{}, fmt.Errorf("parsing field %d: %w", i+1, err)
		}
		vals[i] = n
	}

	rec := Record{
		Code:      vals[0],
		Exercise:  ExerciseName(vals[0]),
		HeartRate: vals[1],
		Reps:      vals[2],
		Started:   vals[3] == 1,
	}
	if vals[4] != 1 {
		return rec, nil
	}

	// The label is only read when the valid flag is set.
	label, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return Record{}, fmt.Errorf("parsing field 6: %w", err)
	}
	switch label {
	case 1:
		rec.Valid, rec.Label = true, LabelGood
	case 0:
		rec.Valid, rec.Label = true, LabelBad
	}
	return rec, nil
}
