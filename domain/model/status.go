package model

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Status is the outcome of parsing one container
type Status string

const (
	StatusOK           Status = "ok"
	StatusDegraded     Status = "degraded"
	StatusUnrecognized Status = "unrecognized"
)

// StatusOf derives the tri-state outcome from a parse call's return values.
func StatusOf(p *Project, err error) Status {
	if err != nil || p == nil {
		return StatusUnrecognized
	}
	return p.Status()
}

// Warning is a non-fatal parse problem tied to one marker occurrence
type Warning struct {
	Marker string
	Offset int
	Reason string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", w.Marker, w.Offset, w.Reason)
}

// Warnings extracts the individual warnings from a combined error.
func Warnings(err error) []Warning {
	var out []Warning
	for _, e := range multierr.Errors(err) {
		var w Warning
		if errors.As(e, &w) {
			out = append(out, w)
		}
	}
	return out
}
