package dot11

import "fmt"

// A Status summarizes how a decode went.
type Status int

// Possible Status values.
const (
	StatusSuccess Status = iota
	StatusWarning
	StatusFatal
)

// String returns the lowercase name of a Status, as used in metric labels.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// An Anomaly is a problem attributed to one element at a body offset.
type Anomaly struct {
	Key    Key
	Offset int
	Err    error
}

// Outcome reports the diagnostics of one decode. Warnings are recoverable
// and do not fail the decode; Fatal is set when the decode failed.
type Outcome struct {
	Status   Status
	Warnings []Anomaly
	Fatal    *Anomaly

	// Skipped counts elements with no descriptor in the frame type's table.
	Skipped int
}

func (o *Outcome) warn(k Key, off int, err error) {
	o.Warnings = append(o.Warnings, Anomaly{Key: k, Offset: off, Err: err})
	if o.Status == StatusSuccess {
		o.Status = StatusWarning
	}
}

func (o *Outcome) fail(k Key, off int, err error) {
	o.Fatal = &Anomaly{Key: k, Offset: off, Err: err}
	o.Status = StatusFatal
}
