// Package replay drives the control loop from recorded vehicle data.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"example.com/fuzzy-park/base/zaplog"
	"example.com/fuzzy-park/core/control"
	"example.com/fuzzy-park/core/parking"
)

// Columns of a recording, in order.
var Columns = []string{"angle", "distance", "speed", "spot_distance", "misalignment"}

// RecordError reports a malformed line of a recording.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Sensor replays observations from CSV. Lines starting with '#' are ignored,
// as is a leading header line.
type Sensor struct {
	log *zap.Logger
	r   *csv.Reader
	c   io.Closer
	n   int
}

var _ control.Sensor = (*Sensor)(nil)

func Open(log *zap.Logger, path string) (*Sensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := NewSensor(log, f)
	s.c = f
	return s, nil
}

func NewSensor(log *zap.Logger, r io.Reader) *Sensor {
	if log == nil {
		log = zaplog.Logger()
	}
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = len(Columns)
	cr.TrimLeadingSpace = true
	return &Sensor{log: log, r: cr}
}

func (s *Sensor) Observe(ctx context.Context) (parking.Observation, error) {
	if err := ctx.Err(); err != nil {
		return parking.Observation{}, err
	}
	for {
		rec, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return parking.Observation{}, io.EOF
		}
		if err != nil {
			s.n++
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return parking.Observation{}, &RecordError{Line: perr.Line, Err: perr.Err}
			}
			return parking.Observation{}, err
		}
		line, _ := s.r.FieldPos(0)
		first := s.n == 0
		s.n++
		o, err := parseRecord(rec)
		if err != nil {
			if first && isHeader(rec) {
				continue
			}
			return parking.Observation{}, &RecordError{Line: line, Err: err}
		}
		s.log.Debug("replayed observation", zap.Int("line", line))
		return o, nil
	}
}

func (s *Sensor) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

func isHeader(rec []string) bool {
	for i, c := range Columns {
		if rec[i] != c {
			return false
		}
	}
	return true
}

func parseRecord(rec []string) (parking.Observation, error) {
	var v [5]float64
	for i, f := range rec {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return parking.Observation{}, fmt.Errorf("column %s: %w", Columns[i], err)
		}
		v[i] = x
	}
	return parking.Observation{
		Angle:        v[0],
		Distance:     v[1],
		Speed:        v[2],
		SpotDistance: v[3],
		Misalignment: v[4],
	}, nil
}
