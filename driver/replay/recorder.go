package replay

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"example.com/fuzzy-park/base/zaplog"
	"example.com/fuzzy-park/core/control"
	"example.com/fuzzy-park/core/parking"
)

// Recorder is an actuator that logs every command and, if it has a writer,
// appends it as a CSV row.
type Recorder struct {
	log  *zap.Logger
	mu   sync.Mutex
	w    *csv.Writer
	cmds []parking.Command
}

var _ control.Actuator = (*Recorder)(nil)

func NewRecorder(log *zap.Logger, w io.Writer) *Recorder {
	if log == nil {
		log = zaplog.Logger()
	}
	r := &Recorder{log: log}
	if w != nil {
		r.w = csv.NewWriter(w)
		_ = r.w.Write([]string{"speed", "steering", "steer_angle", "torque"})
	}
	return r
}

func (r *Recorder) Apply(ctx context.Context, cmd parking.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	r.log.Info("applying command",
		zap.Float64("speed", cmd.Speed),
		zap.Float64("steer_angle", cmd.SteerAngle),
		zap.Float64("torque", cmd.Torque),
	)
	if r.w == nil {
		return nil
	}
	err := r.w.Write([]string{
		format(cmd.Speed), format(cmd.Steering), format(cmd.SteerAngle), format(cmd.Torque),
	})
	if err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

// Commands returns the commands applied so far.
func (r *Recorder) Commands() []parking.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]parking.Command(nil), r.cmds...)
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
