// Package control runs the fixed timestep loop that connects a vehicle's
// sensors and actuators to a parking controller.
package control

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"example.com/fuzzy-park/base/metrics"
	"example.com/fuzzy-park/base/zaplog"
	"example.com/fuzzy-park/core/parking"
)

// Sensor reports the vehicle state. Observe returns io.EOF once no further
// observations will be available.
type Sensor interface {
	Observe(ctx context.Context) (parking.Observation, error)
}

type Actuator interface {
	Apply(ctx context.Context, cmd parking.Command) error
}

type Stepper interface {
	Step(o parking.Observation) (parking.Command, error)
}

type Loop struct {
	Log        *zap.Logger
	Interval   time.Duration
	Sensor     Sensor
	Actuator   Actuator
	Controller Stepper
	Spot       parking.Spot
	// Registerer receives the loop metrics; nil means the default registry.
	// The metrics are registered on the first Run, so distinct loops need
	// distinct registries.
	Registerer prometheus.Registerer

	metricsOnce sync.Once
	metrics     *loopMetrics
}

type loopMetrics struct {
	ticks        prometheus.Counter
	sensorErrs   prometheus.Counter
	outputs      *prometheus.GaugeVec
	parked       prometheus.Gauge
	skipped      prometheus.Counter
	evalDuration prometheus.Histogram
}

func newLoopMetrics(reg prometheus.Registerer) *loopMetrics {
	factory := promauto.With(reg)
	return &loopMetrics{
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: metrics.ControlTicksN,
			Help: metrics.ControlTicksH,
		}),
		sensorErrs: factory.NewCounter(prometheus.CounterOpts{
			Name: metrics.ControlSensorErrorsN,
			Help: metrics.ControlSensorErrorsH,
		}),
		outputs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.ControlOutputN,
			Help: metrics.ControlOutputH,
		}, []string{"output"}),
		parked: factory.NewGauge(prometheus.GaugeOpts{
			Name: metrics.ControlParkedN,
			Help: metrics.ControlParkedH,
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: metrics.EngineRulesSkippedN,
			Help: metrics.EngineRulesSkippedH,
		}),
		evalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.EngineEvalDurationN,
			Help:    metrics.EngineEvalDurationH,
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}

// Run ticks until ctx is done, the sensor is exhausted or the vehicle is
// parked. Once parked, the vehicle is stopped and Run returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if l.Interval <= 0 {
		panic("invalid control loop interval")
	}
	log := l.Log
	if log == nil {
		log = zaplog.Logger()
	}
	reg := l.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	l.metricsOnce.Do(func() {
		l.metrics = newLoopMetrics(reg)
	})
	m := l.metrics
	m.parked.Set(0)

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		m.ticks.Inc()

		o, err := l.Sensor.Observe(ctx)
		if errors.Is(err, io.EOF) {
			log.Info("no more observations")
			return nil
		}
		if err != nil {
			m.sensorErrs.Inc()
			log.Warn("failed to observe vehicle state", zap.Error(err))
			continue
		}

		if l.Spot.IsParked(o.SpotDistance, o.Misalignment) {
			m.parked.Set(1)
			log.Info("vehicle parked",
				zap.Float64("spot_distance", o.SpotDistance),
				zap.Float64("misalignment", o.Misalignment),
			)
			return l.Actuator.Apply(ctx, parking.Command{})
		}

		t0 := time.Now()
		cmd, err := l.Controller.Step(o)
		m.evalDuration.Observe(time.Since(t0).Seconds())
		if err != nil {
			return err
		}
		m.skipped.Add(float64(cmd.Skipped))
		m.outputs.WithLabelValues("speed").Set(cmd.Speed)
		m.outputs.WithLabelValues("steering").Set(cmd.SteerAngle)
		m.outputs.WithLabelValues("torque").Set(cmd.Torque)

		if err := l.Actuator.Apply(ctx, cmd); err != nil {
			return err
		}
	}
}
