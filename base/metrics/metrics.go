package metrics

const (
	ControlTicksH        = "The total number of control loop ticks"
	ControlTicksN        = "fuzzypark_control_ticks"
	ControlSensorErrorsH = "The total number of ticks skipped because the sensor failed"
	ControlSensorErrorsN = "fuzzypark_control_sensor_errors"
	ControlOutputH       = "The current crisp value of a controller output"
	ControlOutputN       = "fuzzypark_control_output"
	ControlParkedH       = "Whether the vehicle is parked (1) or not (0)"
	ControlParkedN       = "fuzzypark_control_parked"

	EngineRulesSkippedH = "The total number of rule evaluations skipped because of unresolved names"
	EngineRulesSkippedN = "fuzzypark_engine_rules_skipped"
	EngineEvalDurationH = "The duration of one control step (inference and regulation) in seconds"
	EngineEvalDurationN = "fuzzypark_engine_eval_duration_seconds"
)
