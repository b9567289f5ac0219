package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldEvent     = "event"

	// Station identity
	FieldStationID = "station_id"
	FieldRuleset   = "ruleset"

	// Lifecycle
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldState    = "state"
	FieldWatchdog = "watchdog"
	FieldCommand  = "command"
	FieldParams   = "params"
	FieldScore    = "score"
	FieldAttempt  = "attempt"

	// Hub transport
	FieldEndpoint = "endpoint"
	FieldStatus   = "status"
)
