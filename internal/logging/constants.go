package logging

// Standard field names, so log output can be filtered consistently.
const (
	FieldAccountID = "account_id"
	FieldPlanID    = "plan_id"
	FieldPeriodID  = "period_id"
	FieldRound     = "round"
	FieldOperation = "operation"
	FieldStage     = "stage"
	FieldStatus    = "status"
	FieldCount     = "count"
	FieldFailed    = "failed"
	FieldDuration  = "duration_ms"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldRequestID = "request_id"
)
