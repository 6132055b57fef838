package handler

const (
	errInternalServer    = "Internal server error"
	errScheduleNotFound  = "Schedule not found"
	errDuplicateSchedule = "Schedule with this ID already exists"
	errInvalidParameters = "Invalid schedule parameters"
	errScheduleBusy      = "Schedule is currently being processed"
)
