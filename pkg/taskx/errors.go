package taskx

import "github.com/Abraxas-365/trustgate/pkg/errx"

var taskxErrors = errx.NewRegistry("TASKX")

var (
	ErrAlreadyRunning = taskxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Runner is already running")
)
