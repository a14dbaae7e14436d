package clock

import (
	"time"

	"vision-qc/internal/domain/port"
)

// System настоящие часы в UTC
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

var _ port.Clock = System{}
