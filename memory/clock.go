package memory

import "time"

// Timer is a scheduled task that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Clock schedules the delayed no-match resolution and stamps activity.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
