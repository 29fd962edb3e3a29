package devicegrant

import "time"

// Clock supplies the current time. Injectable so tests can exercise expiry
// and interval arithmetic deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
