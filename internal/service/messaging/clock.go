package messaging

import "time"

// nowUTC matches the precision both SQL backends store.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
