package session

import "time"

// Clock supplies the current time to the phase loops' retry/heartbeat
// deadline arithmetic. It does not touch the blocking wait itself —
// connectPhase/closePhase/mainPhase all still block in
// transport.Socket.Wait, which sleeps real wall-clock time regardless
// of what Clock.Now reports — so swapping in a fake Clock changes when
// a phase decides a deadline has passed, not how long it actually
// sleeps waiting for one.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
