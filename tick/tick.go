package tick

// Tick is a value of the free running 32-bit logical clock.
type Tick uint32

// expiredWindow is the span behind now that is still considered the past. Anything beyond it, the upper quarter
// of the range relative to now, is treated as a target in the near future.
const expiredWindow = 0xC0000000

// MaxInterval is the longest span ahead of now a target can be placed and still be seen as the future by Expired.
const MaxInterval uint32 = 0xFFFFFFFF - expiredWindow

// Expired returns true if target has been reached by now, tolerating the counter wrapping past zero.
func Expired(now, target Tick) bool {
	return uint32(now-target) < expiredWindow
}

// Add returns the tick n periods after t.
func Add(t Tick, n uint32) Tick {
	return t + Tick(n)
}

// Since returns the number of ticks elapsed between start and now.
func Since(now, start Tick) uint32 {
	return uint32(now - start)
}
