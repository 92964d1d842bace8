package ports

import "time"

// Clock abstrae la fuente de tiempo monotónica del host. Los tests usan
// un reloj fijo para ejercitar los gates temporales.
type Clock interface {
	Now() time.Time
}

// SystemClock es el reloj real.
type SystemClock struct{}

// Now devuelve la hora actual en UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
