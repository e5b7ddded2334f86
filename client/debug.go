package client

import "log"

// Debug enables wire-level tracing of connection attempts via the standard
// logger.
var Debug bool

func debugf(format string, args ...any) {
	if Debug {
		log.Printf(format, args...)
	}
}
