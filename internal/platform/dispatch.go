package platform

import "log"

// Dispatch runs a side effect off the request path. Failures are
// logged and never reach the caller; a panic in a sink must not take
// the process down.
func Dispatch(name string, fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Warning: %s side effect panicked: %v", name, r)
			}
		}()
		if err := fn(); err != nil {
			log.Printf("Warning: %s side effect failed: %v", name, err)
		}
	}()
}
