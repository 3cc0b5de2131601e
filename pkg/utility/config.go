package utility

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the utility rates based on flags.
func Configured() *Map {
	location := lflag.String("utility-location", "", "Default time zone for time-of-use periods without a location (e.g. America/Chicago)")

	m := NewMap()
	lflag.Do(func() {
		if *location == "" {
			return
		}
		loc, err := time.LoadLocation(*location)
		if err != nil {
			panic(fmt.Sprintf("invalid utility-location: %v", err))
		}
		m.defaultLocation = loc
	})
	return m
}
