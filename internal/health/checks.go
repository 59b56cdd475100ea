package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/goalhorn/internal/detect"
)

// DefaultErrorWindow is how recent a detection error must be for [Detector]
// to report the loop as failing.
const DefaultErrorWindow = 5 * time.Second

// Detector returns a check that fails while the detection loop is active and
// recorded an error within window. A stopped loop is not a failure; stopping
// is an operator decision. A blank frame ([detect.ErrNoText]) is not a
// failure either. A non-positive window selects
// [DefaultErrorWindow].
func Detector(status func() detect.Status, window time.Duration) Checker {
	if window <= 0 {
		window = DefaultErrorWindow
	}
	return Checker{
		Name: "detector",
		Check: func(context.Context) error {
			st := status()
			if st.State == detect.Stopped || st.LastError == "" || st.LastError == detect.ErrNoText.Error() {
				return nil
			}
			if age := time.Since(st.LastErrorAt); age < window {
				return fmt.Errorf("%s %s ago", st.LastError, age.Truncate(time.Millisecond))
			}
			return nil
		},
	}
}

// Audio returns a check that fails when no audio output device is open.
func Audio(available func() bool) Checker {
	return Checker{
		Name: "audio",
		Check: func(context.Context) error {
			if !available() {
				return errors.New("no output device")
			}
			return nil
		},
	}
}
