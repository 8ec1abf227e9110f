// Package prompt wraps promptui with the small set of interactive
// prompts the tollgate CLI needs. All helpers translate Ctrl+C into
// ErrAborted so callers can treat an abort as a clean exit.
package prompt

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err means the user backed out rather than
// something going wrong.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}
