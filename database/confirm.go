package database

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConfirmFunc approves or declines a pending mutation. The engine asks before
// every live change; what "asking" means belongs to the caller.
type ConfirmFunc func(action string) bool

// AutoApprove approves every mutation, for batch and automated runs.
func AutoApprove(action string) bool {
	return true
}

// NewPrompt returns a ConfirmFunc that asks y/n on w and reads the answer
// from r. Anything but "y" declines.
func NewPrompt(r io.Reader, w io.Writer) ConfirmFunc {
	reader := bufio.NewReader(r)
	return func(action string) bool {
		fmt.Fprintf(w, "%s (y/n) ", action)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		return strings.TrimSpace(answer) == "y"
	}
}
