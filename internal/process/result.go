package process

import (
	"strings"
	"time"
)

// Result describes a finished child process.
type Result struct {
	Command   string        `json:"command"`
	Args      []string      `json:"args,omitempty"`
	ExitCode  int           `json:"exit_code"`
	StdOut    string        `json:"stdout"`
	StdErr    string        `json:"stderr"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Success reports whether the child exited with status zero.
func (r *Result) Success() bool { return r != nil && r.ExitCode == 0 }

// CommandLine renders the command and its arguments separated by spaces.
func (r *Result) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}
