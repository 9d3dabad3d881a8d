// Package cluster provides a uniform way to start jobs
// made of several tasks, whether the tasks are local
// processes or remote machines.
package cluster

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// DefaultReadyTimeout bounds how long MakeJob waits for
// tasks to come up when JobOptions.ReadyTimeout is unset.
const DefaultReadyTimeout = 10 * time.Minute

// JobOptions controls how a job is provisioned.
type JobOptions struct {
	// ReadyTimeout bounds the wait for every task to
	// become ready.
	ReadyTimeout time.Duration

	// Placement requests that the tasks be packed close
	// together on the network, in a placement group named
	// after the job.
	Placement bool
}

func (j JobOptions) readyTimeout() time.Duration {
	if j.ReadyTimeout <= 0 {
		return DefaultReadyTimeout
	}
	return j.ReadyTimeout
}

// A Launcher creates jobs.
type Launcher interface {
	// MakeJob creates a job with size tasks and blocks
	// until all of them are ready.
	//
	// If the tasks cannot be made ready, a
	// *ProvisioningError is returned.
	MakeJob(ctx context.Context, name string, size int, opts JobOptions) (*Job, error)
}

// A Task is one addressable member of a job.
type Task interface {
	// Name is a human-readable name for the task.
	Name() string

	// Addr is the address other tasks can use to reach
	// this task.
	Addr() string

	// Run runs a command on the task.
	//
	// If sync is true, Run waits for the command to exit.
	// Otherwise it returns once the command is started.
	Run(ctx context.Context, cmd Command, sync bool) error

	// Upload copies a local file to the task and returns
	// the file's path on the task.
	Upload(ctx context.Context, path string) (string, error)
}

// A Job is a set of ready tasks.
type Job struct {
	Name  string
	Tasks []Task

	instructions string
	wait         func(ctx context.Context) error
	running      func() int
}

// Wait waits for every asynchronous command started on
// the job's tasks, where the launcher can observe them.
//
// Commands on remote tasks run detached, so Wait returns
// immediately for remote jobs.
func (j *Job) Wait(ctx context.Context) error {
	if j.wait == nil {
		return nil
	}
	return j.wait(ctx)
}

// Running gets the number of asynchronous commands that
// have not exited yet. It is always 0 for remote jobs,
// whose commands run detached.
func (j *Job) Running() int {
	if j.running == nil {
		return 0
	}
	return j.running()
}

// ConnectInstructions explains how to reach the job's
// tasks by hand. It is empty for local jobs.
func (j *Job) ConnectInstructions() string {
	return j.instructions
}

// A Command is a program invocation.
type Command struct {
	Program string
	Args    []string

	// Env holds extra "KEY=value" environment entries.
	Env []string
}

// NewCommand creates a Command.
func NewCommand(program string, args ...string) Command {
	return Command{Program: program, Args: args}
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// String renders the command as a shell command line.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+1+len(c.Args))
	for _, e := range c.Env {
		parts = append(parts, shellQuote(e))
	}
	parts = append(parts, shellQuote(c.Program))
	for _, a := range c.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}
