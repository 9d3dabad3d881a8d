package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// LocalHost is the address of every local task.
const LocalHost = "127.0.0.1"

// LocalLauncher runs every task as a process on the
// current machine.
type LocalLauncher struct {
	// Stdout and Stderr receive the tasks' output, one
	// line at a time, prefixed by the task name.
	// Nil writers default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// MakeJob creates size local task slots. They are ready
// immediately.
func (l *LocalLauncher) MakeJob(ctx context.Context, name string, size int,
	opts JobOptions) (*Job, error) {
	if size <= 0 {
		return nil, &ProvisioningError{Job: name, Requested: size, Available: 0,
			Err: errors.New("no tasks requested")}
	}
	state := &localJob{
		stdout: &syncWriter{w: orDefault(l.Stdout, os.Stdout)},
		stderr: &syncWriter{w: orDefault(l.Stderr, os.Stderr)},
		done:   make(chan struct{}),
	}
	job := &Job{
		Name:    name,
		wait:    state.Wait,
		running: func() int { return int(state.running.Load()) },
	}
	for i := 0; i < size; i++ {
		job.Tasks = append(job.Tasks, &localTask{
			name: name + "-" + strconv.Itoa(i),
			job:  state,
		})
	}
	log.WithFields(log.Fields{"job": name, "size": size}).Debug("local job ready")
	return job, nil
}

type localJob struct {
	stdout *syncWriter
	stderr *syncWriter

	running atomic.Int32
	wg      sync.WaitGroup

	errLock sync.Mutex
	errs    error

	doneOnce sync.Once
	done     chan struct{}
}

func (l *localJob) track(name string, cmd *exec.Cmd, flush func()) {
	l.running.Inc()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := cmd.Wait()
		flush()
		left := l.running.Dec()
		logger := log.WithFields(log.Fields{"task": name, "running": left})
		if err != nil {
			logger.WithError(err).Warn("task command failed")
			l.errLock.Lock()
			l.errs = multierr.Append(l.errs, errors.Wrapf(err, "task %s", name))
			l.errLock.Unlock()
		} else {
			logger.Debug("task command finished")
		}
	}()
}

// Wait waits for every asynchronous command.
func (l *localJob) Wait(ctx context.Context) error {
	go func() {
		l.wg.Wait()
		l.doneOnce.Do(func() { close(l.done) })
	}()
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.errLock.Lock()
	defer l.errLock.Unlock()
	return l.errs
}

type localTask struct {
	name string
	job  *localJob
}

func (l *localTask) Name() string {
	return l.name
}

func (l *localTask) Addr() string {
	return LocalHost
}

func (l *localTask) Run(ctx context.Context, c Command, sync bool) error {
	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	stdout := newPrefixWriter("["+l.name+"] ", l.job.stdout)
	stderr := newPrefixWriter("["+l.name+"] ", l.job.stderr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	flush := func() {
		stdout.Flush()
		stderr.Flush()
	}

	log.WithFields(log.Fields{"task": l.name, "command": c.String()}).Debug("starting command")
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s on %s", c.Program, l.name)
	}
	if !sync {
		l.job.track(l.name, cmd, flush)
		return nil
	}
	err := cmd.Wait()
	flush()
	return errors.Wrapf(err, "run %s on %s", c.Program, l.name)
}

// Upload leaves the file in place, since local tasks
// share the file system.
func (l *localTask) Upload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "upload to %s", l.name)
	}
	return path, nil
}

type syncWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.w.Write(p)
}

// prefixWriter writes whole lines, each with a prefix.
// A trailing partial line is held until Flush.
type prefixWriter struct {
	prefix string
	out    io.Writer

	lock sync.Mutex
	buf  []byte
}

func newPrefixWriter(prefix string, out io.Writer) *prefixWriter {
	return &prefixWriter{prefix: prefix, out: out}
}

func (p *prefixWriter) Write(data []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.buf = append(p.buf, data...)
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		if _, err := fmt.Fprintf(p.out, "%s%s\n", p.prefix, p.buf[:idx]); err != nil {
			return 0, err
		}
		p.buf = p.buf[idx+1:]
	}
	return len(data), nil
}

// Flush writes out any partial line.
func (p *prefixWriter) Flush() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.buf) > 0 {
		fmt.Fprintf(p.out, "%s%s\n", p.prefix, p.buf)
		p.buf = nil
	}
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
