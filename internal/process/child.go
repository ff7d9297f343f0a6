package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Status represents the current state of a child process.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
)

// ErrKilled is the exit error recorded for a child stopped with Kill.
var ErrKilled = errors.New("process: killed")

// Options describes a subprocess to launch.
type Options struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH when not absolute.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format) appended
	// to the parent's environment.
	Env []string

	// WorkDir is the working directory. If empty, inherits from the parent.
	WorkDir string

	// Stderr receives the child's stderr. If nil, the parent's stderr is
	// inherited.
	Stderr io.Writer
}

// Child is a running subprocess with piped stdin and stdout.
//
// Writes to Stdin and reads from Stdout are not synchronized; callers
// serialize their own exchanges.
type Child struct {
	opts      Options
	cmd       *exec.Cmd
	stdin     *os.File
	stdoutR   *os.File
	stdout    *bufio.Reader
	startTime time.Time

	done     chan struct{}
	mu       sync.Mutex
	exitErr  error
	killOnce sync.Once
}

// Start launches opts in its own process group.
//
// Parameters:
//   - opts: What to run
//
// Returns:
//   - *Child: The running child; stdin and stdout are connected
//   - error: If the pipes cannot be created or the binary cannot start
func Start(opts Options) (*Child, error) {
	cmd := exec.Command(opts.Binary, opts.Args...) //nolint:gosec // launch candidates come from configuration

	setProcessGroup(cmd)
	if opts.Env != nil {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	// Plain OS pipes keep our ends open after Wait, so a reply being
	// read while the child exits is not cut short.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdinR.Close()
		_ = stdinW.Close()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("starting %s: %w", opts.Name, err)
	}
	// The child holds its own copies now.
	closeAll(stdinR, stdoutW)

	c := &Child{
		opts:      opts,
		cmd:       cmd,
		stdin:     stdinW,
		stdoutR:   stdoutR,
		stdout:    bufio.NewReader(stdoutR),
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	go c.wait()

	return c, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (c *Child) wait() {
	err := c.cmd.Wait()
	c.mu.Lock()
	if c.exitErr == nil {
		c.exitErr = err
	}
	c.mu.Unlock()
	close(c.done)
}

// Name returns the configured name.
func (c *Child) Name() string {
	return c.opts.Name
}

// PID returns the operating system process id.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

// Uptime returns how long the child has been running.
func (c *Child) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Stdin is the write end of the child's standard input.
func (c *Child) Stdin() io.Writer {
	return c.stdin
}

// Stdout is a buffered reader over the child's standard output.
func (c *Child) Stdout() *bufio.Reader {
	return c.stdout
}

// Status reports whether the child is still running.
func (c *Child) Status() Status {
	select {
	case <-c.done:
		return StatusExited
	default:
		return StatusRunning
	}
}

// Exited is closed once the child has exited and been reaped.
func (c *Child) Exited() <-chan struct{} {
	return c.done
}

// ExitErr returns the exit error after Exited is closed. A child stopped
// with Kill reports ErrKilled.
func (c *Child) ExitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

// Kill terminates the child's process group, closes the pipes and waits
// for the child to be reaped. It is safe to call more than once.
func (c *Child) Kill() error {
	var err error
	c.killOnce.Do(func() {
		c.mu.Lock()
		if c.Status() == StatusRunning {
			c.exitErr = ErrKilled
		}
		c.mu.Unlock()

		_ = c.stdin.Close()
		if c.Status() == StatusRunning {
			err = killProcessGroup(c.cmd.Process)
		}
		// Unblocks any reader still waiting on a reply.
		_ = c.stdoutR.Close()
		<-c.done
	})
	return err
}
