package subprocess

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrintMode decides which child output reaches stdout.
type PrintMode string

const (
	PrintNone PrintMode = "none"
	PrintTail PrintMode = "tail"
	PrintAll  PrintMode = "all"
)

var PrintModes = []string{string(PrintNone), string(PrintTail), string(PrintAll)}

func ParsePrintMode(s string) (PrintMode, error) {
	switch m := PrintMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PrintNone, PrintTail, PrintAll:
		return m, nil
	default:
		return "", cerrors.ErrGenericBadRequest.WithMessage("print mode must be one of none, tail or all, got %q", s)
	}
}

// Command is one external program invocation.
type Command struct {
	// Mnemonic names the command in logs and errors.
	Mnemonic string
	Name     string
	Args     []string
	// Env entries are appended to the current environment.
	Env []string
	Dir string
	// LogFile receives the merged stdout and stderr. Without a log file the
	// output is streamed to stdout as is.
	LogFile      string
	PrintMode    PrintMode
	AllowFailure bool
	// OnLine is called from the reader goroutine for every output line.
	OnLine func(line string)
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// ExitError reports a command that did not exit cleanly.
type ExitError struct {
	Mnemonic string
	ExitCode int
	LogFile  string
	Tail     []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q failed with exit code %d", e.Mnemonic, e.ExitCode)
	if e.LogFile != "" {
		msg += fmt.Sprintf(", see %s", e.LogFile)
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Process is a started command.
type Process interface {
	// Terminate asks the process to stop with SIGTERM.
	Terminate() error
	// Wait blocks until the process exited and its output was drained.
	Wait() error
	Done() <-chan struct{}
}

// Runner starts external programs.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
	Start(ctx context.Context, cmd Command) (Process, error)
}

// Exec runs commands on the host with os/exec.
type Exec struct {
	stdout    io.Writer
	tailLines int
	waitDelay time.Duration
}

type Option func(*Exec)

func WithStdout(w io.Writer) Option {
	return func(e *Exec) {
		e.stdout = w
	}
}

func WithTailLines(n int) Option {
	return func(e *Exec) {
		e.tailLines = n
	}
}

// WithWaitDelay bounds how long a cancelled process may take to exit
// before it is killed.
func WithWaitDelay(d time.Duration) Option {
	return func(e *Exec) {
		e.waitDelay = d
	}
}

func NewExec(opts ...Option) *Exec {
	e := &Exec{
		stdout:    os.Stdout,
		tailLines: constants.TailLines,
		waitDelay: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts cmd and waits for it.
func (e *Exec) Run(ctx context.Context, cmd Command) error {
	p, err := e.Start(ctx, cmd)
	if err != nil {
		return err
	}
	return p.Wait()
}

type process struct {
	cmd  Command
	exec *exec.Cmd
	out  io.Writer

	tailLines int
	tail      []string

	done    chan struct{}
	waitErr error
}

// Start launches cmd. Its merged output is pumped by one goroutine into the
// log file, stdout and OnLine.
func (e *Exec) Start(ctx context.Context, cmd Command) (Process, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Cancel = func() error {
		return c.Process.Signal(syscall.SIGTERM)
	}
	c.WaitDelay = e.waitDelay

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create output pipe for %s", cmd.Mnemonic)
	}
	c.Stderr = c.Stdout

	var sink io.WriteCloser
	if cmd.LogFile != "" {
		f, err := utilities.MakeDirParent(cmd.LogFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create log file for %s", cmd.Mnemonic)
		}
		sink = f
	}

	log.Default().Info(fmt.Sprintf("running %s: %s", cmd.Mnemonic, cmd.String()))
	if err := c.Start(); err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return nil, errors.Wrapf(err, "failed to start %s", cmd.Mnemonic)
	}

	p := &process{
		cmd:       cmd,
		exec:      c,
		out:       e.stdout,
		tailLines: e.tailLines,
		done:      make(chan struct{}),
	}
	go p.pump(stdout, sink)
	return p, nil
}

// maxLineLength caps the line handed to OnLine and the tail buffer. Longer
// lines still reach the log file and stdout in full.
const maxLineLength = 1 << 20

func (p *process) pump(r io.Reader, sink io.WriteCloser) {
	defer close(p.done)

	// Without a log file the child owns the terminal.
	echo := sink == nil || p.cmd.PrintMode == PrintAll
	write := func(b []byte) {
		if sink != nil {
			_, _ = sink.Write(b)
		}
		if echo {
			_, _ = p.out.Write(b)
		}
	}

	reader := bufio.NewReaderSize(r, 64*1024)
	line := make([]byte, 0, 256)
	partial := false
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if len(chunk) > 0 {
			write(chunk)
			if room := maxLineLength - len(line); room > 0 {
				line = append(line, chunk[:min(len(chunk), room)]...)
			}
			partial = true
		}
		if err != nil {
			if partial {
				write([]byte("\n"))
				p.complete(string(line))
			}
			if !errors.Is(err, io.EOF) {
				log.Default().Warn(fmt.Sprintf("failed to read output of %s", p.cmd.Mnemonic), zap.Error(err))
				// Unblock the child if it is still writing.
				_, _ = io.Copy(io.Discard, r)
			}
			break
		}
		if isPrefix {
			continue
		}
		write([]byte("\n"))
		p.complete(string(line))
		line = line[:0]
		partial = false
	}

	waitErr := p.exec.Wait()
	if sink != nil {
		if cErr := sink.Close(); cErr != nil {
			log.Default().Warn(fmt.Sprintf("failed to close log file of %s", p.cmd.Mnemonic), zap.Error(cErr))
		}
		if p.cmd.PrintMode == PrintTail {
			for _, line := range p.tail {
				_, _ = fmt.Fprintln(p.out, line)
			}
		}
	}
	p.waitErr = p.result(waitErr)
}

func (p *process) complete(line string) {
	p.remember(line)
	if p.cmd.OnLine != nil {
		p.cmd.OnLine(line)
	}
}

func (p *process) remember(line string) {
	if p.tailLines <= 0 {
		return
	}
	if len(p.tail) == p.tailLines {
		p.tail = append(p.tail[:0], p.tail[1:]...)
	}
	p.tail = append(p.tail, line)
}

func (p *process) result(waitErr error) error {
	if waitErr == nil {
		log.Default().Info(fmt.Sprintf("%s finished", p.cmd.Mnemonic))
		return nil
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	if p.cmd.AllowFailure {
		log.Default().Warn(fmt.Sprintf("%s exited with code %d, continuing", p.cmd.Mnemonic, code))
		return nil
	}
	return &ExitError{
		Mnemonic: p.cmd.Mnemonic,
		ExitCode: code,
		LogFile:  p.cmd.LogFile,
		Tail:     append([]string(nil), p.tail...),
		Err:      waitErr,
	}
}

func (p *process) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.exec.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "failed to terminate %s", p.cmd.Mnemonic)
	}
	return nil
}

func (p *process) Wait() error {
	<-p.done
	return p.waitErr
}

func (p *process) Done() <-chan struct{} {
	return p.done
}
