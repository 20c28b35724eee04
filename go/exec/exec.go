/*
Package exec is a wrapper around os/exec that makes it possible to run and
start commands with a context that tests can replace.

Run a command and wait for it:

	err := exec.Run(ctx, &exec.Command{
		Name: "touch",
		Args: []string{file},
	})

Start a command without waiting for it:

	proc, err := exec.Start(ctx, &exec.Command{Name: "./bench.sh", Args: args})
	if err != nil {
		return err
	}
	go func() { _ = proc.Wait() }()

Inject a fake in tests:

	mock := exec.CommandCollector{}
	ctx := exec.NewContext(context.Background(), mock.Run)
	TestCodeCallingRun(ctx)
	require.Equal(t, "touch /tmp/file", exec.DebugString(mock.Commands()[0]))
*/
package exec

import (
	"context"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"

	"github.com/kballard/go-shellquote"
	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/sklog"
)

// WriteLog implements the io.Writer interface and writes to the given log function.
type WriteLog struct {
	LogFunc func(format string, args ...interface{})
}

func (wl WriteLog) Write(p []byte) (n int, err error) {
	wl.LogFunc("%s", string(p))
	return len(p), nil
}

var (
	WriteInfoLog  = WriteLog{LogFunc: sklog.Infof}
	WriteErrorLog = WriteLog{LogFunc: sklog.Errorf}
)

// Command describes a process to run.
type Command struct {
	// Name of the command, as passed to osexec.Command. Can be the path to a binary or the
	// name of a command that osexec.LookPath can find.
	Name string
	// Arguments of the command, not including Name.
	Args []string
	// Extra environment variables, appended to the current process's environment.
	Env []string
	// The working directory of the command. If empty, runs in the current process's current
	// directory.
	Dir string
	// See docs for osexec.Cmd.Stdin.
	Stdin io.Reader
	// If true, duplicates stdout of the command to WriteInfoLog.
	LogStdout bool
	// Sends the stdout of the command to this Writer, e.g. os.File or bytes.Buffer.
	Stdout io.Writer
	// If true, duplicates stderr of the command to WriteErrorLog.
	LogStderr bool
	// Sends the stderr of the command to this Writer, e.g. os.File or bytes.Buffer.
	Stderr io.Writer
	// See docs for osexec.Cmd.SysProcAttr.
	SysProcAttr *syscall.SysProcAttr
}

// Process is a started command.
type Process interface {
	// Pid returns the operating system process id, or 0 for fake processes.
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
}

// RunFn runs a command to completion.
type RunFn func(context.Context, *Command) error

// StartFn starts a command and returns without waiting for it.
type StartFn func(context.Context, *Command) (Process, error)

type contextKeyType string

const contextKey contextKeyType = "perfhookExecContext"

type execContext struct {
	runFn   RunFn
	startFn StartFn
}

var defaultExecContext = &execContext{
	runFn:   DefaultRun,
	startFn: DefaultStart,
}

func getCtx(ctx context.Context) *execContext {
	if v := ctx.Value(contextKey); v != nil {
		return v.(*execContext)
	}
	return defaultExecContext
}

// NewContext returns a context in which Run uses runFn. Start also uses
// runFn: it runs the command synchronously, reports an error from runFn as a
// failure to start, and returns a Process whose Wait returns immediately.
func NewContext(ctx context.Context, runFn RunFn) context.Context {
	return context.WithValue(ctx, contextKey, &execContext{
		runFn:   runFn,
		startFn: startViaRun(runFn),
	})
}

func startViaRun(runFn RunFn) StartFn {
	return func(ctx context.Context, c *Command) (Process, error) {
		if err := runFn(ctx, c); err != nil {
			return nil, err
		}
		return finishedProcess{}, nil
	}
}

type finishedProcess struct{}

func (finishedProcess) Pid() int    { return 0 }
func (finishedProcess) Wait() error { return nil }

func withoutCancel(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// ParseCommand splits commandLine using shell quoting rules; the first word is
// the program name and the rest are arguments.
func ParseCommand(commandLine string) (Command, error) {
	words, err := shellquote.Split(commandLine)
	if err != nil {
		return Command{}, skerr.Wrapf(err, "parsing command line %q", commandLine)
	}
	if len(words) == 0 {
		return Command{}, skerr.Fmt("empty command line")
	}
	return Command{Name: words[0], Args: words[1:]}, nil
}

// DebugString returns the command line of c, quoted so that it could be
// pasted into a shell.
func DebugString(c *Command) string {
	s := shellquote.Join(append([]string{c.Name}, c.Args...)...)
	if len(c.Env) > 0 {
		s = strings.Join(c.Env, " ") + " " + s
	}
	return s
}

// Given io.Writers or nils, return a single writer that writes to all, or nil if no non-nil
// writers.
func squashWriters(writers ...io.Writer) io.Writer {
	nonNil := []io.Writer{}
	for _, writer := range writers {
		if writer != nil {
			nonNil = append(nonNil, writer)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return io.MultiWriter(nonNil...)
	}
}

func createCmd(ctx context.Context, command *Command) *osexec.Cmd {
	cmd := osexec.CommandContext(ctx, command.Name, command.Args...)
	if len(command.Env) != 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	cmd.Dir = command.Dir
	cmd.Stdin = command.Stdin
	cmd.SysProcAttr = command.SysProcAttr
	var stdoutLog io.Writer
	if command.LogStdout {
		stdoutLog = WriteInfoLog
	}
	cmd.Stdout = squashWriters(stdoutLog, command.Stdout)
	var stderrLog io.Writer
	if command.LogStderr {
		stderrLog = WriteErrorLog
	}
	cmd.Stderr = squashWriters(stderrLog, command.Stderr)
	return cmd
}

func start(command *Command, cmd *osexec.Cmd) error {
	sklog.Infof("Executing %s", DebugString(command))
	if err := cmd.Start(); err != nil {
		return skerr.Wrapf(err, "unable to start command %s", DebugString(command))
	}
	return nil
}

// osProcess implements Process for a real process.
type osProcess struct {
	command *Command
	cmd     *osexec.Cmd
}

func (p *osProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return skerr.Wrapf(err, "command exited with error: %s", DebugString(p.command))
	}
	return nil
}

// DefaultRun is the RunFn used when the context doesn't carry one.
func DefaultRun(ctx context.Context, command *Command) error {
	proc, err := DefaultStart(ctx, command)
	if err != nil {
		return err
	}
	return proc.Wait()
}

// DefaultStart is the StartFn used when the context doesn't carry one. The
// process is killed if ctx is cancelled; use NoInterruptContext to avoid that.
func DefaultStart(ctx context.Context, command *Command) (Process, error) {
	cmd := createCmd(ctx, command)
	if err := start(command, cmd); err != nil {
		return nil, err
	}
	return &osProcess{command: command, cmd: cmd}, nil
}

// Run runs command and waits for it to finish. Returns an error if the
// command could not be started or exited with a non-zero status.
func Run(ctx context.Context, command *Command) error {
	return getCtx(ctx).runFn(ctx, command)
}

// Start starts command and returns without waiting for it to finish. The
// caller should eventually call Wait on the returned Process so that its
// resources are released.
func Start(ctx context.Context, command *Command) (Process, error) {
	return getCtx(ctx).startFn(ctx, command)
}
