// Package dispatcher decides whether a notification warrants a benchmark run
// and launches the runner for it.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.perfhook.dev/infra/go/exec"
	"go.perfhook.dev/infra/go/metrics2"
	"go.perfhook.dev/infra/go/now"
	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/perfhook/go/notification"
	"go.perfhook.dev/infra/perfhook/go/types"
)

const (
	// DefaultPrimaryBranch is the only branch benchmarked by default.
	DefaultPrimaryBranch = "master"

	// PrimaryLabel is the branch label used for pushes to the primary branch.
	PrimaryLabel = "Master"

	// RunIDEnvVar is set in the runner's environment to a unique id per run.
	RunIDEnvVar = "PERFHOOK_RUN_ID"

	defaultPullRequestTitle = "Pull request"
)

// ErrDispatchFailure is wrapped by errors returned from Dispatch when the
// runner could not be started.
var ErrDispatchFailure = errors.New("failed to start benchmark runner")

// Options for New.
type Options struct {
	// ResultsDir is the results root.
	ResultsDir string

	// PrimaryBranch is the only branch that triggers benchmark runs.
	PrimaryBranch string

	// Runner is the command to run, e.g. []string{"./bench.sh"}. The commit
	// and the output path are appended as the last two arguments.
	Runner []string
}

// Outcome describes what Dispatch did.
type Outcome struct {
	// Started is true if a runner process was started.
	Started bool

	// RunID identifies the run in the logs and in the runner's environment.
	RunID string

	// Commit that is being benchmarked.
	Commit string

	// Path is the directory the runner was told to write into.
	Path string
}

// Dispatcher starts benchmark runs.
type Dispatcher struct {
	spawnCtx context.Context
	opts     Options

	started  metrics2.Counter
	skipped  metrics2.Counter
	failed   metrics2.Counter
	finished metrics2.Counter
}

// New returns a Dispatcher. Runners are started from ctx, detached from its
// cancellation and in their own process group, so that neither an aborted
// request nor a shutdown of this process stops a benchmark run.
func New(ctx context.Context, opts Options) (*Dispatcher, error) {
	if len(opts.Runner) == 0 {
		return nil, skerr.Fmt("a runner command is required")
	}
	if opts.ResultsDir == "" {
		return nil, skerr.Fmt("a results dir is required")
	}
	if opts.PrimaryBranch == "" {
		opts.PrimaryBranch = DefaultPrimaryBranch
	}
	return &Dispatcher{
		spawnCtx: exec.NoInterruptContext(ctx),
		opts:     opts,
		started:  metrics2.GetCounter("perfhook_dispatch", map[string]string{"outcome": "started"}),
		skipped:  metrics2.GetCounter("perfhook_dispatch", map[string]string{"outcome": "skipped"}),
		failed:   metrics2.GetCounter("perfhook_dispatch", map[string]string{"outcome": "failed"}),
		finished: metrics2.GetCounter("perfhook_dispatch", map[string]string{"outcome": "finished"}),
	}, nil
}

// sanitize makes s usable as a single path segment.
func sanitize(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// Label returns the branch label for n: "<title> (#<number>)" for pull
// requests and PrimaryLabel otherwise. A missing number is rendered as 0.
func Label(n notification.Notification) string {
	if !n.PullRequest {
		return PrimaryLabel
	}
	title := defaultPullRequestTitle
	if n.PullRequestTitle != nil && *n.PullRequestTitle != "" {
		title = *n.PullRequestTitle
	}
	number := 0
	if n.PullRequestNumber != nil {
		number = *n.PullRequestNumber
	}
	return sanitize(fmt.Sprintf("%s (#%d)", title, number))
}

// ResultPathFor returns where the results for n, dispatched at ts, are
// stored. Name is left empty since the runner picks the benchmark names.
func ResultPathFor(n notification.Notification, ts string) types.ResultPath {
	return types.ResultPath{
		Label:     Label(n),
		Timestamp: ts,
		Commit:    sanitize(n.CommitID()),
	}
}

// Dispatch starts a benchmark run for n if it is for the primary branch. It
// does not wait for the run to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, n notification.Notification) (Outcome, error) {
	if n.Branch != d.opts.PrimaryBranch {
		sklog.Infof("Branch %q is not %q, skipping benchmarks.", n.Branch, d.opts.PrimaryBranch)
		d.skipped.Inc(1)
		return Outcome{}, nil
	}
	p := ResultPathFor(n, types.FormatTimestamp(now.Now(ctx)))
	outcome := Outcome{
		RunID:  uuid.New().String(),
		Commit: p.Commit,
		Path:   filepath.Join(d.opts.ResultsDir, filepath.FromSlash(p.Dir())),
	}
	cmd := &exec.Command{
		Name:      d.opts.Runner[0],
		Args:      append(append([]string{}, d.opts.Runner[1:]...), outcome.Commit, outcome.Path),
		Env:       []string{RunIDEnvVar + "=" + outcome.RunID},
		LogStdout: true,
		LogStderr: true,
	}
	sklog.Infof("Starting run %s: %s", outcome.RunID, exec.DebugString(cmd))
	proc, err := exec.Start(d.spawnCtx, cmd)
	if err != nil {
		d.failed.Inc(1)
		return outcome, skerr.Wrapf(ErrDispatchFailure, "run %s: %s", outcome.RunID, err)
	}
	d.started.Inc(1)
	outcome.Started = true
	go d.reap(outcome.RunID, proc)
	return outcome, nil
}

// reap waits for the runner so its resources are released and logs how it
// ended.
func (d *Dispatcher) reap(runID string, proc exec.Process) {
	if err := proc.Wait(); err != nil {
		sklog.Errorf("Run %s failed: %s", runID, err)
		return
	}
	d.finished.Inc(1)
	sklog.Infof("Run %s finished.", runID)
}
