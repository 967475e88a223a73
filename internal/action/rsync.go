// Package action provides the default transfer-command action: a
// configurable command template (typically invoking rsync) executed as
// a bounded child process. spec.md §1 explicitly keeps "the transfer
// command templates themselves (e.g. how rsync is invoked)" out of the
// core engine's scope and specifies it only as an external collaborator
// (§6 "Configuration surface": action handlers return a PID); this
// package is that collaborator.
package action

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"github.com/lipengyu/lsyncd/internal/dispatcher"
	"github.com/lipengyu/lsyncd/internal/logging"
	"github.com/lipengyu/lsyncd/internal/mirror"
)

// DefaultCommand mirrors the canonical lsyncd default action: an
// incremental rsync of the single changed path, archive mode, deleting
// files on the target that no longer exist on the source.
const DefaultCommand = "rsync -a --delete {source} {target}"

// DefaultStartupCommand performs the bulk initial synchronization of an
// entire Sync before the dispatcher enters its normal loop (spec.md
// §4.4 "Startup phase"). The trailing slashes are significant to rsync:
// they copy the directory's contents rather than the directory itself.
const DefaultStartupCommand = "rsync -a --delete {source}/ {target}/"

// Rsync is a per-Sync action: it renders a command template against the
// event's resolved source/target paths, splits it into argv with
// google/shlex (so templates can quote paths containing spaces), and
// spawns it non-blocking via os/exec.
type Rsync struct {
	// Command is the per-event template. Empty means DefaultCommand.
	Command string
	// StartupCommand is the bulk initial-sync template. Empty means
	// DefaultStartupCommand.
	StartupCommand string
	// Exits receives a ChildExit once the spawned process terminates —
	// this is how the action reports "child exit" back to the
	// dispatcher's host loop (spec.md §6 on_child_exit).
	Exits chan<- dispatcher.ChildExit
	Log   *logrus.Entry
}

// Handle is a mirror.ActionFunc: spec.md §4.4 says the action "receives
// an inlet ... and returns either a positive PID ... or a non-positive
// sentinel". The dispatcher's host loop reaps this child asynchronously
// via Exits, so spawn launches its own reap goroutine here.
func (r *Rsync) Handle(inlet *mirror.Inlet) int {
	ev := inlet.NextEvent()
	return r.spawn(r.templateOrDefault(), ev.SourcePath, ev.TargetPath, true)
}

// Startup is a mirror.StartupFunc performing the bulk initial sync.
// dispatcher.RunStartup is the sole waiter for a startup child (it calls
// os.FindProcess+Wait on the returned pid directly), so spawn must not
// also launch an async reap goroutine here — two waiters racing to wait4
// the same pid means one of them gets ECHILD, which previously surfaced
// as a spurious "startup phase failed" error.
func (r *Rsync) Startup(source, targetIdent string) int {
	return r.spawn(r.startupTemplateOrDefault(), source, targetIdent, false)
}

func (r *Rsync) templateOrDefault() string {
	if r.Command == "" {
		return DefaultCommand
	}
	return r.Command
}

func (r *Rsync) startupTemplateOrDefault() string {
	if r.StartupCommand == "" {
		return DefaultStartupCommand
	}
	return r.StartupCommand
}

func (r *Rsync) spawn(template, source, target string, reapAsync bool) int {
	rendered := strings.NewReplacer("{source}", source, "{target}", target).Replace(template)
	argv, err := shlex.Split(rendered)
	if err != nil || len(argv) == 0 {
		logging.Log(r.Log, logging.Error, "failed to parse action command template", logrus.Fields{"command": rendered, "error": errString(err)})
		return 0
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		logging.Log(r.Log, logging.Error, "failed to spawn action command", logrus.Fields{"command": rendered, "error": err.Error()})
		return 0
	}

	pid := cmd.Process.Pid
	if reapAsync {
		go r.reap(cmd, pid)
	}
	return pid
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// reap waits on a spawned child and reports its exit back to the
// dispatcher. It runs in its own goroutine because os/exec.Cmd.Wait
// blocks, and spec.md's engine must never block inside a callback
// (spec.md §5 "Engine callbacks run to completion without yielding") —
// waiting happens here, outside the engine, and only the resulting
// ChildExit crosses back into it.
func (r *Rsync) reap(cmd *exec.Cmd, pid int) {
	err := cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	r.Exits <- dispatcher.ChildExit{Pid: pid, Code: code}
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// ValidateTemplate reports a descriptive error if template references
// neither {source} nor {target}, a configuration mistake worth catching
// at load time rather than at the first failed sync.
func ValidateTemplate(template string) error {
	if !strings.Contains(template, "{source}") && !strings.Contains(template, "{target}") {
		return fmt.Errorf("action: command template %q references neither {source} nor {target}", template)
	}
	return nil
}
