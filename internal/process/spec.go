package process

import (
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/loykin/reflexive/internal/logger"
)

// Capability flags understood by the monitor executable.
const (
	FlagWrite = "--write"
	FlagDebug = "--debug"
	FlagShell = "--shell"
	FlagPort  = "--port"
)

// Spec describes a monitor process to launch.
type Spec struct {
	Name        string            // label used in logs and log file names
	Command     []string          // executable followed by fixed args, e.g. ["npx", "reflexive"]
	Entry       string            // entry point passed positionally after the flags
	Write       bool              // pass FlagWrite
	Debug       bool              // pass FlagDebug
	Shell       bool              // pass FlagShell
	Port        int               // passed as FlagPort <port> when > 0
	Env         []string          // full environment; nil inherits the parent's
	Stdout      io.Writer         // defaults to os.Stdout
	Stderr      io.Writer         // defaults to os.Stderr
	Log         logger.FileConfig // optional rotated copies of the monitor's output
	GracePeriod time.Duration     // how long the process must survive to count as started
}

// Args returns the argument list after the executable, in order:
// fixed args, write, debug, shell, port, entry.
func (s Spec) Args() []string {
	var args []string
	if len(s.Command) > 1 {
		args = append(args, s.Command[1:]...)
	}
	if s.Write {
		args = append(args, FlagWrite)
	}
	if s.Debug {
		args = append(args, FlagDebug)
	}
	if s.Shell {
		args = append(args, FlagShell)
	}
	if s.Port > 0 {
		args = append(args, FlagPort, strconv.Itoa(s.Port))
	}
	if s.Entry != "" {
		args = append(args, s.Entry)
	}
	return args
}

// BuildCommand constructs the *exec.Cmd for the spec without starting it.
// No shell is involved; arguments are passed verbatim.
func (s Spec) BuildCommand() *exec.Cmd {
	name := ""
	if len(s.Command) > 0 {
		name = s.Command[0]
	}
	// #nosec G204 -- the executable comes from the embedding application's configuration
	cmd := exec.Command(name, s.Args()...)
	if s.Env != nil {
		cmd.Env = s.Env
	}
	configureSysProcAttr(cmd)
	return cmd
}
