// Package monitor implements the arm, disarm and status commands.
package monitor

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/go-appsec/patterngrep/patterngrep/cli"
	"github.com/go-appsec/patterngrep/patterngrep/mcpclient"
)

var commands = []string{"arm", "disarm", "status"}

// Parse runs one monitor command; args[0] is the command name.
func Parse(args []string) error {
	if len(args) < 1 {
		return errors.New("command required")
	}

	switch args[0] {
	case "arm":
		return parseArm(args[1:])
	case "disarm":
		return parseDisarm(args[1:])
	case "status":
		return parseStatus(args[1:])
	default:
		return cli.UnknownCommandError(args[0], commands)
	}
}

type clientFlags struct {
	url     string
	timeout time.Duration
}

func addClientFlags(fs *pflag.FlagSet) *clientFlags {
	var cf clientFlags
	fs.StringVar(&cf.url, "url", mcpclient.DefaultMCPURL, "MCP endpoint of the running service")
	fs.DurationVar(&cf.timeout, "timeout", 30*time.Second, "client-side timeout")
	return &cf
}

func parseArm(args []string) error {
	fs := pflag.NewFlagSet("arm", pflag.ContinueOnError)
	fs.SetInterspersed(true)
	cf := addClientFlags(fs)

	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep arm <pattern> [options]

Start retaining proxied exchanges whose response body matches <pattern>.
Arming discards all previous captures.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("pattern required")
	}

	// a pattern may contain spaces without quoting
	return arm(cf, strings.Join(fs.Args(), " "))
}

func parseDisarm(args []string) error {
	fs := pflag.NewFlagSet("disarm", pflag.ContinueOnError)
	cf := addClientFlags(fs)

	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep disarm [options]

Stop retaining exchanges and discard all captures.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return disarm(cf)
}

func parseStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	cf := addClientFlags(fs)

	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep status [options]

Show the monitor state, the active pattern and the proxy address.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return status(cf)
}
