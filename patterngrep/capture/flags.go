// Package capture implements the list, show and find commands.
package capture

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/go-appsec/patterngrep/patterngrep/cli"
	"github.com/go-appsec/patterngrep/patterngrep/mcpclient"
	"github.com/go-appsec/patterngrep/patterngrep/service/view"
)

var commands = []string{"list", "show", "find"}

// Parse runs one capture command; args[0] is the command name.
func Parse(args []string) error {
	if len(args) < 1 {
		return errors.New("command required")
	}

	switch args[0] {
	case "list":
		return parseList(args[1:])
	case "show":
		return parseShow(args[1:])
	case "find":
		return parseFind(args[1:])
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

func parseList(args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	cf := addClientFlags(fs)
	var offset, limit int

	fs.IntVar(&offset, "offset", 0, "skip this many rows")
	fs.IntVar(&limit, "limit", 0, "maximum rows to show (0 for all)")

	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep list [options]

List retained exchanges (Method, URL, Status, Length) in capture order.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", fs.Arg(0))
	} else if offset < 0 || limit < 0 {
		return errors.New("--offset and --limit must be >= 0")
	}
	return list(cf, offset, limit)
}

func parseShow(args []string) error {
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	fs.SetInterspersed(true)
	cf := addClientFlags(fs)
	var generation int64
	var side string

	fs.Int64Var(&generation, "generation", -1, "reject the index if captures changed since this list generation")
	fs.StringVar(&side, "side", "", "print only the request or the response")

	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep show <index> [options]

Open a retained exchange and print its request and response.
The opened exchange becomes the target of "patterngrep find".

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one index required")
	}

	index, err := parseIndex(fs.Arg(0))
	if err != nil {
		return err
	}
	opts := mcpclient.CaptureGetOpts{Index: index}
	if generation >= 0 {
		g := uint64(generation)
		opts.Generation = &g
	}

	var only *view.Side
	if side != "" {
		s, err := view.ParseSide(side)
		if err != nil {
			return cli.UnknownSideError(side)
		}
		only = &s
	}
	return show(cf, opts, only)
}

func parseFind(args []string) error {
	fs := pflag.NewFlagSet("find", pflag.ContinueOnError)
	fs.SetInterspersed(true)
	cf := addClientFlags(fs)
	var index int

	fs.IntVar(&index, "index", -1, "open this row first instead of the one last shown")

	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep find <request|response> <text> [options]

Find the first case-insensitive occurrence of <text> in the opened exchange.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("side required")
	}

	side := fs.Arg(0)
	if _, err := view.ParseSide(side); err != nil {
		return cli.UnknownSideError(side)
	}
	text := strings.Join(fs.Args()[1:], " ")
	return find(cf, index, side, text)
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return index, nil
}
