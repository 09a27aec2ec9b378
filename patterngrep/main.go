package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/go-appsec/patterngrep/patterngrep/capture"
	"github.com/go-appsec/patterngrep/patterngrep/cli"
	"github.com/go-appsec/patterngrep/patterngrep/config"
	"github.com/go-appsec/patterngrep/patterngrep/monitor"
	"github.com/go-appsec/patterngrep/patterngrep/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		printRootUsage()
		return 1
	}

	var err error
	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "arm", "disarm", "status":
		err = monitor.Parse(args)
	case "list", "show", "find":
		err = capture.Parse(args)
	case "version", "--version", "-v":
		fmt.Printf("patterngrep version %s\n", config.Version)
		return 0
	case "help", "--help", "-h":
		printRootUsage()
		return 0
	default:
		validCommands := []string{"serve", "arm", "disarm", "status", "list", "show", "find", "version", "help"}
		err = cli.UnknownCommandError(args[0], validCommands)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runServe(args []string) int {
	flags, err := service.ParseServeFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	} else if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error parsing serve flags: %v\n", err)
		return 1
	}

	if srv, err := service.NewServer(flags); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error creating service: %v\n", err)
		return 1
	} else if err := srv.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Service error: %v\n", err)
		return 1
	}
	return 0
}

func printRootUsage() {
	_, _ = fmt.Fprint(os.Stderr, `Usage: patterngrep <command> [options]

Passive HTTP inspector: retains only the proxied exchanges whose response
body matches one regular expression.

Commands:
  serve      Run the capture proxy and MCP server (foreground)
  arm        Start capturing responses matching a pattern (clears captures)
  disarm     Stop capturing and clear captures
  status     Show monitor state and the proxy address
  list       List captured exchanges
  show       Print one captured request and response
  find       Find text in the exchange opened by show

Client Options:
  --url <url>        MCP endpoint (default: http://127.0.0.1:9191/mcp)
  --timeout <dur>    Client-side timeout (default: 30s)

Use "patterngrep <command> --help" for specific command usage.
`)
}
