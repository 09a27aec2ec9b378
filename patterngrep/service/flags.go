package service

import (
	"fmt"

	"github.com/spf13/pflag"
)

// portUnset marks a port flag that was not given on the command line.
const portUnset = -1

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath  string
	MCPPort     int // portUnset = use config, 0 = any free port
	ProxyPort   int // portUnset = use config, 0 = any free port
	MatchEngine string
	LogFile     string
	// Pattern arms the monitor as soon as the service starts.
	Pattern string
}

// ParseServeFlags parses flags for patterngrep serve.
func ParseServeFlags(args []string) (ServeFlags, error) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetInterspersed(true)
	flags := ServeFlags{MCPPort: portUnset, ProxyPort: portUnset}

	fs.StringVar(&flags.ConfigPath, "config", "", "config file path (default: ~/.patterngrep/config.json)")
	fs.IntVar(&flags.MCPPort, "port", portUnset, "MCP server port (default: from config or 9191)")
	fs.IntVar(&flags.ProxyPort, "proxy-port", portUnset, "proxy listen port (default: from config or 8181)")
	fs.StringVar(&flags.MatchEngine, "engine", "", "regex engine: regexp2 or re2 (default: from config)")
	fs.StringVar(&flags.LogFile, "log-file", "", "append service logs to this file instead of stderr")
	fs.StringVar(&flags.Pattern, "pattern", "", "arm the monitor with this pattern on startup")

	fs.Usage = func() {
		_, _ = fmt.Fprint(fs.Output(), `Usage: patterngrep serve [options]

Run the capture proxy and the MCP server in the foreground.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return flags, err
	} else if fs.NArg() > 0 {
		return flags, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	switch flags.MatchEngine {
	case "", "regexp2", "re2":
	default:
		return flags, fmt.Errorf("invalid --engine value %q: must be regexp2 or re2", flags.MatchEngine)
	}
	if flags.MCPPort < portUnset || flags.MCPPort > 65535 {
		return flags, fmt.Errorf("invalid --port value %d", flags.MCPPort)
	} else if flags.ProxyPort < portUnset || flags.ProxyPort > 65535 {
		return flags, fmt.Errorf("invalid --proxy-port value %d", flags.ProxyPort)
	}
	return flags, nil
}
