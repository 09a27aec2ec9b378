package monitor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-appsec/patterngrep/patterngrep/cliutil"
	"github.com/go-appsec/patterngrep/patterngrep/mcpclient"
	"github.com/go-appsec/patterngrep/patterngrep/protocol"
)

func arm(cf *clientFlags, pattern string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cf.url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.MonitorArm(ctx, pattern)
	if err != nil {
		return fmt.Errorf("arm failed: %w", err)
	}
	printStatus(os.Stdout, resp)
	if resp.State == "armed" && resp.ProxyAddr != "" {
		cliutil.HintCommand(os.Stdout, "Browse through the proxy, then run", "patterngrep list")
	}
	return nil
}

func disarm(cf *clientFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cf.url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.MonitorDisarm(ctx)
	if err != nil {
		return fmt.Errorf("disarm failed: %w", err)
	}
	printStatus(os.Stdout, resp)
	return nil
}

func status(cf *clientFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.timeout)
	defer cancel()

	client, err := mcpclient.Connect(ctx, cf.url)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.MonitorStatus(ctx)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	printStatus(os.Stdout, resp)
	return nil
}

func printStatus(w io.Writer, st *protocol.MonitorStatusResponse) {
	_, _ = fmt.Fprintf(w, "State:    %s\n", st.State)
	if st.Pattern != "" {
		_, _ = fmt.Fprintf(w, "Pattern:  %s (%s)\n", st.Pattern, st.Syntax)
	}
	if st.ArmedAt != "" {
		_, _ = fmt.Fprintf(w, "Armed at: %s\n", st.ArmedAt)
	}
	_, _ = fmt.Fprintf(w, "Captured: %d\n", st.Captured)
	if st.ProxyAddr != "" {
		_, _ = fmt.Fprintf(w, "Proxy:    http://%s\n", st.ProxyAddr)
	}
}
