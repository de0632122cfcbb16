package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	pprofserver "github.com/samsaffron/streamchat/internal/pprof"
	"github.com/spf13/cobra"
)

var pprofDuration int

// profileAction says what a pprof subcommand does with its endpoint.
type profileAction int

const (
	analyze profileAction = iota // go tool pprof
	dump                         // print the body
	browse                       // open in a browser
)

type profileKind struct {
	name   string
	short  string
	path   string
	action profileAction
}

var profileKinds = []profileKind{
	{"cpu", "Capture CPU profile", "profile", analyze},
	{"heap", "Capture heap profile", "heap", analyze},
	{"goroutine", "Dump goroutine stacks", "goroutine?debug=1", dump},
	{"block", "Capture blocking profile", "block", analyze},
	{"mutex", "Capture mutex contention profile", "mutex", analyze},
	{"web", "Open pprof index in browser", "", browse},
}

var pprofCmd = &cobra.Command{
	Use:   "pprof",
	Short: "Connect to a running relay's pprof server",
	Long: `Connect to the pprof debug server of a running relay.

First, start the relay with profiling enabled:
  streamchat serve --pprof-port 0     # random port (recommended)
  streamchat serve --pprof-port 6060  # specific port

Then, from another terminal:
  streamchat pprof status           # show the discovered port
  streamchat pprof cpu -d 10        # 10 second CPU profile
  streamchat pprof goroutine        # goroutine stack dump while replies stream
  streamchat pprof web              # open browser to pprof index

The port is read from the port file the relay writes, or given explicitly:
  streamchat pprof heap 6060`,
}

var pprofStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a pprof server is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, running := pprofserver.IsServerRunning()
		if !running {
			fmt.Fprintln(cmd.OutOrStdout(), "no pprof server running")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), profileURL(port, ""))
		return nil
	},
}

func init() {
	for _, kind := range profileKinds {
		sub := newProfileCmd(kind)
		if kind.name == "cpu" {
			sub.Flags().IntVarP(&pprofDuration, "duration", "d", 30, "Profile duration in seconds")
		}
		pprofCmd.AddCommand(sub)
	}
	pprofCmd.AddCommand(pprofStatusCmd)
	rootCmd.AddCommand(pprofCmd)
}

func newProfileCmd(kind profileKind) *cobra.Command {
	return &cobra.Command{
		Use:   kind.name + " [PORT]",
		Short: kind.short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := resolvePort(args)
			if err != nil {
				return err
			}
			path := kind.path
			if kind.name == "cpu" {
				path = fmt.Sprintf("profile?seconds=%d", pprofDuration)
				fmt.Fprintf(cmd.ErrOrStderr(), "Capturing %d second CPU profile...\n", pprofDuration)
			}
			url := profileURL(port, path)

			switch kind.action {
			case dump:
				return printURL(cmd.OutOrStdout(), url)
			case browse:
				return openBrowser(url)
			default:
				return runGoToolPprof(url)
			}
		},
	}
}

func profileURL(port int, path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/%s", port, path)
}

// resolvePort gets the port from args or from the port file.
func resolvePort(args []string) (int, error) {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid port: %s", args[0])
		}
		if port < 1 || port > 65535 {
			return 0, fmt.Errorf("port %d out of range (must be 1-65535)", port)
		}
		return port, nil
	}

	port, running := pprofserver.IsServerRunning()
	if !running {
		return 0, fmt.Errorf("no pprof server running (start the relay with --pprof-port)")
	}
	return port, nil
}

func runGoToolPprof(url string) error {
	cmd := exec.Command("go", "tool", "pprof", url)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func printURL(w io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
