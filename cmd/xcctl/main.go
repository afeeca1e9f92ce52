// Binary xcctl is the operator-facing client for one container's
// control socket: exec a one-off process, trigger run_main, start the
// container, or rewrite its hosts file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/xcjail/xc/ipc/client"
	"github.com/xcjail/xc/models"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&execCmd{}, "")
	subcommands.Register(&runMainCmd{}, "")
	subcommands.Register(&startCmd{}, "")
	subcommands.Register(&writeHostsCmd{}, "")
	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

func dial(socketPath string) *client.Client {
	c, err := client.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: connecting to %s: %v\n", socketPath, err)
		os.Exit(1)
	}
	return c
}

func printResult(status int, body interface{}) subcommands.ExitStatus {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "status:\t%d\n", status)
	if body != nil {
		if enc, err := json.MarshalIndent(body, "", "  "); err == nil {
			fmt.Fprintf(w, "body:\t%s\n", enc)
		}
	}
	if status != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type execCmd struct {
	socket  string
	arg0    string
	workDir string
}

func (*execCmd) Name() string     { return "exec" }
func (*execCmd) Synopsis() string { return "spawn a one-off process in the container" }
func (*execCmd) Usage() string    { return "exec -socket=<path> -arg0=<path> [args...]\n" }

func (c *execCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.socket, "socket", "", "control socket path")
	f.StringVar(&c.arg0, "arg0", "", "executable path, resolved inside the container")
	f.StringVar(&c.workDir, "workdir", "", "working directory inside the container")
}

func (c *execCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.socket == "" || c.arg0 == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	spec := models.ExecSpec{
		Arg0:    c.arg0,
		Args:    f.Args(),
		Envs:    map[string]string{},
		WorkDir: c.workDir,
		Output:  models.Inherit(),
	}
	conn := dial(c.socket)
	defer conn.Close()
	status, body, err := conn.Call("exec", spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: exec: %v\n", err)
		return subcommands.ExitFailure
	}
	return printResult(status, body)
}

type runMainCmd struct {
	socket string
}

func (*runMainCmd) Name() string             { return "run-main" }
func (*runMainCmd) Synopsis() string         { return "enqueue the container's main process" }
func (*runMainCmd) Usage() string            { return "run-main -socket=<path>\n" }
func (c *runMainCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.socket, "socket", "", "control socket path")
}

func (c *runMainCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.socket == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conn := dial(c.socket)
	defer conn.Close()
	status, body, err := conn.Call("run_main", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: run-main: %v\n", err)
		return subcommands.ExitFailure
	}
	return printResult(status, body)
}

type startCmd struct {
	socket string
}

func (*startCmd) Name() string     { return "start" }
func (*startCmd) Synopsis() string { return "start the container's init/main lifecycle" }
func (*startCmd) Usage() string    { return "start -socket=<path>\n" }
func (c *startCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.socket, "socket", "", "control socket path")
}

func (c *startCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.socket == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conn := dial(c.socket)
	defer conn.Close()
	status, body, err := conn.Call("start", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: start: %v\n", err)
		return subcommands.ExitFailure
	}
	return printResult(status, body)
}

type writeHostsCmd struct {
	socket string
	file   string
}

func (*writeHostsCmd) Name() string     { return "write-hosts" }
func (*writeHostsCmd) Synopsis() string { return "replace the container's /etc/hosts entries" }
func (*writeHostsCmd) Usage() string {
	return "write-hosts -socket=<path> -file=<entries.json>\n"
}
func (c *writeHostsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.socket, "socket", "", "control socket path")
	f.StringVar(&c.file, "file", "", "JSON file containing a [{ip_addr,hostname}] array")
}

func (c *writeHostsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.socket == "" || c.file == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	data, err := os.ReadFile(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: reading %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}
	var entries []models.HostEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: decoding %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}
	conn := dial(c.socket)
	defer conn.Close()
	status, body, err := conn.Call("write_hosts", entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcctl: write-hosts: %v\n", err)
		return subcommands.ExitFailure
	}
	return printResult(status, body)
}
