// Command noesisctl is the CLI surface spec.md §6.4 describes: one
// subcommand per Runtime method, talking to noesisd over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/noesis-run/noesis/internal/output"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	defaultAddr := getenv("NOESIS_ADDR", "http://localhost:8080")

	root := flag.NewFlagSet("noesisctl", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	addrFlag := root.String("addr", defaultAddr, "noesisd gateway base URL (env NOESIS_ADDR)")
	timeoutFlag := root.Duration("timeout", 15*time.Second, "HTTP request timeout")
	formatFlag := root.String("format", "json", "output format: json or yaml")
	if err := root.Parse(args); err != nil {
		return usageError(err)
	}

	format, ok := output.ParseFormat(*formatFlag)
	if !ok {
		return usageError(fmt.Errorf("unknown --format %q (want json or yaml)", *formatFlag))
	}
	outputFormat = format

	remaining := root.Args()
	if len(remaining) == 0 {
		return usageError(errors.New("no command specified"))
	}

	client := newAPIClient(strings.TrimRight(*addrFlag, "/"), *timeoutFlag)

	switch remaining[0] {
	case "verify":
		return cmdVerify(ctx, client)
	case "verify_readonly":
		return cmdVerifyReadonly(ctx, client)
	case "status":
		return cmdStatus(ctx, client)
	case "vitals":
		return cmdVitals(ctx, client)
	case "session_start":
		return cmdSessionStart(ctx, client, remaining[1:])
	case "session_end":
		return cmdSessionEnd(ctx, client)
	case "recharge":
		return cmdRecharge(ctx, client, remaining[1:])
	case "op_exec":
		return cmdOpExec(ctx, client, remaining[1:])
	case "agent_force_cycle":
		return cmdAgentForceCycle(ctx, client)
	case "agent_wake":
		return cmdAgentWake(ctx, client)
	case "agent_sleep":
		return cmdAgentSleep(ctx, client)
	case "snapshot_create":
		return cmdSnapshotCreate(ctx, client, remaining[1:])
	case "snapshot_list":
		return cmdSnapshotList(ctx, client)
	case "snapshot_restore":
		return cmdSnapshotRestore(ctx, client, remaining[1:])
	case "meta_define":
		return cmdMetaDefine(ctx, client, remaining[1:])
	case "meta_compose":
		return cmdMetaCompose(ctx, client, remaining[1:])
	case "meta_specialize":
		return cmdMetaSpecialize(ctx, client, remaining[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError(fmt.Errorf("unknown command %q", remaining[0]))
	}
}

func usageError(err error) error {
	printUsage()
	return err
}

func printUsage() {
	fmt.Println(`noesisctl - command-line surface for a noesis organization

Usage:
  noesisctl [global flags] <command> [args]

Global Flags:
  --addr     noesisd gateway base URL (env NOESIS_ADDR, default http://localhost:8080)
  --timeout  HTTP timeout (default 15s)
  --format   output format: json (default) or yaml

Commands:
  verify                      run verification and log a VERIFICATION event
  verify_readonly             run verification without appending an event
  status                      print the current state
  vitals                      print host CPU/memory/load (not part of state)
  session_start <partner>     open a coupling session
  session_end                 close the active coupling session
  recharge [amount]           restore energy (default +0.1)
  op_exec <id> [json-params]  execute a catalog operation
  agent_force_cycle           force one sense-making cycle
  agent_wake                  wake the agent
  agent_sleep                 put the agent to sleep
  snapshot_create [desc]      create a snapshot bundle
  snapshot_list                list snapshot bundles
  snapshot_restore <id>       preview a snapshot bundle's events
  meta_define <json>          define a new quarantined operation
  meta_compose <json>         compose an operation from existing ones
  meta_specialize <json>      specialize an existing operation`)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
