package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "collect", "run-once":
		return runCollect(args[1:])
	case "cleanup":
		return runCleanup(args[1:])
	case "report":
		return runReport(args[1:])
	case "stories":
		return runStories(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "newswatch CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  newswatch <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health   Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  collect  Run one collection cycle over the watchlist")
	fmt.Fprintln(os.Stderr, "  run-once Alias for collect")
	fmt.Fprintln(os.Stderr, "  cleanup  Remove articles and clusters past retention")
	fmt.Fprintln(os.Stderr, "  report   Write a CSV report of recent grouped stories")
	fmt.Fprintln(os.Stderr, "  stories  List grouped stories")
	fmt.Fprintln(os.Stderr, "  stats    Show collection statistics")
	fmt.Fprintln(os.Stderr, "  serve    Start the Echo read API")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"newswatch <command> -h\" for command-specific flags.")
}
