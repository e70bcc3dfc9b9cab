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
	case "migrate":
		return runMigrate(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "schedule":
		return runSchedule(args[1:])
	case "serve":
		return runServe(args[1:])
	case "scrape":
		return runScrape(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "latest":
		return runLatest(args[1:])
	case "check":
		return runCheck(args[1:])
	case "incident-sources":
		return runIncidentSources(args[1:])
	case "hash-secret":
		return runHashSecret(args[1:])
	case "normalize":
		return runNormalize(args[1:])
	case "classify":
		return runClassify(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "tariqi CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tariqi <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health            Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  migrate           Apply the database schema")
	fmt.Fprintln(os.Stderr, "  process           Run one verification pass over unprocessed reports")
	fmt.Fprintln(os.Stderr, "  run-once          Alias for process")
	fmt.Fprintln(os.Stderr, "  schedule          Scrape and process on a fixed interval")
	fmt.Fprintln(os.Stderr, "  serve             Start the webhook and incident API server")
	fmt.Fprintln(os.Stderr, "  scrape            Sweep configured groups once")
	fmt.Fprintln(os.Stderr, "  ingest            Store one bot update or group message payload")
	fmt.Fprintln(os.Stderr, "  latest            List the most recent verified incidents")
	fmt.Fprintln(os.Stderr, "  check             Search verified incidents by location")
	fmt.Fprintln(os.Stderr, "  incident-sources  List raw reports behind one incident")
	fmt.Fprintln(os.Stderr, "  hash-secret       Produce WEBHOOK_SECRET_HASH for a secret token")
	fmt.Fprintln(os.Stderr, "  normalize         Print normalized text and tokens")
	fmt.Fprintln(os.Stderr, "  classify          Print the extraction result for a text")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"tariqi <command> -h\" for command-specific flags.")
}
