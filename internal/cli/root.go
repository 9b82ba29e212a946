package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Run executes one command. SIGINT and SIGTERM cancel the command's context;
// a running archive then stops after saving the in-flight item.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Execute(ctx, args)
}

func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "run":
		return runArchive(ctx, args[1:])
	case "discover":
		return runDiscover(ctx, args[1:])
	case "status":
		return runStatus(ctx, args[1:])
	case "doctor":
		return runDoctor(ctx, args[1:])
	case "init":
		return runInit(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("creator-archiver: mirror one account's uploads to local disk")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  creator-archiver init")
	fmt.Println("  creator-archiver run --uid <account id>")
	fmt.Println("  creator-archiver status")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init      write config.toml and run environment checks")
	fmt.Println("  doctor    check the download tool, ffmpeg and the output directory")
	fmt.Println("  discover  list the account's uploads into the state file, no downloads")
	fmt.Println("  run       sync the catalog and download pending videos one by one")
	fmt.Println("  status    downloaded/pending counts and the last run summary")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Settings come from config.toml, ARCHIVER_* env vars, then flags")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Ctrl+C stops a run; the current video stays pending for the next run")
}
