// Command pyembed builds, inspects, and verifies packed-resources blobs.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "pack":
		err = runPack(args)
	case "inspect":
		err = runInspect(args)
	case "verify":
		err = runVerify(args)
	case "dump-index":
		err = runDumpIndex(args)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("pyembed %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("pyembed - packed-resources blob tooling"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pyembed <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s <policy.yaml> <out.blob> <dir...>  Collect a directory tree into a blob\n", cyan("pack"))
	fmt.Printf("  %s <blob>                             Interactive resource inspector\n", cyan("inspect"))
	fmt.Printf("  %s <blob>                             Parse a blob and report errors\n", cyan("verify"))
	fmt.Printf("  %s <blob>                              Print every resource name, one per line\n", cyan("dump-index"))
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
