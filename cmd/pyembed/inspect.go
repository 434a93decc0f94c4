package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/indygreg/pyembed-go/internal/codec"
	"github.com/indygreg/pyembed-go/internal/importer"
	"github.com/indygreg/pyembed-go/internal/resindex"
)

var dim = color.New(color.Faint).SprintFunc()

// runInspect opens a blob and starts an interactive resource inspector.
func runInspect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pyembed inspect <blob>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	result, err := codec.Parse(data, codec.CurrentVersion.Major)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	idx := resindex.FromParseResult(result)
	imp := importer.New(idx, "", nil)

	runInspectorLoop(imp, os.Stdout)
	return nil
}

func runInspectorLoop(imp *importer.Importer, out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetMultiLineMode(false)

	line.SetCompleter(func(s string) (c []string) {
		for _, cmd := range []string{":help", ":quit", ":list", ":cat", ":data", ":dist", ":submodules"} {
			if strings.HasPrefix(cmd, s) {
				c = append(c, cmd)
			}
		}
		return
	})

	fmt.Fprintln(out, bold("pyembed inspector"))
	fmt.Fprintln(out, dim("Type :help for commands, :quit to exit"))

	for {
		input, err := line.Prompt("pyembed> ")
		if err == io.EOF {
			fmt.Fprintln(out, green("\nGoodbye!"))
			return
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !dispatch(imp, out, input) {
			return
		}
	}
}

func dispatch(imp *importer.Importer, out io.Writer, input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case ":quit", ":q":
		return false
	case ":help":
		printInspectorHelp(out)
	case ":list":
		names := imp.IterModules("")
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
	case ":submodules":
		if len(rest) != 1 {
			fmt.Fprintln(out, red("usage: :submodules <package>"))
			break
		}
		for _, n := range imp.IterModules(rest[0]) {
			fmt.Fprintln(out, n)
		}
	case ":cat":
		if len(rest) != 1 {
			fmt.Fprintln(out, red("usage: :cat <module>"))
			break
		}
		src, err := imp.GetSource(rest[0])
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
			break
		}
		fmt.Fprint(out, src)
	case ":data":
		if len(rest) != 2 {
			fmt.Fprintln(out, red("usage: :data <module> <key>"))
			break
		}
		data, err := imp.GetData(imp.InMemoryDataPath(rest[0], rest[1]))
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
			break
		}
		fmt.Fprintf(out, "%d bytes\n", len(data))
	case ":dist":
		if len(rest) > 1 {
			fmt.Fprintln(out, red("usage: :dist [project-name]"))
			break
		}
		query := ""
		if len(rest) == 1 {
			query = rest[0]
		}
		dists, err := imp.FindDistributions(query)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("Error"), err)
			break
		}
		if len(dists) == 0 {
			fmt.Fprintln(out, "no matching distribution")
			break
		}
		for _, d := range dists {
			md, err := d.Metadata()
			if err != nil {
				fmt.Fprintf(out, "%s %s\n", cyan(d.Name), red(err.Error()))
				continue
			}
			fmt.Fprintf(out, "%s %s\n", cyan(md.Name()), md.Version())
		}
	default:
		fmt.Fprintf(out, "%s: unknown command %q (try :help)\n", red("Error"), cmd)
	}
	return true
}

func printInspectorHelp(out io.Writer) {
	fmt.Fprintln(out, bold("Commands:"))
	fmt.Fprintln(out, "  :list                   list top-level modules")
	fmt.Fprintln(out, "  :submodules <pkg>       list a package's immediate submodules")
	fmt.Fprintln(out, "  :cat <module>           print a module's source")
	fmt.Fprintln(out, "  :data <module> <key>    report the byte length of a package resource")
	fmt.Fprintln(out, "  :dist [project-name]    look up distribution metadata, or list all if omitted")
	fmt.Fprintln(out, "  :quit                   exit")
}
