package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/indygreg/pyembed-go/internal/codec"
)

func runVerify(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pyembed verify <blob>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	result, err := codec.Parse(data, codec.CurrentVersion.Major)
	if err != nil {
		return fmt.Errorf("%s is not a valid packed-resources blob: %w", args[0], err)
	}

	names := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		names = append(names, r.Name)
	}
	sort.Strings(names)

	fmt.Printf("%s %s: %d resources, %d bytes\n", green("ok"), args[0], len(result.Records), len(data))
	return nil
}

func runDumpIndex(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pyembed dump-index <blob>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	result, err := codec.Parse(data, codec.CurrentVersion.Major)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}
