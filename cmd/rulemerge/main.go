// Command rulemerge imports provider rules into the on-disk rule catalog.
//
//	rulemerge -source technologies.json -catalog rules.json
//
// The source is parsed and merged in memory before anything is written; a
// malformed source leaves the catalog untouched and exits non-zero.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/shortontech/edgeprobe/internal/rules"
)

var parsers = map[string]func([]byte) (rules.Catalog, error){
	"wappalyzer": rules.ParseWappalyzer,
	"catalog":    rules.Parse,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rulemerge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	source := fs.String("source", "", "rule source file, or - for stdin")
	catalogPath := fs.String("catalog", "rules.json", "catalog to update")
	format := fs.String("format", "wappalyzer", "source format: wappalyzer or catalog")
	dryRun := fs.Bool("dry-run", false, "report changes without writing the catalog")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *source == "" {
		fmt.Fprintln(stderr, "rulemerge: -source is required")
		fs.Usage()
		return 2
	}

	parse, ok := parsers[*format]
	if !ok {
		fmt.Fprintf(stderr, "rulemerge: unknown format %q\n", *format)
		return 2
	}

	data, err := readSource(*source, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "rulemerge: %v\n", err)
		return 1
	}
	incoming, err := parse(data)
	if err != nil {
		fmt.Fprintf(stderr, "rulemerge: %v\n", err)
		return 1
	}

	catalog, err := rules.Load(*catalogPath)
	if err != nil {
		fmt.Fprintf(stderr, "rulemerge: %v\n", err)
		return 1
	}

	stats := rules.Merge(catalog, incoming)
	fmt.Fprintf(stdout, "%d providers in source, %d added, %d updated, %d total\n",
		len(incoming), stats.Added, stats.Updated, len(catalog))

	if *dryRun {
		return 0
	}
	if err := rules.Save(*catalogPath, catalog); err != nil {
		fmt.Fprintf(stderr, "rulemerge: %v\n", err)
		return 1
	}
	return 0
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", path, err)
	}
	return data, nil
}
