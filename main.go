package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/adlasm/adlasm/asm"
	"github.com/adlasm/adlasm/bitstream"
	"github.com/adlasm/adlasm/config"
	"github.com/adlasm/adlasm/objfile"
	"github.com/adlasm/adlasm/operand"
	"github.com/adlasm/adlasm/spec"
	"github.com/adlasm/adlasm/tools"
	"github.com/adlasm/adlasm/tui"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	// Command-line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")

		specPath = flag.String("spec", "", "Architecture description (spec) file. REQUIRED")
		asmPath  = flag.String("asm", "", "Assembly source file. REQUIRED")

		imagebase     = flag.String("imagebase", "", "Load address for the generated code (hex or decimal)")
		sigma16Labels = flag.Bool("sigma16-labels", false, "Parse labels as Sigma16 labels")

		printAST       = flag.Bool("print-ast", false, "Print the parse tree of the assembled source")
		printBitstream = flag.Bool("print-bitstream", false, "Print per-instruction bitfield debug info")
		tuiMode        = flag.Bool("tui", false, "Open the interactive inspector after assembling")
		lintMode       = flag.Bool("lint", false, "Lint the spec file and exit")
		xrefMode       = flag.Bool("xref", false, "Print a label cross-reference report")

		writeBin     = flag.String("write-bin", "", "Write the raw machine code bytes to this file")
		writeSigma16 = flag.String("write-sigma16", "", "Write assembled Sigma16 data directives to this file")
		writeObject  = flag.String("write-object", "", "Write machine code into a template binary, output here")
		templatePath = flag.String("template-path", "", "Template binary for -write-object (needs a .info file)")

		configFile = flag.String("config", "", "Configuration file (default: platform config dir)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("adlasm %s (commit %s, built %s)\n", Version, Commit, Date)
		return
	}
	if *showHelp {
		flag.Usage()
		return
	}

	if *specPath == "" {
		fail("the -spec flag is required")
	}
	if !*lintMode && *asmPath == "" {
		fail("the -asm flag is required")
	}
	if *writeObject != "" && *templatePath == "" {
		fail("-write-object requires -template-path")
	}

	// Load configuration; flags override config values.
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fail("%v", err)
	}

	base, err := cfg.Imagebase()
	if err != nil {
		fail("config: %v", err)
	}
	if *imagebase != "" {
		base, err = config.ParseAddress(*imagebase)
		if err != nil {
			fail("-imagebase: %v", err)
		}
	}
	useSigma16Labels := cfg.Assembly.Sigma16Labels || *sigma16Labels

	// The flag wins over the configured Sigma16 output path.
	sigma16Out := *writeSigma16
	if sigma16Out == "" {
		sigma16Out = cfg.Output.WriteSigma16
	}

	// Load the operand type registry and the architecture description.
	registry, err := operand.Builtin()
	if err != nil {
		fail("%v", err)
	}
	grammar, err := spec.NewParser(registry).ParseFile(*specPath)
	if err != nil {
		fail("%v", err)
	}

	if *lintMode {
		runLint(grammar)
		return
	}

	// Parse the assembly source against the grammar.
	source, err := os.ReadFile(*asmPath) // #nosec G304 -- user-supplied source path
	if err != nil {
		fail("reading %s: %v", *asmPath, err)
	}

	parser := asm.NewParser(grammar, registry)
	parser.Sigma16Labels = useSigma16Labels
	parser.MaxMatchDepth = cfg.Assembly.MaxMatchDepth
	nodes, err := parser.Parse(string(source))
	if err != nil {
		fail("%v", err)
	}

	if *printAST {
		fmt.Println(asm.FormatTree(nodes))
	}

	// Compose the byte stream.
	gen := bitstream.NewGenerator(grammar, registry, nodes, base)

	if *printBitstream {
		dump, err := gen.DebugDump()
		if err != nil {
			fail("%v", err)
		}
		fmt.Print(dump)
	}

	raw, err := gen.Bytes()
	if err != nil {
		fail("%v", err)
	}

	if *xrefMode {
		fmt.Print(tools.GenerateXRef(nodes, parser.Labels()))
	}

	if *tuiMode {
		layouts, err := gen.Layouts()
		if err != nil {
			fail("%v", err)
		}
		inspector := tui.NewInspector(string(source), layouts)
		if err := inspector.Run(); err != nil {
			fail("tui: %v", err)
		}
	}

	// Write outputs. When no output is selected, fall back to the configured
	// default binary path.
	writer := objfile.NewWriter(raw)
	wroteSomething := false

	if *writeBin != "" {
		if err := writer.WriteBin(*writeBin); err != nil {
			fail("%v", err)
		}
		wroteSomething = true
	}
	if sigma16Out != "" {
		if err := writer.WriteSigma16(sigma16Out); err != nil {
			fail("%v", err)
		}
		wroteSomething = true
	}
	if *writeObject != "" {
		if err := writer.WriteObject(*templatePath, *writeObject); err != nil {
			fail("%v", err)
		}
		wroteSomething = true
	}
	if !wroteSomething {
		if err := writer.WriteBin(cfg.Output.DefaultBin); err != nil {
			fail("%v", err)
		}
	}
}

// runLint lints the grammar and exits non-zero on lint errors.
func runLint(grammar *spec.Grammar) {
	linter := tools.NewLinter(nil)
	issues := linter.Lint(grammar)
	for _, issue := range issues {
		fmt.Println(issue)
	}
	if linter.HasErrors() {
		os.Exit(1)
	}
	fmt.Printf("%d issue(s) found\n", len(issues))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "adlasm: "+format+"\n", args...)
	os.Exit(1)
}
