// Command coilc is the COIL toolchain driver: it runs the lex, parse,
// analyze, optimize and generate stages in sequence over a HOIL or
// COF input and writes a native code buffer (§6.4). It follows the
// teacher corpus's cmd/ralph-cc/main.go shape: a Cobra root command
// built by newRootCmd(out, errOut) so it is unit-testable independently
// of os.Exit, plus one --dump-<stage> flag per intermediate
// representation.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coil-toolchain/coil/pkg/cof"
	"github.com/coil-toolchain/coil/pkg/codegen"
	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/hoillex"
	"github.com/coil-toolchain/coil/pkg/hoilparse"
	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/optimizer"
	"github.com/coil-toolchain/coil/pkg/sema"
	"github.com/coil-toolchain/coil/pkg/target"
)

var version = "0.1.0"

// Exit codes (§6.4).
const (
	exitSuccess     = 0
	exitBadArgs     = 1
	exitIOFailure   = 2
	exitAsmFailure  = 3
)

var (
	outputPath  string
	targetName  string
	targetFile  string
	optLevel    int
	verbose     bool
	dumpTokens  bool
	dumpAST     bool
	dumpIR      bool
	dumpCOF     bool
	dumpAsm     bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		if code, ok := err.(exitError); ok {
			return int(code)
		}
		return exitBadArgs
	}
	return lastExitCode
}

// exitError carries a specific exit code up through Cobra's RunE,
// which otherwise only distinguishes error/no-error.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit %d", int(e)) }

// lastExitCode records the code a successful RunE wants main to
// return, since Cobra's own contract has no way to return 0 other
// than "no error".
var lastExitCode int

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coilc",
		Short:         "coilc is the COIL toolchain driver",
		Long:          `coilc assembles HOIL or COF input into native machine code through the lex, parse, analyze, optimize and generate pipeline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.AddCommand(newAssembleCmd(out, errOut))
	return rootCmd
}

func newAssembleCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble <input>",
		Short: "Assemble a HOIL or COF module into native machine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lastExitCode = doAssemble(args[0], out, errOut)
			if lastExitCode != exitSuccess {
				return exitError(lastExitCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file for the generated machine code")
	cmd.Flags().StringVar(&targetName, "target", "x86-64", "target architecture name (only \"x86-64\" is built in)")
	cmd.Flags().StringVar(&targetFile, "target-file", "", "path to a YAML target configuration, overriding --target")
	cmd.Flags().IntVar(&optLevel, "opt", 0, "optimization level 0-3")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print per-stage progress to stderr")
	cmd.Flags().BoolVar(&dumpTokens, "dump-tokens", false, "dump the HOIL token stream")
	cmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "dump the parsed module before semantic analysis")
	cmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "dump the IR in HOIL form after analysis")
	cmd.Flags().BoolVar(&dumpCOF, "dump-cof", false, "dump the encoded COF byte length")
	cmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "dump the generated textual assembly listing")
	return cmd
}

func doAssemble(inputPath string, out, errOut io.Writer) int {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(errOut, "coilc: error reading %s: %v\n", inputPath, err)
		return exitIOFailure
	}

	reporter := diag.NewReporter()
	var m *ir.Module

	if strings.HasSuffix(inputPath, ".cof") {
		logStage(errOut, "decode")
		m = cof.Decode(data, reporter)
	} else {
		m = parseHOIL(string(data), inputPath, reporter, out, errOut)
	}
	if m == nil || reporter.HadError() {
		printDiagnostics(errOut, reporter)
		return exitAsmFailure
	}

	logStage(errOut, "analyze")
	sema.New(m, inputPath, reporter).Run()
	if reporter.HadError() {
		printDiagnostics(errOut, reporter)
		return exitAsmFailure
	}
	if dumpIR {
		ir.NewPrinter(out).PrintModule(m)
	}

	cfg, code := resolveTarget(errOut)
	if cfg == nil {
		return code
	}

	if dumpCOF {
		encoded := cof.Encode(m)
		fmt.Fprintf(out, "COF: %d bytes\n", len(encoded))
	}

	logStage(errOut, "optimize")
	optimizer.New(optimizer.ParseLevel(optLevel), cfg, reporter).Run(m)
	if reporter.HadError() {
		printDiagnostics(errOut, reporter)
		return exitAsmFailure
	}

	logStage(errOut, "generate")
	buf := codegen.New(cfg, reporter).GenerateModule(m, dumpAsm)
	if reporter.HadError() {
		printDiagnostics(errOut, reporter)
		return exitAsmFailure
	}
	if dumpAsm {
		for _, line := range buf.Listing {
			fmt.Fprintln(out, line)
		}
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, buf.Code, 0o644); err != nil {
			fmt.Fprintf(errOut, "coilc: error writing %s: %v\n", outputPath, err)
			return exitIOFailure
		}
	}
	printDiagnostics(errOut, reporter)
	return exitSuccess
}

func parseHOIL(src, inputPath string, reporter *diag.Reporter, out, errOut io.Writer) *ir.Module {
	logStage(errOut, "lex")
	if dumpTokens {
		l := hoillex.New(src, inputPath, reporter)
		for {
			tok := l.NextToken()
			fmt.Fprintf(out, "%d:%d %s %q\n", tok.Line, tok.Column, tok.Type, tok.Literal)
			if tok.Type == hoillex.EOF {
				break
			}
		}
	}
	logStage(errOut, "parse")
	l := hoillex.New(src, inputPath, reporter)
	p := hoilparse.New(l, inputPath, reporter)
	m := p.ParseModule()
	if dumpAST {
		ir.NewPrinter(out).PrintModule(m)
	}
	return m
}

func resolveTarget(errOut io.Writer) (*target.Config, int) {
	if targetFile != "" {
		cfg, err := target.Load(targetFile)
		if err != nil {
			fmt.Fprintf(errOut, "coilc: %v\n", err)
			return nil, exitIOFailure
		}
		return cfg, exitSuccess
	}
	if targetName != "" && targetName != "x86-64" {
		fmt.Fprintf(errOut, "coilc: unknown target %q (only \"x86-64\" is built in; use --target-file for others)\n", targetName)
		return nil, exitBadArgs
	}
	return target.DefaultX86_64(), exitSuccess
}

func logStage(w io.Writer, stage string) {
	if verbose {
		fmt.Fprintf(w, "coilc: %s\n", stage)
	}
}

func printDiagnostics(w io.Writer, reporter *diag.Reporter) {
	for _, d := range reporter.Diagnostics() {
		fmt.Fprintln(w, d.String())
	}
}
