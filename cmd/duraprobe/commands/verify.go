package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/duraprobe/internal/cli/output"
	"github.com/marmos91/duraprobe/pkg/config"
	"github.com/marmos91/duraprobe/pkg/probe"
	"github.com/spf13/cobra"
)

var (
	verifyLayout    string
	verifyStrictLag bool
	verifyJSON      bool
)

// errVerificationFailed signals a clean non-zero exit: the diagnostics have
// already been written to stderr.
var errVerificationFailed = errors.New("verification failed")

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Classify the on-disk state a crashed run left behind",
	Long: `Verify reconstructs, from the surviving bytes alone, which parts of a
test file are consistent, which reflect a write interrupted between its
data and header update, and which are corrupt. It opens the file
read-only, trusts the filesystem's length over the file's own header, and
never modifies anything.

The layout must match the policy that produced the file: "header" for
runs of the grow policy, "slots" for the slots policy.

Exit status is 0 on full consistency and 1 on any hard corruption or
mismatch. Diagnostic detail goes to stderr; the summary table (or --json
report) goes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyLayout, "layout", "", "on-disk layout: header or slots")
	verifyCmd.Flags().BoolVar(&verifyStrictLag, "strict-lag", false, "treat a header lagging the file size as a failure")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit the report as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("layout") {
		cfg.Verify.Layout = verifyLayout
	}
	if cmd.Flags().Changed("strict-lag") {
		cfg.Verify.StrictLag = verifyStrictLag
	}

	layout, err := probe.ParseLayout(cfg.Verify.Layout)
	if err != nil {
		_ = cmd.Usage()
		return err
	}

	report, err := probe.Verify(args[0], probe.VerifyOptions{
		Layout:    layout,
		StrictLag: cfg.Verify.StrictLag,
	})
	if err != nil {
		return err
	}

	printDiagnostics(report)

	if verifyJSON {
		if err := output.PrintJSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		printSummary(report)
	}

	if !report.Success() {
		return errVerificationFailed
	}
	return nil
}

// printDiagnostics writes every deviation to stderr with enough context to
// diagnose which barrier combination was insufficient.
func printDiagnostics(r *probe.Report) {
	fmt.Fprintf(os.Stderr, "File is %d bytes in size.\n", r.FileSize)

	if r.Hard != "" {
		fmt.Fprintf(os.Stderr, "Hard corruption: %s\n", r.Hard)
		return
	}

	if r.Layout == probe.LayoutHeader && r.HeaderLagging {
		if r.StrictLag {
			fmt.Fprintf(os.Stderr, "Header claims %d bytes, less than the actual %d: failing due to --strict-lag.\n", r.ClaimedSize, r.FileSize)
		} else {
			fmt.Fprintf(os.Stderr, "Header claims %d bytes, less than the actual %d: the header is from a smaller file. Benign if the body it claims is intact.\n", r.ClaimedSize, r.FileSize)
		}
	}

	for _, d := range r.Deviations {
		switch r.Layout {
		case probe.LayoutHeader:
			fmt.Fprintf(os.Stderr, "Page %d at byte offset %d: expected %s, saw %s.\n", d.Slot, d.Offset, d.Expected, d.Observed)
		case probe.LayoutSlots:
			fmt.Fprintf(os.Stderr, "Slot %d at byte offset %d: expected %s, saw %s.\n", d.Slot, d.Offset, d.Expected, d.Observed)
		}
	}

	if r.Success() {
		fmt.Fprintln(os.Stderr, "Verification succeeded.")
	}
}

// printSummary renders the aggregate verdict on stdout.
func printSummary(r *probe.Report) {
	verdict := "FAIL"
	if r.Success() {
		verdict = "OK"
	}

	pairs := [][2]string{
		{"file", r.Path},
		{"layout", r.Layout.String()},
		{"size", fmt.Sprintf("%d", r.FileSize)},
	}
	if r.Layout == probe.LayoutHeader {
		pairs = append(pairs, [2]string{"claimed size", fmt.Sprintf("%d", r.ClaimedSize)})
	}
	pairs = append(pairs, [2]string{"verdict", verdict})
	_ = output.SimpleTable(os.Stdout, pairs)

	fmt.Println()
	table := output.NewTableData("Class", "Count")
	table.AddRow("consistent", fmt.Sprintf("%d", r.Consistent))
	table.AddRow("in-flight-interrupted", fmt.Sprintf("%d", r.InFlight))
	table.AddRow("unwritten", fmt.Sprintf("%d", r.Unwritten))
	table.AddRow("mismatch", fmt.Sprintf("%d", r.Mismatches()))
	hard := 0
	if r.Hard != "" {
		hard = 1
	}
	table.AddRow("hard corruption", fmt.Sprintf("%d", hard))
	_ = output.PrintTable(os.Stdout, table)
}
