// Package output renders the verifier's report for humans: borderless
// tables on stdout, JSON when a script is consuming the verdict.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableData accumulates rows for one columnar section of the report,
// such as the per-class counts.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates an empty table with the given column headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow appends one row.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// PrintTable writes the table with uppercased headers and no borders.
func PrintTable(w io.Writer, data *TableData) error {
	table := bareTable(w)
	table.SetHeader(data.headers)
	table.SetAutoFormatHeaders(true)
	for _, row := range data.rows {
		table.Append(row)
	}
	table.Render()
	return nil
}

// SimpleTable writes key-value pairs, colon-separated: the one-line
// facts (file, layout, size, verdict) above the classification counts.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	table := bareTable(w)
	table.SetColumnSeparator(":")
	for _, pair := range pairs {
		table.Append(pair[:])
	}
	table.Render()
	return nil
}

// bareTable strips every separator and border so the output reads as
// aligned text rather than a drawn table.
func bareTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
