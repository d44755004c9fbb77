package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that print as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// emptyCell is shown for missing or blank cells.
const emptyCell = "-"

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	headers := data.Headers()
	table := newTable(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(true)
	for _, row := range data.Rows() {
		table.Append(fitRow(row, len(headers)))
	}
	table.Render()
	return nil
}

// PrintKeyValues writes one "key: value" line per pair with the values
// aligned.
func PrintKeyValues(w io.Writer, pairs [][2]string) error {
	table := newTable(w)
	for _, pair := range pairs {
		row := fitRow(pair[:], 2)
		row[0] += ":"
		table.Append(row)
	}
	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
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

// fitRow pads or trims row to width cells and fills blank cells.
func fitRow(row []string, width int) []string {
	out := make([]string, width)
	for i := range out {
		if i < len(row) && row[i] != "" {
			out[i] = row[i]
		} else {
			out[i] = emptyCell
		}
	}
	return out
}

// TableData is a TableRenderer for ad-hoc tables.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a new TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow adds a row. Rows are fitted to the header width when printed.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string { return t.headers }

func (t *TableData) Rows() [][]string { return t.rows }
