package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Class", "Count")

	assert.Equal(t, []string{"Class", "Count"}, table.headers)
	assert.Empty(t, table.rows)

	table.AddRow("consistent", "15")
	table.AddRow("in-flight-interrupted", "1")

	require.Len(t, table.rows, 2)
	assert.Equal(t, []string{"consistent", "15"}, table.rows[0])
	assert.Equal(t, []string{"in-flight-interrupted", "1"}, table.rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Class", "Count")
	table.AddRow("consistent", "15")
	table.AddRow("mismatch", "1")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "CLASS")
	assert.Contains(t, output, "COUNT")
	assert.Contains(t, output, "consistent")
	assert.Contains(t, output, "15")
	assert.Contains(t, output, "mismatch")
}

func TestSimpleTable(t *testing.T) {
	pairs := [][2]string{
		{"file", "working/test.dat"},
		{"verdict", "OK"},
	}

	var buf bytes.Buffer
	err := SimpleTable(&buf, pairs)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "file")
	assert.Contains(t, output, "working/test.dat")
	assert.Contains(t, output, "verdict")
	assert.Contains(t, output, "OK")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, map[string]int{"consistent": 15})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"consistent": 15`)
}
