package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/enrichment-service/internal/enrich"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["record"])
	assert.True(t, names["report"])

	for _, flag := range []string{"all", "no-second-pass", "quiet"} {
		assert.NotNil(t, runCmd.Flags().Lookup(flag), flag)
	}
}

func TestRecordCommands_RejectBadIDs(t *testing.T) {
	for _, name := range []string{"record", "report"} {
		t.Run(name, func(t *testing.T) {
			rootCmd.SetArgs([]string{name, "not-a-uuid"})
			rootCmd.SetOut(&bytes.Buffer{})
			err := rootCmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), `invalid record id "not-a-uuid"`)
		})
	}

	rootCmd.SetArgs([]string{"record"})
	require.Error(t, rootCmd.Execute())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, enrich.BatchSummary{
		BatchID:                 "batch-7",
		Passes:                  2,
		Processed:               12,
		Persisted:               11,
		PersistFailed:           1,
		AbstractsFound:          9,
		LinksCreated:            3,
		PublishedRecordsCreated: 2,
		Duration:                1500*time.Millisecond + 400*time.Microsecond,
	})

	out := buf.String()
	assert.Contains(t, out, "Batch batch-7 finished in 1.5s")
	assert.Contains(t, out, "records not saved:         1")
	assert.Contains(t, out, "version links created:     3")
	assert.Contains(t, out, "published records created: 2")
}
