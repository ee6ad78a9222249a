package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mm1YAML = `
nodes:
  - name: desk
    servers: 1
    queue_capacity: 3
classes:
  - name: customer
    arrivals: {desk: {type: exponential, params: {rate: 1}}}
    services: {desk: {type: exponential, params: {rate: 1.5}}}
`

func writeNetwork(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRunNetwork_PrintsSummaryAndWritesOutputs(t *testing.T) {
	// GIVEN a small network and every output enabled
	dir := t.TempDir()
	o := runOptions{
		networkPath: writeNetwork(t, mm1YAML),
		seed:        7,
		maxTime:     100,
		countMethod: "finish",
		tracker:     "system",
		metricsFile: filepath.Join(dir, "run.prom"),
		recordsFile: filepath.Join(dir, "records.csv"),
	}

	// WHEN the network is run
	var out bytes.Buffer
	require.NoError(t, runNetwork(o, &out))

	// THEN the summary is on stdout and both files exist
	assert.Contains(t, out.String(), "Simulation Summary")
	assert.Contains(t, out.String(), "desk")
	assert.Contains(t, out.String(), "State Probabilities")
	assert.FileExists(t, o.metricsFile)
	records, err := os.ReadFile(o.recordsFile)
	require.NoError(t, err)
	assert.Contains(t, string(records), "queue_size_at_arrival")
}

func TestRunNetwork_SameSeedSameOutput(t *testing.T) {
	o := runOptions{networkPath: writeNetwork(t, mm1YAML), seed: 3, maxTime: 50}
	var first, second bytes.Buffer
	require.NoError(t, runNetwork(o, &first))
	require.NoError(t, runNetwork(o, &second))
	assert.Equal(t, first.String(), second.String())
}

func TestRunNetwork_RequiresStoppingCondition(t *testing.T) {
	o := runOptions{networkPath: writeNetwork(t, mm1YAML)}
	assert.Error(t, runNetwork(o, &bytes.Buffer{}))
}

func TestRunNetwork_UnknownTracker(t *testing.T) {
	o := runOptions{networkPath: writeNetwork(t, mm1YAML), maxTime: 1, tracker: "everything"}
	assert.Error(t, runNetwork(o, &bytes.Buffer{}))
}

func TestValidateNetwork(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateNetwork(writeNetwork(t, mm1YAML), &out))
	assert.Contains(t, out.String(), "1 nodes, 1 classes, OK")

	assert.Error(t, validateNetwork("", &out))
	assert.Error(t, validateNetwork(writeNetwork(t, "nodes: []\n"), &out))
}

func TestCountMethodValue(t *testing.T) {
	var v countMethodValue
	require.NoError(t, v.Set("arrive"))
	assert.Equal(t, "arrive", v.String())
	assert.Error(t, v.Set("depart"))
	assert.Equal(t, "arrive", v.String())
	assert.Equal(t, "method", v.Type())
}

func TestWriteRecordsFile(t *testing.T) {
	// GIVEN a writable path
	path := filepath.Join(t.TempDir(), "records.csv")

	// WHEN no records are written
	require.NoError(t, writeRecordsFile(path, nil))

	// THEN the file holds the header only
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "queue_size_at_arrival")

	// AND a path in a missing directory fails
	assert.Error(t, writeRecordsFile(filepath.Join(t.TempDir(), "missing", "records.csv"), nil))
}

func TestWriteRecordsFile_ReportsFailedFlush(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	// GIVEN a device that accepts the open but fails every write
	// WHEN the buffered CSV is flushed
	err := writeRecordsFile("/dev/full", nil)

	// THEN the failure reaches the caller
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records file")
}
