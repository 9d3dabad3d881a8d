package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unixpickle/allreduce-bench/collcomm"
)

// workerEnv makes the test binary act as bench_allreduce,
// so the launcher can start it as a worker.
const workerEnv = "BENCH_ALLREDUCE_AS_MAIN"

func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) != "" {
		os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

type lockedBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) String() string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.buf.String()
}

var reportLine = regexp.MustCompile(
	`^\[[^\]]+\] rank (\d) transferred 1 MB in [0-9.]+ ms \(([0-9.]+) MB/sec\)$`)

func TestLocalEndToEnd(t *testing.T) {
	t.Setenv(workerEnv, "1")
	port, err := collcomm.FreePort()
	require.NoError(t, err)

	var stdout, stderr lockedBuffer
	code := run([]string{
		"--num-machines=2",
		"--data-size-mb=1",
		"--num-iters=3",
		"--master-port=" + strconv.Itoa(port),
		"--rendezvous-timeout=20s",
		"--worker-program=" + os.Args[0],
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	perRank := map[string]int{}
	for _, line := range strings.Split(stdout.String(), "\n") {
		match := reportLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		perRank[match[1]]++
		rate, err := strconv.ParseFloat(match[2], 64)
		require.NoError(t, err)
		assert.True(t, rate > 0)
	}
	assert.Equal(t, map[string]int{"0": 3, "1": 3}, perRank, "stdout: %s", stdout.String())
	assert.Contains(t, stdout.String(), "task 0 (")
}

func TestWorkerRoleSingleRank(t *testing.T) {
	var stdout, stderr lockedBuffer
	code := run([]string{
		"--role=worker",
		"--num-machines=1",
		"--data-size-mb=1",
		"--num-iters=2",
		"--backend=tree",
		"--no-accumulate",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())
	assert.Equal(t, 2, strings.Count(stdout.String(), "rank 0 transferred 1 MB"))
}

func TestConfigErrors(t *testing.T) {
	var stdout, stderr lockedBuffer
	assert.Equal(t, exitConfigError, run([]string{"--backend=smoke-signals"}, &stdout, &stderr))
	assert.Equal(t, exitConfigError, run([]string{"--num-iters=0"}, &stdout, &stderr))
	assert.Equal(t, exitConfigError, run([]string{"--zone=us-east-1a", "--region=us-west-2"},
		&stdout, &stderr))
	assert.Equal(t, exitConfigError, run([]string{"--zone=eu-west-1a", "--region=eu-west-1"},
		&stdout, &stderr))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bench:
  num_machines: 1
  data_size_mb: 1
  num_iters: 4
  backend: naive
  master_port: 6006
  master_addr: 127.0.0.1
`), 0644))

	defaults, o, err := parseArgs([]string{"--config=" + path, "--num-iters=2"}, &bytes.Buffer{})
	require.NoError(t, err)
	cfg := o.benchConfig()
	assert.Equal(t, 1, cfg.WorldSize)
	assert.Equal(t, "naive", cfg.Backend)
	assert.Equal(t, 2, cfg.Iterations)
	assert.True(t, cfg.Accumulate)
	assert.Equal(t, "ubuntu", defaults.LinuxType)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("bench:\n  num_machines: 0\n"), 0644))
	var stdout, stderr lockedBuffer
	assert.Equal(t, exitConfigError, run([]string{"--config=" + bad}, &stdout, &stderr))
}
