package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracestat/tracestat/analysis"
)

const sampleCalls = `index,traceid,timestamp,rpcid,um,rpctype,dm,interface,rt
0,T1,100,0,gw,http,svcA,/,1
1,T1,101,0.1,svcA,db,mysql,q,1
2,T1,102,0.1.1,mysql,mc,redis,g,1
3,T1,101,0.1,svcA,db,mysql,q,1
4,T2,200,0,gw,mq,kafka,p,1
5,T2,201,0.1,kafka,db,mysql,q,1
`

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "calls.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCalls), 0o644))
	return path
}

func TestRunAnalysis_WritesReport(t *testing.T) {
	// GIVEN a small CSV dataset and an output directory that does not exist yet
	in := writeInput(t, t.TempDir())
	out := filepath.Join(t.TempDir(), "reports")
	cfg := DefaultConfig()
	cfg.OutputDir = out

	// WHEN the analysis runs
	report, path, err := runAnalysis(context.Background(), analyzeParams{
		App:     "social",
		Input:   in,
		Workers: 2,
		Config:  cfg,
		RunID:   "test-run",
	})

	// THEN <output-dir>/<app>.yml holds the report
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "social.yml"), path)
	assert.Equal(t, int64(4), report.SFChain.Count)

	doc, err := analysis.LoadReport(path)
	require.NoError(t, err)
	assert.Len(t, doc, 16)
	assert.Contains(t, doc, "count_meta")
}

func TestRunAnalysis_BadInput_WritesNothing(t *testing.T) {
	out := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = out

	_, _, err := runAnalysis(context.Background(), analyzeParams{
		App:     "social",
		Input:   filepath.Join(t.TempDir(), "missing", "*.csv"),
		Workers: 1,
		Config:  cfg,
	})

	require.Error(t, err)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunAnalysis_ShortRow_ReadAsNulls(t *testing.T) {
	// GIVEN a dataset whose last row lost everything after the timestamp
	dir := t.TempDir()
	path := filepath.Join(dir, "short.csv")
	content := strings.Replace(sampleCalls, "5,T2,201,0.1,kafka,db,mysql,q,1", "5,T2,201", 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()

	// WHEN analyzed
	report, _, err := runAnalysis(context.Background(), analyzeParams{App: "a", Input: path, Workers: 1, Config: cfg})

	// THEN the run succeeds and the row, now stateless with a null rpcid, adds no chain row
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.SFChain.Count)
	assert.Equal(t, int64(2), report.MetaPerTraceSF.Count)
}

// newFlagCommand returns a command carrying only the flags under test, bound
// to the package flag variables.
func newFlagCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().Float64Var(&accuracy, "accuracy", 10000, "")
	c.Flags().BoolVar(&noHeader, "no-header", false, "")
	c.Flags().StringVar(&configPath, "config", "", "")
	return c
}

func TestResolveParams_FlagsOverrideConfig(t *testing.T) {
	// GIVEN a config file setting accuracy 500
	cfgPath := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("accuracy: 500\nshards: 3\n"), 0o644))

	c := newFlagCommand()
	require.NoError(t, c.Flags().Set("config", cfgPath))
	require.NoError(t, c.Flags().Set("accuracy", "2000"))
	require.NoError(t, c.Flags().Set("no-header", "true"))
	t.Cleanup(func() { configPath = "" })

	// WHEN resolved
	p, err := resolveParams(c, []string{"local[3]", "social", "in.csv"})

	// THEN explicit flags win and untouched config keys survive
	require.NoError(t, err)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, "social", p.App)
	assert.Equal(t, "in.csv", p.Input)
	assert.Equal(t, 2000.0, p.Config.Accuracy)
	assert.Equal(t, 3, p.Config.Shards)
	assert.False(t, p.Config.HasHeader())
	assert.NotEmpty(t, p.RunID)
}

func TestResolveParams_InvalidEndpoint(t *testing.T) {
	_, err := resolveParams(newFlagCommand(), []string{"mesos", "a", "b"})
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestResolveParams_InvalidAccuracy(t *testing.T) {
	c := newFlagCommand()
	require.NoError(t, c.Flags().Set("accuracy", "0.5"))

	_, err := resolveParams(c, []string{"local", "a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
