package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xbst/internal/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestDemoCmd_AVL(t *testing.T) {
	out, _, err := execute(t, "demo", "--engine", "avl", "--no-color", "--log-level", "error")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "== avl ==\n# insert 60: inserted\n♢ >>>\t60 ⚖️0 h0 [  ]\n"), out)
	require.Contains(t, out, "# search 30: found\n")
	require.Contains(t, out, "# search 55: not found\n")
	require.Contains(t, out, "# delete 20: deleted\n")
	require.True(t, strings.HasSuffix(out, "# delete 10: deleted\n(empty tree)\n"), out)
	require.NotContains(t, out, "rbtree")
}

func TestDemoCmd_Both(t *testing.T) {
	out, _, err := execute(t, "demo", "--no-color", "--log-level", "error")
	require.NoError(t, err)
	require.Less(t, strings.Index(out, "== avl =="), strings.Index(out, "== rbtree =="))
	// The red-black tree after the six inserts.
	require.Contains(t, out, "♢ >>>\t40 (Black) [L20 R60 ]\n")
}

func TestDemoCmd_TableAndTrace(t *testing.T) {
	out, errOut, err := execute(t, "demo", "-e", "rbtree", "-f", "table", "--no-color",
		"--log-level", "debug", "--log-encoder", "json")
	require.NoError(t, err)
	require.Contains(t, strings.ToUpper(out), "COLOR")
	require.Contains(t, errOut, `"msg":"rotated"`)
	require.Contains(t, errOut, `"component":"tree"`)
	require.Contains(t, errOut, `"component":"fx"`)
}

func TestDemoCmd_Prometheus(t *testing.T) {
	_, errOut, err := execute(t, "demo", "-e", "avl", "--no-color",
		"--metrics", "prometheus", "--metrics-listen", "127.0.0.1:0", "--log-level", "info")
	require.NoError(t, err)
	require.Contains(t, errOut, "metrics listening")
}

func TestDemoCmd_InvalidFlags(t *testing.T) {
	testcases := []struct {
		name string
		args []string
		err  error
	}{
		{name: "engine", args: []string{"demo", "--engine", "splay"}, err: config.ErrInvalidEngine},
		{name: "format", args: []string{"demo", "--format", "dot"}, err: config.ErrInvalidRenderFormat},
		{name: "exporter", args: []string{"demo", "--metrics", "statsd"}, err: config.ErrInvalidMetricsExporter},
		{name: "trials", args: []string{"stress", "--trials", "0"}, err: config.ErrInvalidStressTrials},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			_, _, err := execute(tt, tc.args...)
			require.ErrorIs(tt, err, tc.err)
		})
	}

	_, _, err := execute(t, "demo", "extra")
	require.Error(t, err)
}

func TestStressCmd(t *testing.T) {
	out, errOut, err := execute(t, "stress", "--trials", "2", "--keys", "32", "--workers", "2", "--seed", "5",
		"--log-level", "info", "--log-encoder", "json")
	require.NoError(t, err)
	require.Contains(t, out, "avl")
	require.Contains(t, out, "rbtree")
	require.Contains(t, strings.ToUpper(out), "SEED 5")
	require.Contains(t, errOut, `"msg":"stress started"`)
	require.Contains(t, errOut, `"msg":"stress finished"`)
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "xbst dev (commit: none, go"), out)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + string(os.PathSeparator) + "xbst.yaml"
	require.NoError(t, os.WriteFile(path, []byte("engine: rbtree\ndemo:\n  insert: [1, 2]\n  search: []\n  delete: [2]\n"), 0o600))

	out, _, err := execute(t, "demo", "--config", path, "--no-color", "--log-level", "error")
	require.NoError(t, err)
	require.Equal(t, "== rbtree ==\n"+
		"# insert 1: inserted\n"+
		"♢ >>>\t1 (Black) [  ]\n"+
		"# insert 2: inserted\n"+
		"|\t┌\t2 (Red) [  P1]\n"+
		"♢ >>>\t1 (Black) [ R2 ]\n"+
		"# delete 2: deleted\n"+
		"♢ >>>\t1 (Black) [  ]\n", out)
}
