package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plateDocument = `{
  "objects": [
    {
      "name": "Plate",
      "geometry": {
        "kind": "mesh",
        "mesh": {
          "vertices": [[0,0,0],[1,0,0],[1,1,0],[0,1,0]],
          "normals": [[0,0,1],[0,0,1],[0,0,1],[0,0,1]],
          "faces": [[0,1,2,3]]
        }
      },
      "attributes": {"selected": 0}
    },
    {"name": "Solid", "geometry": {"kind": "brep"}, "attributes": {"selected": 2}}
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plate.json")
	require.NoError(t, os.WriteFile(path, []byte(plateDocument), 0644))
	return path
}

func TestConvertDefaultOutput(t *testing.T) {
	input := writeInput(t)

	out, err := run(t, input, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "1 nodes, 1 skipped")

	output := filepath.Join(filepath.Dir(input), "plate.gltf")
	assert.FileExists(t, output)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	var summary bytes.Buffer
	require.NoError(t, inspect(&summary, f))
	assert.Contains(t, summary.String(), "version:   2.0")
	assert.Contains(t, summary.String(), "node 0: Plate")
}

func TestConvertSelectedOnlyGLB(t *testing.T) {
	input := writeInput(t)
	output := filepath.Join(t.TempDir(), "out", "selected.glb")

	out, err := run(t, input, "--selected-only", "--format", "glb", "-o", output, "--log-level", "error")
	require.NoError(t, err)
	// only the brep is selected and it has no render mesh
	assert.Contains(t, out, "0 nodes, 1 skipped")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[:4]))
}

func TestConvertConfigFile(t *testing.T) {
	input := writeInput(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("export:\n  format: glb\nlogging:\n  level: error\n"), 0644))

	_, err := run(t, input, "--config", cfgPath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(filepath.Dir(input), "plate.glb"))
}

func TestConvertErrors(t *testing.T) {
	input := writeInput(t)

	_, err := run(t, input, "--predicate", "most", "--log-level", "error")
	assert.Error(t, err)

	_, err = run(t, input, "--format", "fbx", "--log-level", "error")
	assert.Error(t, err)

	_, err = run(t, filepath.Join(t.TempDir(), "model.3dm"), "--log-level", "error")
	assert.ErrorContains(t, err, "unsupported")

	_, err = run(t)
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	input := writeInput(t)
	_, err := run(t, input, "--log-level", "error")
	require.NoError(t, err)

	out, err := run(t, "inspect", filepath.Join(filepath.Dir(input), "plate.gltf"))
	require.NoError(t, err)
	assert.Contains(t, out, "nodes:     1")
}
