package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/template"
)

func writeSample(t *testing.T) string {
	t.Helper()
	catalog := nodes.NewCatalog()
	d := diagramkit.Diagram{
		Nodes: []diagramkit.Node{
			{ID: "start-1", Type: diagramkit.KindStart, Data: map[string]any{"label": "Start"}},
			{ID: "ask-1", Type: diagramkit.KindPersonJob, Position: diagramkit.Vec2{X: 253, Y: 7}, Data: map[string]any{
				"label":         "Ask",
				"defaultPrompt": "Tell {{who}} about {{topic}}",
			}},
		},
		Arrows: []diagramkit.Arrow{
			{ID: "a1", Source: "start-1:default:output", Target: "ask-1:first:input"},
		},
	}
	for _, n := range d.Nodes {
		d.Handles = append(d.Handles, catalog.DefaultHandles(n.ID, n.Type)...)
	}
	data, err := format.NewNative().Serialize(d)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), &stdout, &stderr, args)
	return stdout.String(), stderr.String(), err
}

func TestConvertCommand(t *testing.T) {
	in := writeSample(t)

	out, _, err := run(t, "convert", in, "--to", "light")
	require.NoError(t, err)
	assert.Contains(t, out, "workflow:")
	assert.Contains(t, out, "id: ask-1")

	target := filepath.Join(t.TempDir(), "out.yaml")
	out, stderr, err := run(t, "convert", in, "--to", "llm", "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flow:")
}

func TestConvertCommand_Errors(t *testing.T) {
	in := writeSample(t)

	_, _, err := run(t, "convert", in)
	assert.Error(t, err, "--to is required")

	_, _, err = run(t, "convert", in, "--to", "xml")
	assert.ErrorIs(t, err, format.ErrUnknownFormat)

	_, _, err = run(t, "convert", filepath.Join(t.TempDir(), "missing.json"), "--to", "light")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConvertCommand_PositionGridFromConfig(t *testing.T) {
	in := writeSample(t)
	cfg := filepath.Join(t.TempDir(), "diagramctl.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[export]\nposition_grid = 10.0\n"), 0o644))

	out, _, err := run(t, "--config", cfg, "convert", in, "--to", "light")
	require.NoError(t, err)

	var doc struct {
		Workflow []struct {
			ID       string          `yaml:"id"`
			Position diagramkit.Vec2 `yaml:"position"`
		} `yaml:"workflow"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Workflow, 2)
	assert.Equal(t, "ask-1", doc.Workflow[1].ID)
	assert.Equal(t, diagramkit.Vec2{X: 250, Y: 10}, doc.Workflow[1].Position)
}

func TestConfig_Invalid(t *testing.T) {
	in := writeSample(t)
	cfg := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("repository:\n  driver: mongo\n"), 0o644))

	_, _, err := run(t, "--config", cfg, "detect", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")
}

func TestDetectCommand(t *testing.T) {
	in := writeSample(t)

	out, _, err := run(t, "detect", in)
	require.NoError(t, err)
	assert.Equal(t, "native\n", out)

	out, _, err = run(t, "detect", "--all", in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "native     1.00\n"), out)

	blank := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte("nothing to see"), 0o644))
	_, _, err = run(t, "detect", blank)
	assert.ErrorIs(t, err, format.ErrUndetectable)
}

func TestValidateCommand(t *testing.T) {
	in := writeSample(t)

	out, _, err := run(t, "validate", in)
	require.NoError(t, err)
	assert.Contains(t, out, "valid native diagram")

	bad := filepath.Join(t.TempDir(), "bad.json")
	doc := `{"version":"3.0.0","nodes":[{"type":"start"}],"arrows":[]}`
	require.NoError(t, os.WriteFile(bad, []byte(doc), 0o644))

	out, _, err = run(t, "validate", "--format", "readable", bad)
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "nodes[0]: missing label")
}

func TestVarsCommand(t *testing.T) {
	in := writeSample(t)

	out, _, err := run(t, "vars", in)
	require.NoError(t, err)
	assert.Equal(t, "Ask: who, topic\n", out)

	out, _, err = run(t, "vars", "--names", in)
	require.NoError(t, err)
	assert.Equal(t, "topic\nwho\n", out)
}

func TestVarsCommand_Render(t *testing.T) {
	in := writeSample(t)

	out, _, err := run(t, "vars", in, "--set", "who=Ada", "--set", "topic=Go")
	require.NoError(t, err)
	assert.Equal(t, "Ask.defaultPrompt: Tell Ada about Go\n", out)

	out, _, err = run(t, "vars", in, "--set", "who=Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ask.defaultPrompt: Tell Ada about {{topic}}\n", out)

	out, _, err = run(t, "vars", in, "--set", "who=Ada", "--missing", "empty")
	require.NoError(t, err)
	assert.Equal(t, "Ask.defaultPrompt: Tell Ada about \n", out)

	_, _, err = run(t, "vars", in, "--set", "who=Ada", "--missing", "error")
	var undef *template.UndefinedVariableError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, []string{"topic"}, undef.Names)

	_, _, err = run(t, "vars", in, "--set", "novalue")
	assert.ErrorContains(t, err, "want key=value")

	_, _, err = run(t, "vars", in, "--missing", "loud")
	assert.ErrorContains(t, err, "unknown --missing value")
}

func TestParseSets(t *testing.T) {
	vars, err := parseSets([]string{"user.name=Ada", "user.role=admin", "n=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"user": map[string]any{"name": "Ada", "role": "admin"},
		"n":    "a=b",
	}, vars)
}

func TestStdinInput(t *testing.T) {
	data, err := os.ReadFile(writeSample(t))
	require.NoError(t, err)

	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	var stdout bytes.Buffer
	root.SetIn(bytes.NewReader(data))
	root.SetOut(&stdout)
	root.SetArgs([]string{"detect", "-"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, "native\n", stdout.String())
}

func TestVerboseFlag(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"-v", "detect", writeSample(t)})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, log.DebugLevel, c.Logger.GetLevel())
}

func TestVersion(t *testing.T) {
	SetVersion("v1.2.3", "abc123", "2024-01-01")
	t.Cleanup(func() { SetVersion("dev", "", "") })

	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "diagramctl v1.2.3")
	assert.Contains(t, out, "commit: abc123")
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stderr bytes.Buffer
	err := Execute(ctx, &bytes.Buffer{}, &stderr, []string{"serve", "--addr", "127.0.0.1:0"})
	assert.NoError(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
