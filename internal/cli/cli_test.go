package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dimacros"
	"github.com/jhump/dimacros/macro"
)

const clockSrc = `package app

// Clock tells time.
//
// @Injectable(scope: .container)
// @other.Marker
type Clock struct{}

func NewClock() Clock { return Clock{} }
`

const lonelySrc = `package app

// @Injectable
type Lonely struct{}
`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module example.com/app\n\ngo 1.21\n"
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--color=never", "--log-level=warn"}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "macrogo ")
	assert.Contains(t, out, "go: go")
}

func TestMacrosCommand(t *testing.T) {
	out, _, err := runCLI(t, "macros")
	require.NoError(t, err)
	for _, m := range macro.All() {
		assert.Contains(t, out, "@"+m.Name())
	}
	assert.Contains(t, out, "scope: .")
}

func TestDescribeOption(t *testing.T) {
	testCases := []struct {
		opt      macro.Option
		expected string
	}{
		{macro.Option{Name: "scope", Kind: macro.OptEnum, Allowed: []string{"graph", "weak"}, Default: "graph"}, "scope: .graph|.weak = .graph"},
		{macro.Option{Name: "name", Kind: macro.OptString, Default: ""}, `name: string = ""`},
		{macro.Option{Name: "before", Kind: macro.OptStringList, Default: []string{"a", "b"}}, `before: [string] = ["a", "b"]`},
		{macro.Option{Name: "runtimeParams", Kind: macro.OptStringList}, `runtimeParams: [string] = []`},
		{macro.Option{Name: "enabled", Kind: macro.OptBool, Default: false}, "enabled: bool = false"},
		{macro.Option{Name: "threshold", Kind: macro.OptInt, Default: int64(0)}, "threshold: int = 0"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, describeOption(tc.opt))
	}
}

func TestGenerateCommand(t *testing.T) {
	t.Run("Should only report files on a dry run", func(t *testing.T) {
		dir := writeModule(t, map[string]string{"clock.go": clockSrc})
		out, _, err := runCLI(t, "--dir", dir, "generate", "--dry-run")
		require.NoError(t, err)
		assert.Equal(t, "would write clock_macros.go\n", out)
		assert.NoFileExists(t, filepath.Join(dir, "clock_macros.go"))
	})

	t.Run("Should write once and leave unchanged files alone", func(t *testing.T) {
		dir := writeModule(t, map[string]string{"clock.go": clockSrc})
		out, _, err := runCLI(t, "--dir", dir, "generate")
		require.NoError(t, err)
		assert.Equal(t, "wrote clock_macros.go\n", out)

		data, err := os.ReadFile(filepath.Join(dir, "clock_macros.go"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "dimacros.ScopeContainer")

		out, _, err = runCLI(t, "--dir", dir, "gen")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("Should print diagnostics and fail", func(t *testing.T) {
		dir := writeModule(t, map[string]string{"lonely.go": lonelySrc})
		_, stderr, err := runCLI(t, "--dir", dir, "generate")
		require.Error(t, err)
		assert.ErrorIs(t, err, dimacros.ErrMacroExpansionFailed)
		assert.Contains(t, stderr, "lonely.go:3:4: error[ValidationFailed]: @Injectable:")
		assert.Contains(t, stderr, "1 error, 0 warnings")
		assert.NoFileExists(t, filepath.Join(dir, "lonely_macros.go"))
	})

	t.Run("Should honor exclude globs from the config file", func(t *testing.T) {
		dir := writeModule(t, map[string]string{
			"lonely.go":     lonelySrc,
			".macrogo.yaml": "exclude:\n  - lonely.go\n",
		})
		_, _, err := runCLI(t, "--dir", dir, "generate")
		require.NoError(t, err)
	})
}

func TestExpandCommand(t *testing.T) {
	t.Run("Should print the generated source", func(t *testing.T) {
		dir := writeModule(t, map[string]string{"clock.go": clockSrc})
		out, _, err := runCLI(t, "--dir", dir, "expand", filepath.Join(dir, "clock.go"))
		require.NoError(t, err)
		assert.Contains(t, out, "// Code generated by macrogo. DO NOT EDIT.")
		assert.Contains(t, out, "Register(c dimacros.Container)")
		assert.NoFileExists(t, filepath.Join(dir, "clock_macros.go"))
	})

	t.Run("Should report diagnostics as JSON", func(t *testing.T) {
		dir := writeModule(t, map[string]string{"lonely.go": lonelySrc})
		_, stderr, err := runCLI(t, "--dir", dir, "--format=json", "expand", filepath.Join(dir, "lonely.go"))
		assert.ErrorIs(t, err, dimacros.ErrMacroExpansionFailed)
		assert.Contains(t, stderr, `"kind": "ValidationFailed"`)
		assert.Contains(t, stderr, `"file": "lonely.go"`)
	})

	t.Run("Should refuse generated files", func(t *testing.T) {
		_, _, err := runCLI(t, "expand", "clock_macros.go")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a generated file")
	})
}

func TestListCommand(t *testing.T) {
	dir := writeModule(t, map[string]string{"clock.go": clockSrc})
	out, _, err := runCLI(t, "--dir", dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "clock.go:5")
	assert.Contains(t, out, "@Injectable")
	assert.Contains(t, out, "@other.Marker")
	assert.Contains(t, out, "unknown")
	assert.Contains(t, out, "(2 annotations)")
}

func TestRootFlags(t *testing.T) {
	_, _, err := runCLI(t, "--format=xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)

	_, _, err = runCLI(t, "--jobs=-2", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs must not be negative")
}

func TestIsSourceChange(t *testing.T) {
	testCases := []struct {
		event    fsnotify.Event
		expected bool
	}{
		{fsnotify.Event{Name: "/a/clock.go", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/a/clock.go", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/a/clock_test.go", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/a/clock.go", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/a/clock_macros.go", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/a/clock_macros_test.go", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/a/README.md", Op: fsnotify.Write}, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, isSourceChange(tc.event), tc.event.String())
	}
}

func TestSkipDir(t *testing.T) {
	assert.True(t, skipDir(".git"))
	assert.True(t, skipDir("vendor"))
	assert.True(t, skipDir("_examples"))
	assert.False(t, skipDir("internal"))
}
