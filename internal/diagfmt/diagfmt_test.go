package diagfmt

import (
	"bytes"
	"encoding/json"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dimacros/macro"
)

func testDiags() macro.Diagnostics {
	warn := macro.Warnf(macro.MalformedArgument, token.Position{Filename: "/work/app/b.go", Line: 3, Column: 4},
		"positional arguments are ignored")
	warn.Macro = "Injectable"
	return macro.Diagnostics{
		warn,
		macro.Errorf(macro.ValidationFailed, token.Position{Filename: "/work/app/a.go", Line: 9, Column: 1}, "second"),
		macro.Errorf(macro.UnsupportedDeclarationKind, token.Position{Filename: "/work/app/a.go", Line: 2, Column: 7}, "first"),
	}
}

func TestPretty(t *testing.T) {
	t.Run("Should print sorted diagnostics with relative paths", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Pretty(&buf, testDiags(), PrettyOpts{BaseDir: "/work/app"}))
		assert.Equal(t, strings.Join([]string{
			"a.go:2:7: error[UnsupportedDeclarationKind]: first",
			"a.go:9:1: error[ValidationFailed]: second",
			"b.go:3:4: warning[MalformedArgument]: @Injectable: positional arguments are ignored",
			"",
		}, "\n"), buf.String())
	})

	t.Run("Should honor path modes", func(t *testing.T) {
		testCases := []struct {
			name     string
			opts     PrettyOpts
			expected string
		}{
			{"absolute", PrettyOpts{PathMode: PathModeAbsolute, BaseDir: "/work/app"}, "/work/app/a.go:2:7:"},
			{"basename", PrettyOpts{PathMode: PathModeBasename}, "a.go:2:7:"},
			{"outside base dir", PrettyOpts{BaseDir: "/elsewhere"}, "/work/app/a.go:2:7:"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, Pretty(&buf, testDiags(), tc.opts))
				assert.True(t, strings.HasPrefix(buf.String(), tc.expected), buf.String())
			})
		}
	})

	t.Run("Should truncate at max", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Pretty(&buf, testDiags(), PrettyOpts{PathMode: PathModeBasename, Max: 1}))
		assert.Equal(t, "a.go:2:7: error[UnsupportedDeclarationKind]: first\n... and 2 more\n", buf.String())
	})

	t.Run("Should add escape codes when colored", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Pretty(&buf, testDiags(), PrettyOpts{Color: true}))
		assert.Contains(t, buf.String(), "\x1b[")
	})

	t.Run("Should not reorder the input", func(t *testing.T) {
		diags := testDiags()
		_ = Sorted(diags)
		assert.Equal(t, "positional arguments are ignored", diags[0].Message)
	})
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "2 errors, 1 warning", Summary(testDiags()))
	assert.Equal(t, "0 errors, 0 warnings", Summary(nil))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, testDiags(), PrettyOpts{PathMode: PathModeBasename}))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "a.go", out[0]["file"])
	assert.Equal(t, float64(2), out[0]["line"])
	assert.Equal(t, "error", out[0]["severity"])
	assert.NotContains(t, out[0], "macro")
	assert.Equal(t, "Injectable", out[2]["macro"])
	assert.Equal(t, "MalformedArgument", out[2]["kind"])
}
