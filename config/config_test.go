package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
project_roots:
  - name: main
    cvsroot: /cvsroot/main
    trunk_path: trunk
`

func TestUnmarshalAppliesDefaults(t *testing.T) {
	cfg, err := Unmarshal([]byte(minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, DefaultCommitThresholdSeconds, cfg.CommitThresholdSeconds)
	assert.Equal(t, "lowest-id", cfg.SymbolTiebreak)
	assert.Equal(t, []string{"utf-8", "latin-1"}, cfg.Encodings)
}

func TestUnmarshalRequiresProjectRoots(t *testing.T) {
	_, err := Unmarshal([]byte("commit_threshold_seconds: 60\n"))
	assert.Error(t, err)
}

func TestUnmarshalRejectsBadRegex(t *testing.T) {
	cfg := minimalConfig + "\nexcluded_symbols:\n  - pattern: \"[\"\n"
	_, err := Unmarshal([]byte(cfg))
	assert.Error(t, err)
}

func TestUnmarshalRejectsUnknownTiebreak(t *testing.T) {
	cfg := minimalConfig + "\nsymbol_tiebreak: highest-id\n"
	_, err := Unmarshal([]byte(cfg))
	assert.Error(t, err)
}

func TestSymbolRuleMatches(t *testing.T) {
	cfg := minimalConfig + "\nforced_branches:\n  - pattern: \"^rel-.*\"\n"
	parsed, err := Unmarshal([]byte(cfg))
	require.NoError(t, err)
	require.Len(t, parsed.ForcedBranches, 1)
	assert.True(t, parsed.ForcedBranches[0].Matches("rel-1-0"))
	assert.False(t, parsed.ForcedBranches[0].Matches("vendor"))
	assert.True(t, AnyMatches(parsed.ForcedBranches, "rel-1-0"))
}

func TestUnmarshalRejectsInvalidYAML(t *testing.T) {
	_, err := Unmarshal([]byte("project_roots: [this is not valid: ::"))
	assert.Error(t, err)
}
