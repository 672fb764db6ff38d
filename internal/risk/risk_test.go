package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmptyCommand(t *testing.T) {
	t.Parallel()

	got := NewClassifier().Validate("")
	assert.True(t, got.Allowed)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, LevelLow, got.Level)
	assert.Empty(t, got.DetectedPatterns)
	assert.False(t, got.RequiresApproval)
}

func TestValidate_CriticalTier(t *testing.T) {
	t.Parallel()

	cases := []string{
		"rm -rf /",
		"rm -fr /",
		"dd if=/dev/zero of=/dev/sda",
		"mkfs.ext4 /dev/sdb1",
		"shutdown now",
		"echo flush > /etc/passwd",
		":(){ :|:& };:",
	}
	c := NewClassifier()
	for _, cmd := range cases {
		got := c.Validate(cmd)
		assert.Falsef(t, got.Allowed, "command %q should be blocked", cmd)
		assert.Equalf(t, 100, got.Score, "command %q", cmd)
		assert.Equalf(t, LevelCritical, got.Level, "command %q", cmd)
		assert.NotEmptyf(t, got.BlockReason, "command %q", cmd)
	}
}

func TestValidate_ObfuscationWins(t *testing.T) {
	t.Parallel()

	// The decoded payload is a harmless echo; the obfuscation check must
	// still block it before any tier or context scoring runs.
	got := NewClassifier().Validate("echo aGVsbG8= | base64 -d | sh")
	assert.False(t, got.Allowed)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, LevelCritical, got.Level)
	assert.False(t, got.RequiresApproval)
	require.Len(t, got.DetectedPatterns, 1)
	assert.Equal(t, "obf.decode_pipe_shell", got.DetectedPatterns[0])
	assert.Contains(t, got.BlockReason, "obfuscated")
}

func TestValidate_ObfuscationVariants(t *testing.T) {
	t.Parallel()

	cases := []string{
		"$(echo $(whoami))",
		"run \x07 now",
		"echo ${payload^^}",
		"echo ${cmd,,} | tee out",
		"printf %s ${script@E}",
	}
	c := NewClassifier()
	for _, cmd := range cases {
		got := c.Validate(cmd)
		assert.Falsef(t, got.Allowed, "command %q", cmd)
		assert.Equalf(t, LevelCritical, got.Level, "command %q", cmd)
	}
}

func TestValidate_BenignExpansionsAllowed(t *testing.T) {
	t.Parallel()

	// Array subscripts and plain brace expansions are everyday shell, not
	// obfuscation.
	cases := []string{
		`echo "${files[@]}"`,
		`for f in "${dirs[*]}"; do ls "$f"; done`,
		"echo ${HOME}",
		"tar czf backup.tgz ${paths}",
	}
	c := NewClassifier()
	for _, cmd := range cases {
		got := c.Validate(cmd)
		assert.Truef(t, got.Allowed, "command %q blocked: %+v", cmd, got)
		assert.NotContainsf(t, got.DetectedPatterns, "obf.param_expansion", "command %q", cmd)
	}
}

func TestValidate_MediumTierRequiresApproval(t *testing.T) {
	t.Parallel()

	got := NewClassifier().Validate("chmod 777 /srv/app")
	assert.True(t, got.Allowed)
	assert.Equal(t, 50, got.Score)
	assert.Equal(t, LevelMedium, got.Level)
	assert.True(t, got.RequiresApproval)
}

func TestValidate_HighTierBlocked(t *testing.T) {
	t.Parallel()

	got := NewClassifier().Validate("apt-get purge nginx")
	assert.False(t, got.Allowed)
	assert.Equal(t, 80, got.Score)
	assert.Equal(t, LevelHigh, got.Level)
	assert.False(t, got.RequiresApproval)
}

func TestValidate_ContextHeuristicsAdd(t *testing.T) {
	t.Parallel()

	// No tier match: chaining (20) + sudo (15) = 35, still LOW and allowed.
	got := NewClassifier().Validate("sudo ls /tmp && cat notes.txt")
	assert.True(t, got.Allowed)
	assert.Equal(t, 35, got.Score)
	assert.Equal(t, LevelLow, got.Level)
	assert.Contains(t, got.DetectedPatterns, "ctx.chaining")
	assert.Contains(t, got.DetectedPatterns, "ctx.privileged")
}

func TestValidate_MaxNotSum(t *testing.T) {
	t.Parallel()

	// A medium tier match stacked with context signals keeps the higher
	// single signal, it does not compound past it.
	got := NewClassifier().Validate("sudo chmod 777 /srv/app && echo done")
	// pattern=50, context=20+15=35 -> max is 50
	assert.Equal(t, 50, got.Score)
	assert.Equal(t, LevelMedium, got.Level)
	assert.True(t, got.Allowed)
	assert.True(t, got.RequiresApproval)
}

func TestValidate_ContextOnlyCanBlock(t *testing.T) {
	t.Parallel()

	// Redirect into /etc (40) + chaining (20) + sudo (15) = 75 -> HIGH.
	got := NewClassifier().Validate("sudo tee -a x >> /etc/hosts ; true")
	assert.False(t, got.Allowed)
	assert.Equal(t, 75, got.Score)
	assert.Equal(t, LevelHigh, got.Level)
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"  ls   -la  ",
		"echo \\\nhello",
		"a\t\tb\n c",
		"already clean",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equalf(t, once, Sanitize(once), "input %q", in)
	}
}

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ls -la /tmp", Sanitize("  ls \t -la \\\n /tmp "))
}

func TestNewClassifierFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "risk.yaml")
	rules := `rules:
  danger_patterns:
    - id: org.deploy_prod
      pattern: 'deploy\s+--target\s+prod'
      level: high
      message: direct production deploy
`
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o644))

	c, err := NewClassifierFromFile(path)
	require.NoError(t, err)

	got := c.Validate("deploy --target prod")
	assert.False(t, got.Allowed)
	assert.Equal(t, 80, got.Score)
	assert.Contains(t, got.DetectedPatterns, "org.deploy_prod")
}

func TestNewClassifierFromFile_Missing(t *testing.T) {
	t.Parallel()

	c, err := NewClassifierFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, c.Validate("rm -rf /").Allowed)
}
