package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karsov/opsloop/internal/risk"
)

const validPlanJSON = `{
  "summary": "deploy the api",
  "steps": [
    {"step": 1, "action": "build image", "tool": "command", "args": {"command": "docker build ."}, "reasoning": "need a fresh image"},
    {"step": 2, "action": "push image", "tool": "command", "args": {"command": "docker push app"}}
  ],
  "risk_level": "MEDIUM",
  "requires_approval": false
}`

func TestParse_PureJSON(t *testing.T) {
	t.Parallel()

	p, err := Parse(validPlanJSON)
	require.NoError(t, err)
	assert.Equal(t, "deploy the api", p.Summary)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "command", p.Steps[0].Tool)
	assert.Equal(t, risk.LevelMedium, p.RiskLevel)
}

func TestParse_FencedWithProse(t *testing.T) {
	t.Parallel()

	raw := "Here is the plan you asked for:\n\n```json\n" + validPlanJSON + "\n```\n\nLet me know if anything needs adjusting."
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "deploy the api", p.Summary)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, 2, p.Steps[1].Number)
}

func TestParse_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	raw := `{"summary": "handle {braces} and \"quotes\"", "steps": [{"step": 1, "action": "echo {a:1}"}]}`
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, `handle {braces} and "quotes"`, p.Summary)
	assert.True(t, p.Steps[0].IsGeneration())
	assert.Equal(t, risk.LevelLow, p.RiskLevel)
}

func TestParse_TrailingProseAfterObject(t *testing.T) {
	t.Parallel()

	raw := validPlanJSON + "\nThat is everything."
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "deploy the api", p.Summary)
}

func TestParse_NoJSONAnywhere(t *testing.T) {
	t.Parallel()

	_, err := Parse("I could not produce a plan, sorry.")
	require.Error(t, err)
}

func TestParse_UnbalancedObject(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"summary": "cut off mid`)
	require.Error(t, err)
}

func TestParse_ObjectWrongShape(t *testing.T) {
	t.Parallel()

	_, err := Parse(`{"unrelated": true}`)
	require.Error(t, err)
}

func TestFallback(t *testing.T) {
	t.Parallel()

	raw := strings.Repeat("x", 500)
	p := Fallback(raw)
	assert.Len(t, p.Summary, 200)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "generate deliverable from request", p.Steps[0].Action)
	assert.True(t, p.Steps[0].IsGeneration())
	assert.Equal(t, risk.LevelLow, p.RiskLevel)
	assert.False(t, p.RequiresApproval)
}

func TestValidate_NumbersSteps(t *testing.T) {
	t.Parallel()

	p := Plan{Summary: "s", Steps: []Step{{Action: "a"}, {Action: "b"}}}
	require.NoError(t, p.Validate())
	assert.Equal(t, 1, p.Steps[0].Number)
	assert.Equal(t, 2, p.Steps[1].Number)
	assert.Equal(t, risk.LevelLow, p.RiskLevel)
}
