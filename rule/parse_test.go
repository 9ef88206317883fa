package rule

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	list := `
- target: Dropbox
  action: allow
  priority: 10
  reason: work files
- target: "com.valvesoftware.*"
  action: block
`
	rules, err := Parse(strings.NewReader(list))
	require.NoError(t, err)
	assert.Equal(t, []Rule{
		{Target: "Dropbox", Action: ActionAllow, Priority: 10, Reason: "work files"},
		{Target: "com.valvesoftware.*", Action: ActionBlock},
	}, rules)

	doc := "rules:\n  - {target: curl, action: inspect}\n"
	rules, err = Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []Rule{{Target: "curl", Action: ActionInspect}}, rules)

	rules, err = Parse(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestParseInvalid(t *testing.T) {
	docs := []string{
		"- target: curl\n  action: deny\n",
		"- action: block\n",
		"just a string",
		"rules: [1, 2",
	}
	for _, doc := range docs {
		_, err := Parse(strings.NewReader(doc))
		assert.ErrorIs(t, err, ErrInvalidRule, doc)
	}
}

func TestParseLine(t *testing.T) {
	r, err := ParseLine("{target: Steam, action: block, priority: 5}")
	require.NoError(t, err)
	assert.Equal(t, Rule{Target: "Steam", Action: ActionBlock, Priority: 5}, r)

	_, err = ParseLine("Steam block")
	assert.ErrorIs(t, err, ErrInvalidRule)
}
