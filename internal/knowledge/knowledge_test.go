package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "pricing", tables.CannedActions["pricing"])
	assert.Equal(t, "contact", tables.CannedActions["contact-sales"])
	require.NotEmpty(t, tables.Keywords)
	assert.Equal(t, "pricing", tables.Keywords[0].Intent)
	assert.Contains(t, tables.Templates["pricing"], "**Our Pricing Plans:**")
	assert.Len(t, tables.Phrasings["greeting"], 3)
	assert.Contains(t, tables.EscalationKeywords, "refund")
	assert.NotEmpty(t, tables.FallbackText)
	assert.NotEmpty(t, tables.HandoffText)

	seed := tables.SeedEntries()
	require.Len(t, seed, 5)
	for _, e := range seed {
		assert.True(t, e.Active)
		assert.NotEmpty(t, e.Keywords)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	doc := `
canned_actions:
  Billing: Pricing
keywords:
  - intent: Complaint
    words: [Awful]
fallback_text: down
handoff_text: human
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pricing", tables.CannedActions["billing"])
	assert.Equal(t, []string{"awful"}, tables.Keywords[0].Words)
	assert.Equal(t, "complaint", tables.Keywords[0].Intent)
}

func TestParseRequiresTexts(t *testing.T) {
	_, err := Parse([]byte("handoff_text: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("fallback_text: x\nhandoff_text: y\nkeywords:\n  - words: [a]\n"))
	assert.Error(t, err)
}

func TestHasKeyword(t *testing.T) {
	cases := []struct {
		text, kw string
		want     bool
	}{
		{"What are your PRICING plans?", "pricing", true},
		{"thanks a lot", "thank", true},
		{"this is broken", "hi", false},
		{"hi there", "hi", true},
		{"oh,hi", "hi", true},
		{"I want to talk to someone", "talk to someone", true},
		{"", "help", false},
		{"help", "", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, HasKeyword(c.text, c.kw), "%q in %q", c.kw, c.text)
	}
}

func TestContainsKeyword(t *testing.T) {
	cases := []struct {
		text, kw string
		want     bool
	}{
		{"prepayment question", "payment", true},
		{"this is odd", "hi", true},
		{"What are your PRICING plans?", " Pricing ", true},
		{"hello", "help", false},
		{"", "help", false},
		{"help", "", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, ContainsKeyword(c.text, c.kw), "%q in %q", c.kw, c.text)
	}
}

func TestRank(t *testing.T) {
	entries := []Entry{
		{ID: 1, Category: "general", Keywords: []string{"about"}, Active: true},
		{ID: 2, Category: "pricing", Keywords: []string{"price", "plan"}, Active: true},
		{ID: 3, Category: "hidden", Keywords: []string{"price", "plan"}, Active: false},
		{ID: 4, Category: "support", Keywords: []string{"help"}, Active: true},
	}

	got := Rank("which plan has the best price?", entries, 2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)

	all := Rank("nothing", entries, 0)
	assert.Len(t, all, 3)
}

func TestKeywordsRoundTrip(t *testing.T) {
	raw := JoinKeywords([]string{"price", "cost"})
	assert.Equal(t, "price,cost", raw)
	assert.Equal(t, []string{"price", "cost"}, SplitKeywords(" Price, cost ,price,"))
	assert.Nil(t, SplitKeywords(""))
}

func TestRenderHTML(t *testing.T) {
	got := RenderHTML("**Plans:**\n*from* $29 <b>")
	assert.Equal(t, "<strong>Plans:</strong><br><em>from</em> $29 &lt;b&gt;", got)
}
