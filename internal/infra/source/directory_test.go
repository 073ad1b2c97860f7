package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"打边炉ARTDBL", "打边炉artdbl"},
		{"  Hello World ", "helloworld"},
		{"Tech-News_2024!", "technews2024"},
		{"___", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeName(tt.in), "input %q", tt.in)
	}
}

func TestAsciiTokens(t *testing.T) {
	tokens := asciiTokens("打边炉ARTDBL", "ARTDBL")
	assert.Equal(t, []string{"artdbl"}, tokens)

	tokens = asciiTokens("ab", "中文")
	assert.Empty(t, tokens, "tokens shorter than 3 are dropped")
}

func TestMatchScore(t *testing.T) {
	assert.Equal(t, 100, matchScore("abc", "abc"))
	assert.Equal(t, 3, matchScore("abc", "abcdef"))
	assert.Equal(t, 0, matchScore("abc", "xyz"))
	assert.Equal(t, 0, matchScore("", "abc"))
}

func TestCandidateScoreRejectsWeakIdentifierMatch(t *testing.T) {
	// Identifier present and len >= 4 demands an identifier match >= 4.
	score := candidateScore("打边炉artdbl", "artdbl", "vlabteam")
	assert.Equal(t, 0, score)

	// Best-of must clear the floor of 6.
	score = candidateScore("abcde", "", "abcdexxxx")
	assert.Equal(t, 0, score, "containment of length 5 is under the floor")

	score = candidateScore("abcdefg", "", "abcdefgxxx")
	assert.Equal(t, 7, score)
}

func TestDiscoverRejectsOnConjunctiveTokenTest(t *testing.T) {
	// Index entries that miss the ASCII token "artdbl" can never match,
	// whatever their fuzzy score.
	assert.False(t, containsAllTokens(normalizeName("VLabTeam"), []string{"artdbl"}))
	assert.False(t, containsAllTokens(normalizeName("ADLab"), []string{"artdbl"}))
	assert.True(t, containsAllTokens(normalizeName("打边炉ARTDBL"), []string{"artdbl"}))
}

func TestExtractItemsParsesAnchorListing(t *testing.T) {
	p := NewDirectoryIndexProvider("https://index.example/list/all/", nil, nil, 0)
	body := `<html><body>
<a href="https://index.example/feed/abc123.xml">VLabTeam</a>
<a href="https://index.example/feed/def456.xml">打边炉ARTDBL</a>
<a href="https://index.example/feed/def456.xml">打边炉ARTDBL</a>
<a href="https://index.example/about">About</a>
</body></html>`

	items := p.extractItems(body)
	assert.Len(t, items, 2, "dedup by URL, non-feed anchors ignored")
}

func TestExtractAssetURLsHashedPattern(t *testing.T) {
	p := NewDirectoryIndexProvider("https://index.example/list/all/", nil, nil, 0)
	body := `<script>window.__VP_HASH_MAP__=JSON.parse("{\"list_all.md\":\"deadbeef\"}");</script>`

	urls := p.extractAssetURLs(body)
	assert.Equal(t, []string{
		"https://index.example/assets/list_all.md.deadbeef.js",
		"https://index.example/assets/list_all.md.deadbeef.lean.js",
	}, urls)
}

func TestExtractAssetURLsAbsentPattern(t *testing.T) {
	p := NewDirectoryIndexProvider("https://index.example/list/all/", nil, nil, 0)
	assert.Empty(t, p.extractAssetURLs("<html>nothing here</html>"))
}
