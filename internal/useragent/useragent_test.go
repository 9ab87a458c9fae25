package useragent

import (
	"testing"

	"github.com/rhcarvalho/relay/internal/normalize"
	"github.com/stretchr/testify/assert"
)

func TestNoopParseReturnsZeroValue(t *testing.T) {
	assert.Equal(t, normalize.UAResult{}, Noop{}.Parse("Mozilla/5.0"))
}

func TestNewMissingRegexFileReturnsError(t *testing.T) {
	_, err := New("/nonexistent/regexes.yaml")
	assert.Error(t, err)
}

func TestParseNilParserReturnsZeroValue(t *testing.T) {
	var p *Parser
	assert.Equal(t, normalize.UAResult{}, p.Parse("Mozilla/5.0"))
}

func TestParseEmptyUserAgentReturnsZeroValue(t *testing.T) {
	p := &Parser{}
	assert.Equal(t, normalize.UAResult{}, p.Parse(""))
}

func TestVersionStringComposesAvailableParts(t *testing.T) {
	assert.Equal(t, "", versionString("", "", ""))
	assert.Equal(t, "5", versionString("5", "", ""))
	assert.Equal(t, "5.1", versionString("5", "1", ""))
	assert.Equal(t, "5.1.2", versionString("5", "1", "2"))
}
