// Package useragent backs normalize.UserAgentParser with ua-parser's
// regex-driven client database, the same library the wider telemetry/agent
// ecosystem in this pack (DataDog's agent, Grafana Tempo) depends on for
// browser/OS/device family detection.
package useragent

import (
	"fmt"

	"github.com/ua-parser/uap-go/uaparser"

	"github.com/rhcarvalho/relay/internal/normalize"
)

// Parser parses User-Agent header values into family/version tuples.
type Parser struct {
	inner *uaparser.Parser
}

// New loads the regex pattern file (uap-core's regexes.yaml, or a trimmed
// subset of it) at regexFile.
func New(regexFile string) (*Parser, error) {
	inner, err := uaparser.New(regexFile)
	if err != nil {
		return nil, fmt.Errorf("useragent: load pattern file %q: %w", regexFile, err)
	}
	return &Parser{inner: inner}, nil
}

// Parse implements normalize.UserAgentParser.
func (p *Parser) Parse(userAgent string) normalize.UAResult {
	if p == nil || p.inner == nil || userAgent == "" {
		return normalize.UAResult{}
	}
	client := p.inner.Parse(userAgent)

	result := normalize.UAResult{}
	if client.UserAgent != nil {
		result.BrowserFamily = client.UserAgent.Family
		result.BrowserVersion = versionString(client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch)
	}
	if client.Os != nil {
		result.OSFamily = client.Os.Family
		result.OSVersion = versionString(client.Os.Major, client.Os.Minor, client.Os.Patch)
	}
	if client.Device != nil {
		result.DeviceFamily = client.Device.Family
	}
	return result
}

func versionString(major, minor, patch string) string {
	switch {
	case major == "":
		return ""
	case minor == "":
		return major
	case patch == "":
		return major + "." + minor
	default:
		return major + "." + minor + "." + patch
	}
}

// Noop is a UserAgentParser that returns nothing, used when no pattern file
// is configured.
type Noop struct{}

func (Noop) Parse(string) normalize.UAResult { return normalize.UAResult{} }
