package cookies

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"speechset/internal/services"
)

// BrowserSpec identifies a browser cookie store resolved externally by the
// download tool.
type BrowserSpec struct {
	Browser   string
	Keyring   string
	Profile   string
	Container string
}

// String reassembles the spec in the download tool's accepted syntax.
func (s BrowserSpec) String() string {
	var b strings.Builder
	b.WriteString(s.Browser)
	if s.Keyring != "" {
		b.WriteString("+")
		b.WriteString(s.Keyring)
	}
	if s.Profile != "" {
		b.WriteString(":")
		b.WriteString(s.Profile)
	}
	if s.Container != "" {
		b.WriteString("::")
		b.WriteString(s.Container)
	}
	return b.String()
}

// Credentials is the opaque handle threaded through the pipeline. At most one
// of CookiesFile and Browser is set.
type Credentials struct {
	CookiesFile string
	Browser     *BrowserSpec
}

// Provided reports whether any credential source is configured.
func (c Credentials) Provided() bool {
	return c.CookiesFile != "" || c.Browser != nil
}

// Resolve validates the configured credential inputs and returns the handle.
// cookieFile and browserSpec are mutually exclusive; either may be empty.
func Resolve(cookieFile, browserSpec string) (Credentials, error) {
	if cookieFile != "" && browserSpec != "" {
		return Credentials{}, services.Wrap(services.ErrConfiguration, "cookies", "resolve",
			"cookie file and browser spec are mutually exclusive", nil)
	}
	if cookieFile != "" {
		if err := ValidateCookieFile(cookieFile); err != nil {
			return Credentials{}, err
		}
		return Credentials{CookiesFile: cookieFile}, nil
	}
	if browserSpec != "" {
		spec, err := ParseBrowserSpec(browserSpec)
		if err != nil {
			return Credentials{}, err
		}
		return Credentials{Browser: &spec}, nil
	}
	return Credentials{}, nil
}

// ParseBrowserSpec parses BROWSER[+KEYRING][:PROFILE][::CONTAINER]. The
// container separator is "::" and must be split off before the single-colon
// profile separator.
func ParseBrowserSpec(value string) (BrowserSpec, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return BrowserSpec{}, services.Wrap(services.ErrConfiguration, "cookies", "parse", "empty browser spec", nil)
	}

	var spec BrowserSpec
	rest := trimmed
	if idx := strings.Index(rest, "::"); idx >= 0 {
		spec.Container = strings.TrimSpace(rest[idx+2:])
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, ":"); idx >= 0 {
		spec.Profile = strings.TrimSpace(rest[idx+1:])
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "+"); idx >= 0 {
		spec.Keyring = strings.ToUpper(strings.TrimSpace(rest[idx+1:]))
		rest = rest[:idx]
	}
	spec.Browser = strings.ToLower(strings.TrimSpace(rest))

	if spec.Browser == "" {
		return BrowserSpec{}, services.Wrap(services.ErrConfiguration, "cookies", "parse",
			fmt.Sprintf("invalid browser spec %q", value), nil)
	}
	return spec, nil
}

// ValidateCookieFile checks that the path exists and looks like a
// Netscape-format cookie file: the conventional header comment, or at least
// one tab-delimited seven-field cookie line.
func ValidateCookieFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "cookies", "validate",
			fmt.Sprintf("cookie file not readable at %s", path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lines := 0; scanner.Scan() && lines < 200; lines++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if strings.Contains(line, "Netscape HTTP Cookie File") || strings.Contains(line, "HTTP Cookie File") {
				return nil
			}
			continue
		}
		if strings.Count(line, "\t") >= 6 {
			return nil
		}
		break
	}
	if err := scanner.Err(); err != nil {
		return services.Wrap(services.ErrConfiguration, "cookies", "validate", "read cookie file", err)
	}
	return services.Wrap(services.ErrConfiguration, "cookies", "validate",
		fmt.Sprintf("%s does not look like a Netscape-format cookie file", path), nil)
}
