package resolver

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"speechset/internal/services"
)

// Unit is a single resolved video reference.
type Unit struct {
	VideoID string
	URL     string
	Source  string
}

// Channel is a single resolved channel reference.
type Channel struct {
	Ref    string
	Slug   string
	Target string
}

// Failure records a reference that could not be resolved.
type Failure struct {
	Ref string
	Err error
}

// LoadRefs reads references from path. A .json file holds either an array of
// strings or an object carrying the given key; anything else is treated as
// line-oriented text with # comments. Duplicates are dropped, first-seen
// order preserved.
func LoadRefs(path, jsonKey string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "resolver", "load",
			fmt.Sprintf("input file not readable at %s", path), err)
	}

	var refs []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		refs, err = parseJSONRefs(data, jsonKey)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "resolver", "load",
				fmt.Sprintf("parse %s", path), err)
		}
	} else {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			refs = append(refs, line)
		}
	}

	seen := make(map[string]struct{}, len(refs))
	unique := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		unique = append(unique, ref)
	}
	if len(unique) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "resolver", "load",
			fmt.Sprintf("no references found in %s", path), nil)
	}
	return unique, nil
}

func parseJSONRefs(data []byte, key string) ([]string, error) {
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList, nil
	}
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("expected a JSON array or object: %w", err)
	}
	raw, ok := asObject[key]
	if !ok {
		return nil, fmt.Errorf("JSON object has no %q key", key)
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%q must be an array of strings: %w", key, err)
	}
	return values, nil
}

// ResolveVideos canonicalizes video references. Units are deduplicated by
// video ID in first-seen order; unparseable references land in failures.
func ResolveVideos(refs []string) ([]Unit, []Failure) {
	var units []Unit
	var failures []Failure
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		id, err := CanonicalVideoID(ref)
		if err != nil {
			failures = append(failures, Failure{Ref: ref, Err: err})
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		units = append(units, Unit{
			VideoID: id,
			URL:     "https://www.youtube.com/watch?v=" + id,
			Source:  ref,
		})
	}
	return units, failures
}

// CanonicalVideoID extracts the 11-character video ID from a bare ID or any
// of the common URL shapes (watch, shorts, embed, live, youtu.be).
func CanonicalVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if isVideoID(ref) {
		return ref, nil
	}

	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "", services.Wrap(services.ErrResolve, "resolver", "video",
			fmt.Sprintf("unrecognized video reference %q", ref), nil)
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	path := strings.Trim(parsed.Path, "/")
	var candidate string
	switch host {
	case "youtu.be":
		candidate = firstPathSegment(path)
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case path == "watch":
			candidate = parsed.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "embed/"), strings.HasPrefix(path, "live/"):
			candidate = firstPathSegment(strings.SplitN(path, "/", 2)[1])
		}
	}
	if !isVideoID(candidate) {
		return "", services.Wrap(services.ErrResolve, "resolver", "video",
			fmt.Sprintf("no video ID in %q", ref), nil)
	}
	return candidate, nil
}

func firstPathSegment(path string) string {
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx]
	}
	return path
}

func isVideoID(value string) bool {
	if len(value) != 11 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// ResolveChannels normalizes channel references, assigning each a 1-based
// ordinal slug. Duplicate references keep their first slot only.
func ResolveChannels(refs []string) ([]Channel, []Failure) {
	var channels []Channel
	var failures []Failure
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		target, err := ChannelTarget(ref)
		if err != nil {
			failures = append(failures, Failure{Ref: ref, Err: err})
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		channels = append(channels, Channel{
			Ref:    ref,
			Slug:   ChannelSlug(ref, len(channels)+1),
			Target: target,
		})
	}
	return channels, failures
}

// ChannelTarget maps a channel reference (@handle, UC… id, URL, or bare
// username) onto the URL handed to the download tool.
func ChannelTarget(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrResolve, "resolver", "channel", "empty channel reference", nil)
	}
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if _, err := url.Parse(ref); err != nil {
			return "", services.Wrap(services.ErrResolve, "resolver", "channel",
				fmt.Sprintf("invalid channel URL %q", ref), err)
		}
		return ref, nil
	case strings.HasPrefix(ref, "@"):
		return "https://www.youtube.com/" + ref, nil
	case strings.HasPrefix(ref, "UC") && len(ref) == 24:
		return "https://www.youtube.com/channel/" + ref, nil
	default:
		return "https://www.youtube.com/user/" + ref, nil
	}
}
