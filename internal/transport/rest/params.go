package rest

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"
)

// PathParam escapes a single path segment (collection name, document id, ...).
func PathParam(name, value string) (string, error) {
	s, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("path param %s: %w", name, err)
	}
	return s, nil
}

// Path joins a format string with escaped path segments.
// Segments are given as name/value pairs.
func Path(format string, segments ...string) (string, error) {
	if len(segments)%2 != 0 {
		return "", fmt.Errorf("path %q: odd number of segment arguments", format)
	}
	args := make([]any, 0, len(segments)/2)
	for i := 0; i < len(segments); i += 2 {
		s, err := PathParam(segments[i], segments[i+1])
		if err != nil {
			return "", err
		}
		args = append(args, s)
	}
	return fmt.Sprintf(format, args...), nil
}

// AddQuery encodes value in form style and merges it into q.
func AddQuery(q url.Values, name string, value any) error {
	frag, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
	if err != nil {
		return fmt.Errorf("query param %s: %w", name, err)
	}
	parsed, err := url.ParseQuery(frag)
	if err != nil {
		return fmt.Errorf("query param %s: %w", name, err)
	}
	for k, vs := range parsed {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return nil
}
