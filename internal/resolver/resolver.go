// Package resolver maps a distribution request to a concrete download URL.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDistribution marks a request for a type/version combination the
// resolver cannot serve. Callers treat this as client input error rather
// than a transient fault.
var ErrUnknownDistribution = errors.New("unknown distribution")

// Request identifies the artifact a caller wants.
type Request struct {
	Type      string
	Version   string
	Loader    string
	Installer string
}

// Resolution is the resolver's answer: where to download and, when the
// provider exposes one, which build the URL points at.
type Resolution struct {
	URL   string
	Build string
}

// Resolver turns a distribution request into a download location.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*Resolution, error)
}

// Func adapts a plain function to the Resolver interface.
type Func func(ctx context.Context, req Request) (*Resolution, error)

func (f Func) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	return f(ctx, req)
}

// TemplateResolver resolves URLs from per-type templates, substituting
// {version}, {loader} and {installer} placeholders.
type TemplateResolver struct {
	templates map[string]string
}

// NewTemplateResolver builds a resolver over the configured URL templates.
func NewTemplateResolver(templates map[string]string) *TemplateResolver {
	normalized := make(map[string]string, len(templates))
	for key, value := range templates {
		normalized[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return &TemplateResolver{templates: normalized}
}

// Resolve substitutes the request into the template for its type.
func (r *TemplateResolver) Resolve(_ context.Context, req Request) (*Resolution, error) {
	if strings.TrimSpace(req.Version) == "" {
		return nil, fmt.Errorf("%w: empty version for type %q", ErrUnknownDistribution, req.Type)
	}

	template, ok := r.templates[strings.ToLower(strings.TrimSpace(req.Type))]
	if !ok {
		return nil, fmt.Errorf("%w: no download source for type %q", ErrUnknownDistribution, req.Type)
	}

	url := template
	for placeholder, value := range map[string]string{
		"{version}":   req.Version,
		"{loader}":    req.Loader,
		"{installer}": req.Installer,
	} {
		if strings.Contains(url, placeholder) && value == "" {
			return nil, fmt.Errorf("%w: type %q requires %s", ErrUnknownDistribution, req.Type, strings.Trim(placeholder, "{}"))
		}
		url = strings.ReplaceAll(url, placeholder, value)
	}

	return &Resolution{URL: url}, nil
}
