package source

import (
	"context"
	"strings"

	"github.com/v6582374-netizen/Cerebro/internal/domain/entity"
)

// Prober checks that a feed URL is alive and parseable.
type Prober interface {
	Probe(ctx context.Context, url string) ProbeResult
}

// ResolveResult is the outcome of the legacy single-URL resolution.
type ResolveResult struct {
	OK        bool
	SourceURL string
	Error     string
}

// Resolver is the v1 acquisition path: find one working feed URL for a
// subscription without failover bookkeeping. The sync engine uses it when no
// gateway is configured.
type Resolver struct {
	templates []string
	prober    Prober
	directory Provider
}

// NewResolver creates a Resolver. directory may be nil.
func NewResolver(templates []string, prober Prober, directory Provider) *Resolver {
	return &Resolver{templates: templates, prober: prober, directory: directory}
}

// Resolve returns the existing source_url when set, else the first template
// substitution that probes alive, else the best directory-index match.
func (r *Resolver) Resolve(ctx context.Context, sub *entity.Subscription) ResolveResult {
	if sub.SourceURL != "" {
		return ResolveResult{OK: true, SourceURL: sub.SourceURL}
	}

	lastError := ""
	for _, template := range r.templates {
		if !strings.Contains(template, templatePlaceholderToken) {
			continue
		}
		candidate := strings.ReplaceAll(template, templatePlaceholderToken, sub.WechatID)
		probe := r.prober.Probe(ctx, candidate)
		if probe.OK {
			return ResolveResult{OK: true, SourceURL: candidate}
		}
		lastError = probe.ErrorMessage
	}

	if r.directory != nil {
		candidates, err := r.directory.Discover(ctx, sub)
		if err == nil && len(candidates) > 0 {
			probe := r.prober.Probe(ctx, candidates[0].URL)
			if probe.OK {
				return ResolveResult{OK: true, SourceURL: candidates[0].URL}
			}
			if probe.ErrorMessage != "" {
				lastError = probe.ErrorMessage
			}
		}
	}

	if lastError == "" {
		lastError = "no usable public source matched"
	}
	return ResolveResult{OK: false, Error: lastError}
}

// templatePlaceholderToken mirrors the substitution marker used by the
// template provider.
const templatePlaceholderToken = "{wechat_id}"
