// Package backend provides messaging.Backend implementations that do not
// depend on a browser: an in-memory one loaded from a rule file, and (in
// httpapi) a JSON/HTTP transport.
package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/messaging"
)

// ErrRuleFile reports a rule file that cannot be used.
var ErrRuleFile = errors.New("invalid rule file")

// DefaultNetSelectorCacheCountMax bounds how many selectors the collapser
// synthesizes per page when the rule file does not say.
const DefaultNetSelectorCacheCountMax = 10

// RuleFile is the on-disk format of a Static backend. JSON files parse too.
//
//	default:
//	  ready: true
//	  declarativeFilters: [".ad"]
//	sites:
//	  news.test:
//	    proceduralFilters: ['{"selector":"div","tasks":[["has-text","AD"]]}']
//	generic:
//	  "#banner": { simple: ["#banner"] }
//	  ".promo": { complex: ["div.promo > a"] }
//	blocked:
//	  - image https://ads.test/banner.png
//	  - https://ads.test/frame.html
type RuleFile struct {
	Default                  messaging.ContentScriptParameters            `yaml:"default"`
	Sites                    map[string]messaging.ContentScriptParameters `yaml:"sites"`
	Generic                  map[string]messaging.GenericSelectorsResponse `yaml:"generic"`
	Blocked                  []string                                     `yaml:"blocked"`
	NetSelectorCacheCountMax int                                          `yaml:"netSelectorCacheCountMax"`
}

// Static answers every request from a RuleFile. It is safe for concurrent
// use.
type Static struct {
	rules   RuleFile
	logger  zerolog.Logger
	blocked map[string]bool
	anyType map[string]bool

	mu       sync.Mutex
	injected []messaging.InjectedReport
}

// LoadStatic reads a rule file from path.
func LoadStatic(ctx context.Context, path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	s, err := ParseStatic(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseStatic builds a Static backend from rule file contents.
func ParseStatic(ctx context.Context, data []byte) (*Static, error) {
	var rules RuleFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuleFile, err)
	}
	for token := range rules.Generic {
		if !strings.HasPrefix(token, "#") && !strings.HasPrefix(token, ".") {
			return nil, fmt.Errorf("%w: generic key %q must start with # or .", ErrRuleFile, token)
		}
	}
	return NewStatic(ctx, rules), nil
}

// NewStatic wraps an already decoded rule file.
func NewStatic(ctx context.Context, rules RuleFile) *Static {
	if rules.NetSelectorCacheCountMax <= 0 {
		rules.NetSelectorCacheCountMax = DefaultNetSelectorCacheCountMax
	}
	s := &Static{
		rules:   rules,
		logger:  logging.FromContext(ctx).With().Str("component", "static-backend").Logger(),
		blocked: make(map[string]bool),
		anyType: make(map[string]bool),
	}
	for _, entry := range rules.Blocked {
		entry = strings.TrimSpace(entry)
		if typ, u, ok := strings.Cut(entry, " "); ok {
			s.blocked[typ+" "+strings.TrimSpace(u)] = true
		} else if entry != "" {
			s.anyType[entry] = true
		}
	}
	return s
}

// RetrieveContentScriptParameters merges the default section with every site
// section matching the page host or one of its parent domains.
func (s *Static) RetrieveContentScriptParameters(_ context.Context, req messaging.ContentScriptParametersRequest) (messaging.ContentScriptParameters, error) {
	params := cloneParams(s.rules.Default)
	for _, host := range hostChain(req.PageURL) {
		if site, ok := s.rules.Sites[host]; ok {
			mergeParams(&params, site)
		}
	}
	s.logger.Debug().
		Str("url", req.PageURL).
		Bool("ready", params.Ready).
		Int("declarative", len(params.DeclarativeFilters)).
		Msg("content script parameters")
	return params, nil
}

// RetrieveGenericSelectors looks every id and class up as "#id" and ".class".
func (s *Static) RetrieveGenericSelectors(_ context.Context, req messaging.GenericSelectorsRequest) (messaging.GenericSelectorsResponse, error) {
	var resp messaging.GenericSelectorsResponse
	lookup := func(token string) {
		entry, ok := s.rules.Generic[token]
		if !ok {
			return
		}
		resp.Simple = appendUnique(resp.Simple, entry.Simple...)
		resp.Complex = appendUnique(resp.Complex, entry.Complex...)
		resp.Hide = appendUnique(resp.Hide, entry.Hide...)
	}
	for _, id := range req.IDs {
		lookup("#" + id)
	}
	for _, class := range req.Classes {
		lookup("." + class)
	}
	return resp, nil
}

// GetCollapsibleBlockedRequests returns the requested resources that the rule
// file blocks. The hash covers the returned set, so a caller holding the same
// set gets an empty list back.
func (s *Static) GetCollapsibleBlockedRequests(_ context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
	var keys []string
	for _, res := range req.Resources {
		if s.blocked[res.Key()] || s.anyType[res.URL] {
			keys = appendUnique(keys, res.Key())
		}
	}
	slices.Sort(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	resp := &messaging.CollapsibleResponse{
		ID:                       req.ID,
		Hash:                     hex.EncodeToString(sum[:8]),
		NetSelectorCacheCountMax: s.rules.NetSelectorCacheCountMax,
	}
	if resp.Hash != req.Hash {
		resp.BlockedResources = keys
	}
	return resp, nil
}

// CosmeticFiltersInjected records the report.
func (s *Static) CosmeticFiltersInjected(_ context.Context, report messaging.InjectedReport) error {
	s.mu.Lock()
	s.injected = append(s.injected, report)
	s.mu.Unlock()
	s.logger.Debug().
		Str("type", report.Type).
		Str("hostname", report.Hostname).
		Strs("selectors", report.Selectors).
		Msg("cosmetic filters injected")
	return nil
}

// Injected returns the reports received so far.
func (s *Static) Injected() []messaging.InjectedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.injected)
}

// hostChain returns the page host and its parent domains, least specific
// first so that later merges come from more specific sections.
func hostChain(pageURL string) []string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	var chain []string
	for {
		chain = append(chain, host)
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	slices.Reverse(chain)
	return chain
}

func cloneParams(p messaging.ContentScriptParameters) messaging.ContentScriptParameters {
	p.DeclarativeFilters = slices.Clone(p.DeclarativeFilters)
	p.ProceduralFilters = slices.Clone(p.ProceduralFilters)
	p.HighGenericHideSimple = slices.Clone(p.HighGenericHideSimple)
	p.HighGenericHideComplex = slices.Clone(p.HighGenericHideComplex)
	p.NetHide = slices.Clone(p.NetHide)
	return p
}

func mergeParams(dst *messaging.ContentScriptParameters, site messaging.ContentScriptParameters) {
	dst.Ready = dst.Ready || site.Ready
	dst.DeclarativeFilters = appendUnique(dst.DeclarativeFilters, site.DeclarativeFilters...)
	dst.ProceduralFilters = appendUnique(dst.ProceduralFilters, site.ProceduralFilters...)
	dst.HighGenericHideSimple = appendUnique(dst.HighGenericHideSimple, site.HighGenericHideSimple...)
	dst.HighGenericHideComplex = appendUnique(dst.HighGenericHideComplex, site.HighGenericHideComplex...)
	dst.NetHide = appendUnique(dst.NetHide, site.NetHide...)
	if site.Scripts != "" {
		if dst.Scripts != "" {
			dst.Scripts += "\n"
		}
		dst.Scripts += site.Scripts
	}
	dst.NoCosmeticFiltering = dst.NoCosmeticFiltering || site.NoCosmeticFiltering
	dst.NoGenericCosmeticFiltering = dst.NoGenericCosmeticFiltering || site.NoGenericCosmeticFiltering
	dst.NoDOMSurveying = dst.NoDOMSurveying || site.NoDOMSurveying
	dst.CollapseBlocked = dst.CollapseBlocked || site.CollapseBlocked
	dst.LoggerEnabled = dst.LoggerEnabled || site.LoggerEnabled
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
