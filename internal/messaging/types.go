// Package messaging defines the requests the cosmetic engine exchanges with
// its privileged backend and a loop-bound client for issuing them.
package messaging

import "context"

// GenericSelectorsRequest asks for the selectors keyed by newly seen id and
// class tokens.
type GenericSelectorsRequest struct {
	FrameURL string   `json:"frameURL"`
	IDs      []string `json:"ids"`
	Classes  []string `json:"classes"`
	// Cost is the cumulative time spent surveying, in milliseconds.
	Cost float64 `json:"cost"`
}

// GenericSelectorsResponse carries selectors to insert as specific rules.
// Hide is the legacy unclassified form.
type GenericSelectorsResponse struct {
	Simple  []string `json:"simple,omitempty" yaml:"simple,omitempty"`
	Complex []string `json:"complex,omitempty" yaml:"complex,omitempty"`
	Hide    []string `json:"hide,omitempty" yaml:"hide,omitempty"`
}

// Len returns the total number of selectors.
func (r *GenericSelectorsResponse) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Simple) + len(r.Complex) + len(r.Hide)
}

// ContentScriptParametersRequest opens a page session.
type ContentScriptParametersRequest struct {
	PageURL     string `json:"pageURL"`
	LocationURL string `json:"locationURL"`
}

// ContentScriptParameters configures the engine for one page.
type ContentScriptParameters struct {
	Ready                      bool     `json:"ready" yaml:"ready"`
	DeclarativeFilters         []string `json:"declarativeFilters,omitempty" yaml:"declarativeFilters,omitempty"`
	ProceduralFilters          []string `json:"proceduralFilters,omitempty" yaml:"proceduralFilters,omitempty"`
	HighGenericHideSimple      []string `json:"highGenericHideSimple,omitempty" yaml:"highGenericHideSimple,omitempty"`
	HighGenericHideComplex     []string `json:"highGenericHideComplex,omitempty" yaml:"highGenericHideComplex,omitempty"`
	NetHide                    []string `json:"netHide,omitempty" yaml:"netHide,omitempty"`
	Scripts                    string   `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	NoCosmeticFiltering        bool     `json:"noCosmeticFiltering,omitempty" yaml:"noCosmeticFiltering,omitempty"`
	NoGenericCosmeticFiltering bool     `json:"noGenericCosmeticFiltering,omitempty" yaml:"noGenericCosmeticFiltering,omitempty"`
	NoDOMSurveying             bool     `json:"noDOMSurveying,omitempty" yaml:"noDOMSurveying,omitempty"`
	CollapseBlocked            bool     `json:"collapseBlocked,omitempty" yaml:"collapseBlocked,omitempty"`
	LoggerEnabled              bool     `json:"loggerEnabled,omitempty" yaml:"loggerEnabled,omitempty"`
}

// Resource is an embedded resource candidate for collapsing.
type Resource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Key is the blocked-set lookup key: "<type> <url>".
func (r Resource) Key() string { return r.Type + " " + r.URL }

// CollapsibleRequest asks which of the listed resources were blocked.
type CollapsibleRequest struct {
	ID        uint64     `json:"id"`
	FrameURL  string     `json:"frameURL"`
	Resources []Resource `json:"resources"`
	Hash      string     `json:"hash,omitempty"`
}

// CollapsibleResponse answers a CollapsibleRequest. BlockedResources is only
// meaningful when Hash differs from the one sent.
type CollapsibleResponse struct {
	ID                       uint64   `json:"id"`
	BlockedResources         []string `json:"blockedResources"`
	Hash                     string   `json:"hash"`
	NetSelectorCacheCountMax int      `json:"netSelectorCacheCountMax"`
}

// InjectedReport tells the backend which selectors were synthesized.
type InjectedReport struct {
	Type      string   `json:"type"`
	Hostname  string   `json:"hostname"`
	Selectors []string `json:"selectors"`
}

// Backend is the privileged side of the engine. Calls block; the Client moves
// them off the loop.
type Backend interface {
	RetrieveGenericSelectors(ctx context.Context, req GenericSelectorsRequest) (GenericSelectorsResponse, error)
	RetrieveContentScriptParameters(ctx context.Context, req ContentScriptParametersRequest) (ContentScriptParameters, error)
	// GetCollapsibleBlockedRequests returns nil when the backend has nothing
	// to say about the request.
	GetCollapsibleBlockedRequests(ctx context.Context, req CollapsibleRequest) (*CollapsibleResponse, error)
	CosmeticFiltersInjected(ctx context.Context, report InjectedReport) error
}
