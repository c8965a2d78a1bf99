package source

import (
	"time"

	"github.com/hyperengineering/hostmerge/internal/config"
	"github.com/hyperengineering/hostmerge/internal/types"
)

// NewQualys builds the Qualys skip/limit client from config.
func NewQualys(cfg config.SourceConfig, backoff time.Duration) *PagedClient {
	return NewPagedClient(types.SourceQualys,
		cfg.BaseURL, cfg.Endpoint, cfg.APIToken, cfg.MaxLimit, cfg.MaxSkip, backoff)
}

// NewCrowdStrike builds the CrowdStrike skip/limit client from config.
func NewCrowdStrike(cfg config.SourceConfig, backoff time.Duration) *PagedClient {
	return NewPagedClient(types.SourceCrowdStrike,
		cfg.BaseURL, cfg.Endpoint, cfg.APIToken, cfg.MaxLimit, cfg.MaxSkip, backoff)
}

// NewTenable builds the Tenable cursor client from config.
func NewTenable(cfg config.SourceConfig) *CursorClient {
	return NewCursorClient(types.SourceTenable, cfg.BaseURL, cfg.Endpoint, cfg.APIToken)
}
