package carriers

import (
	"log/slog"

	"schedulep2p/internal/bgtask"
	"schedulep2p/internal/settings"
	"schedulep2p/pkg/cache"
	"schedulep2p/pkg/httpclient"
)

// Deps bundles the collaborators every adapter's Fetch needs: the shared
// HTTP client, a background-task runner, the settings registry, the
// response cache, and a logger (spec.md §4.E's fetch signature).
type Deps struct {
	HTTP     *httpclient.Client
	BG       *bgtask.Runner
	Settings *settings.Registry
	Cache    cache.Cache
	Log      *slog.Logger
}
