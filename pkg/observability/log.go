package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements all hook interfaces by writing debug-level log lines.
// The CLI registers it when --verbose is set.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log to logger, or to log.Default() if nil.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger}
}

// Register installs h as the crawl, cache and HTTP hooks.
func (h *LogHooks) Register() {
	SetCrawlHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnScanStart(_ context.Context, repo string) {
	h.logger.Debug("scan started", "repo", repo)
}

func (h *LogHooks) OnScanComplete(_ context.Context, repo string, depCount int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("scan failed", "repo", repo, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("scan complete", "repo", repo, "deps", depCount, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnBatchComplete(_ context.Context, batch, total int, d time.Duration) {
	h.logger.Debug("batch complete", "batch", batch, "of", total, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnQuotaPause(_ context.Context, wait time.Duration) {
	h.logger.Debug("quota pause", "wait", wait)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, _, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnError(_ context.Context, method, _, path string, err error) {
	h.logger.Debug("http error", "method", method, "path", path, "err", err)
}

func (h *LogHooks) OnThrottle(_ context.Context, path string, attempt int, wait time.Duration) {
	h.logger.Debug("throttled", "path", path, "attempt", attempt, "wait", wait)
}
