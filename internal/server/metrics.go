// metrics.go - In-process counters and the Prometheus text exposition.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Metrics holds application counters. All methods are safe for concurrent
// use.
type Metrics struct {
	mu sync.RWMutex

	requestsTotal    int64
	requestErrors4xx int64
	requestErrors5xx int64

	uploadsTotal       int64
	linksIssuedTotal   int64
	downloadsTotal     int64
	downloadBytesTotal int64
}

var metrics = &Metrics{}

func (m *Metrics) RecordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

func (m *Metrics) RecordUpload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
}

func (m *Metrics) RecordLinkIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linksIssuedTotal++
}

func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	RequestsTotal      int64
	RequestErrors4xx   int64
	RequestErrors5xx   int64
	UploadsTotal       int64
	LinksIssuedTotal   int64
	DownloadsTotal     int64
	DownloadBytesTotal int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		RequestsTotal:      m.requestsTotal,
		RequestErrors4xx:   m.requestErrors4xx,
		RequestErrors5xx:   m.requestErrors5xx,
		UploadsTotal:       m.uploadsTotal,
		LinksIssuedTotal:   m.linksIssuedTotal,
		DownloadsTotal:     m.downloadsTotal,
		DownloadBytesTotal: m.downloadBytesTotal,
	}
}

// handleMetrics renders the counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := metrics.Snapshot()

	var b strings.Builder
	writeCounter := func(name, help string, v int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	}

	fmt.Fprintf(&b, "# HELP docshare_info Application version info\n# TYPE docshare_info gauge\ndocshare_info{version=%q} 1\n", s.cfg.Build.Version)
	writeCounter("docshare_requests_total", "Total number of HTTP requests", snap.RequestsTotal)
	writeCounter("docshare_request_errors_4xx_total", "Total number of 4xx responses", snap.RequestErrors4xx)
	writeCounter("docshare_request_errors_5xx_total", "Total number of 5xx responses", snap.RequestErrors5xx)
	writeCounter("docshare_uploads_total", "Total number of file uploads", snap.UploadsTotal)
	writeCounter("docshare_download_links_total", "Total number of download links issued", snap.LinksIssuedTotal)
	writeCounter("docshare_downloads_total", "Total number of redeemed downloads", snap.DownloadsTotal)
	writeCounter("docshare_download_bytes_total", "Total bytes streamed to downloaders", snap.DownloadBytesTotal)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
