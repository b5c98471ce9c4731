package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/tdigest"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// HostMetrics contains scraped metrics from exporters running on the
// training host. Miners are usually GPU-bound, so the GPU figures from the
// DCGM exporter sit next to the node_exporter basics.
type HostMetrics struct {
	// node_exporter
	CPUPercent float64
	MemUsed    int64
	MemTotal   int64
	MemPercent float64
	NetInRate  float64 // bytes/sec (instantaneous)
	NetOutRate float64 // bytes/sec (instantaneous)

	// Rolling window percentiles for network rates
	NetInP50         float64
	NetInMax         float64
	NetOutP50        float64
	NetOutMax        float64
	NetWindowSeconds int

	// DCGM exporter (GPU)
	GPUUtilPercent float64 // averaged across GPUs
	GPUMemUsed     int64   // bytes, summed across GPUs
	GPUMemTotal    int64   // bytes, summed across GPUs
	GPUUtilP50     float64 // rolling window median
	GPUUtilMax     float64 // rolling window max

	// Metadata
	LastUpdate time.Time
	Healthy    bool
	Error      string
}

// HostScraper scrapes metrics from node_exporter and the DCGM GPU exporter
// on the training host. Uses atomic.Value for lock-free metric reads.
type HostScraper struct {
	nodeExporterURL string
	gpuExporterURL  string
	interval        time.Duration
	logger          *slog.Logger
	httpClient      *http.Client

	// Atomic storage (lock-free reads)
	metrics atomic.Value // *HostMetrics

	// Rate calculation state
	lastNetIn   atomic.Uint64 // float64 as bits (math.Float64bits)
	lastNetOut  atomic.Uint64 // float64 as bits
	lastNetTime atomic.Value  // time.Time

	// Rolling windows (T-Digest)
	netInDigest  *tdigest.TDigest
	netInSamples []hostSample
	netInMu      sync.Mutex

	netOutDigest  *tdigest.TDigest
	netOutSamples []hostSample
	netOutMu      sync.Mutex

	gpuDigest  *tdigest.TDigest
	gpuSamples []hostSample
	gpuMu      sync.Mutex

	windowSize time.Duration
	lastClean  time.Time
}

// hostSample is a single rate or utilization sample with its timestamp.
type hostSample struct {
	value float64
	time  time.Time
}

// NewHostScraper creates a new host metrics scraper.
// Returns nil if both URLs are empty (feature disabled).
func NewHostScraper(nodeExporterURL, gpuExporterURL string, interval, windowSize time.Duration, logger *slog.Logger) *HostScraper {
	if nodeExporterURL == "" && gpuExporterURL == "" {
		return nil // Feature disabled
	}

	// Clamp window size (validation also done in config.Validate())
	if windowSize < 10*time.Second {
		windowSize = 10 * time.Second
	}
	if windowSize > 300*time.Second {
		windowSize = 300 * time.Second
	}

	scraper := &HostScraper{
		nodeExporterURL: nodeExporterURL,
		gpuExporterURL:  gpuExporterURL,
		interval:        interval,
		logger:          logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		netInDigest:  tdigest.NewWithCompression(100),
		netOutDigest: tdigest.NewWithCompression(100),
		gpuDigest:    tdigest.NewWithCompression(100),
		windowSize:   windowSize,
		lastClean:    time.Now(),
	}

	scraper.metrics.Store(&HostMetrics{
		Healthy: false,
		Error:   "Not yet scraped",
	})

	return scraper
}

// Run starts the scraper loop. Blocks until the context is cancelled.
func (s *HostScraper) Run(ctx context.Context) {
	if s == nil {
		return // Feature disabled
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial scrape
	s.scrapeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scrapeAll()
		}
	}
}

// GetMetrics returns the current metrics (thread-safe, lock-free).
func (s *HostScraper) GetMetrics() *HostMetrics {
	if s == nil {
		return nil // Feature disabled
	}

	ptr := s.metrics.Load()
	if ptr == nil {
		return nil
	}

	m := ptr.(*HostMetrics)
	now := time.Now()

	s.netInMu.Lock()
	s.cleanupWindow(&s.netInSamples, s.netInDigest, now)
	netInP50, netInMax := windowStats(s.netInSamples, s.netInDigest)
	s.netInMu.Unlock()

	s.netOutMu.Lock()
	s.cleanupWindow(&s.netOutSamples, s.netOutDigest, now)
	netOutP50, netOutMax := windowStats(s.netOutSamples, s.netOutDigest)
	s.netOutMu.Unlock()

	s.gpuMu.Lock()
	s.cleanupWindow(&s.gpuSamples, s.gpuDigest, now)
	gpuP50, gpuMax := windowStats(s.gpuSamples, s.gpuDigest)
	s.gpuMu.Unlock()

	return &HostMetrics{
		CPUPercent:       m.CPUPercent,
		MemUsed:          m.MemUsed,
		MemTotal:         m.MemTotal,
		MemPercent:       m.MemPercent,
		NetInRate:        m.NetInRate,
		NetOutRate:       m.NetOutRate,
		NetInP50:         netInP50,
		NetInMax:         netInMax,
		NetOutP50:        netOutP50,
		NetOutMax:        netOutMax,
		NetWindowSeconds: int(s.windowSize.Seconds()),
		GPUUtilPercent:   m.GPUUtilPercent,
		GPUMemUsed:       m.GPUMemUsed,
		GPUMemTotal:      m.GPUMemTotal,
		GPUUtilP50:       gpuP50,
		GPUUtilMax:       gpuMax,
		LastUpdate:       m.LastUpdate,
		Healthy:          m.Healthy,
		Error:            m.Error,
	}
}

// windowStats returns the median (from the digest) and max of a window.
func windowStats(samples []hostSample, digest *tdigest.TDigest) (p50, max float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	p50 = digest.Quantile(0.50)
	max = samples[0].value
	for _, sample := range samples {
		if sample.value > max {
			max = sample.value
		}
	}
	return p50, max
}

// scrapeAll scrapes both exporters and stores a fresh metrics snapshot.
func (s *HostScraper) scrapeAll() {
	now := time.Now()
	healthy := true
	var errs []string

	// Preserve last values if a scrape fails
	var last *HostMetrics
	if current := s.metrics.Load(); current != nil {
		last = current.(*HostMetrics)
	} else {
		last = &HostMetrics{}
	}

	newMetrics := &HostMetrics{
		CPUPercent:     last.CPUPercent,
		MemUsed:        last.MemUsed,
		MemTotal:       last.MemTotal,
		MemPercent:     last.MemPercent,
		NetInRate:      last.NetInRate,
		NetOutRate:     last.NetOutRate,
		GPUUtilPercent: last.GPUUtilPercent,
		GPUMemUsed:     last.GPUMemUsed,
		GPUMemTotal:    last.GPUMemTotal,
		LastUpdate:     now,
	}

	if s.nodeExporterURL != "" {
		if err := s.scrapeNodeExporter(newMetrics); err != nil {
			healthy = false
			errs = append(errs, fmt.Sprintf("node_exporter: %v", err))
			if s.logger != nil {
				s.logger.Debug("node_exporter_scrape_error", "error", err)
			}
		}
	}

	if s.gpuExporterURL != "" {
		if err := s.scrapeGPUExporter(newMetrics); err != nil {
			healthy = false
			errs = append(errs, fmt.Sprintf("gpu_exporter: %v", err))
			if s.logger != nil {
				s.logger.Debug("gpu_exporter_scrape_error", "error", err)
			}
		}
	}

	newMetrics.Healthy = healthy
	if len(errs) > 0 {
		newMetrics.Error = strings.Join(errs, "; ")
	} else {
		newMetrics.Error = ""
	}

	s.metrics.Store(newMetrics)
}

// fetchFamilies GETs an exporter URL and parses the Prometheus text format.
func (s *HostScraper) fetchFamilies(exporterURL string) (map[string]*dto.MetricFamily, error) {
	resp, err := s.httpClient.Get(exporterURL)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	decoder := expfmt.NewDecoder(resp.Body, expfmt.FmtText)
	families := make(map[string]*dto.MetricFamily)

	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		families[mf.GetName()] = &mf
	}

	return families, nil
}

// scrapeNodeExporter scrapes CPU, memory, and network from node_exporter.
func (s *HostScraper) scrapeNodeExporter(metrics *HostMetrics) error {
	families, err := s.fetchFamilies(s.nodeExporterURL)
	if err != nil {
		return err
	}

	metrics.CPUPercent = extractCPUUsage(families)
	metrics.MemUsed, metrics.MemTotal, metrics.MemPercent = extractMemory(families)
	metrics.NetInRate, metrics.NetOutRate = s.extractNetwork(families)

	return nil
}

// scrapeGPUExporter scrapes GPU utilization and memory from the DCGM exporter.
func (s *HostScraper) scrapeGPUExporter(metrics *HostMetrics) error {
	families, err := s.fetchFamilies(s.gpuExporterURL)
	if err != nil {
		return err
	}

	metrics.GPUUtilPercent = extractGPUUtil(families)
	metrics.GPUMemUsed, metrics.GPUMemTotal = extractGPUMemory(families)

	// Feed the rolling window
	now := time.Now()
	s.gpuMu.Lock()
	s.gpuDigest.Add(metrics.GPUUtilPercent, 1)
	s.gpuSamples = append(s.gpuSamples, hostSample{value: metrics.GPUUtilPercent, time: now})
	if len(s.gpuSamples) > 20 || time.Since(s.lastClean) > 10*time.Second {
		s.cleanupWindow(&s.gpuSamples, s.gpuDigest, now)
	}
	s.gpuMu.Unlock()

	return nil
}

// extractCPUUsage extracts CPU usage percentage from node_cpu_seconds_total.
// Calculates: (1 - idle/total) * 100
func extractCPUUsage(families map[string]*dto.MetricFamily) float64 {
	mf, ok := families["node_cpu_seconds_total"]
	if !ok {
		return 0
	}

	var totalCPU, idleCPU float64
	for _, metric := range mf.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "mode" {
				mode := label.GetValue()
				value := metric.GetCounter().GetValue()
				if mode == "idle" {
					idleCPU += value
				}
				totalCPU += value
			}
		}
	}

	if totalCPU == 0 {
		return 0
	}
	return (1 - idleCPU/totalCPU) * 100
}

// extractMemory extracts memory metrics from node_memory_*.
func extractMemory(families map[string]*dto.MetricFamily) (used, total int64, percent float64) {
	memTotalMF, ok := families["node_memory_MemTotal_bytes"]
	if !ok {
		return 0, 0, 0
	}

	memAvailableMF, ok := families["node_memory_MemAvailable_bytes"]
	if !ok {
		// Fallback to MemFree if MemAvailable not available
		memAvailableMF, ok = families["node_memory_MemFree_bytes"]
		if !ok {
			return 0, 0, 0
		}
	}

	var totalBytes, availableBytes float64
	if len(memTotalMF.GetMetric()) > 0 {
		totalBytes = memTotalMF.GetMetric()[0].GetGauge().GetValue()
	}
	if len(memAvailableMF.GetMetric()) > 0 {
		availableBytes = memAvailableMF.GetMetric()[0].GetGauge().GetValue()
	}

	total = int64(totalBytes)
	used = int64(totalBytes - availableBytes)
	if total > 0 {
		percent = float64(used) / float64(total) * 100
	}

	return used, total, percent
}

// extractGPUUtil averages DCGM_FI_DEV_GPU_UTIL across GPUs.
func extractGPUUtil(families map[string]*dto.MetricFamily) float64 {
	mf, ok := families["DCGM_FI_DEV_GPU_UTIL"]
	if !ok {
		return 0
	}

	var sum float64
	var count int
	for _, metric := range mf.GetMetric() {
		sum += metric.GetGauge().GetValue()
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// extractGPUMemory sums framebuffer usage across GPUs.
// DCGM reports FB values in MiB.
func extractGPUMemory(families map[string]*dto.MetricFamily) (used, total int64) {
	const mib = 1024 * 1024

	if mf, ok := families["DCGM_FI_DEV_FB_USED"]; ok {
		for _, metric := range mf.GetMetric() {
			used += int64(metric.GetGauge().GetValue()) * mib
		}
	}
	if mf, ok := families["DCGM_FI_DEV_FB_TOTAL"]; ok {
		for _, metric := range mf.GetMetric() {
			total += int64(metric.GetGauge().GetValue()) * mib
		}
	}
	return used, total
}

// extractNetwork extracts network counters and calculates rates.
func (s *HostScraper) extractNetwork(families map[string]*dto.MetricFamily) (inRate, outRate float64) {
	now := time.Now()

	var netInTotal, netOutTotal float64
	if mf, ok := families["node_network_receive_bytes_total"]; ok {
		netInTotal = sumNonLoopback(mf)
	}
	if mf, ok := families["node_network_transmit_bytes_total"]; ok {
		netOutTotal = sumNonLoopback(mf)
	}

	lastNetIn := loadFloat64(&s.lastNetIn)
	lastNetOut := loadFloat64(&s.lastNetOut)
	lastNetTimeVal := s.lastNetTime.Load()

	if lastNetTimeVal != nil {
		lastNetTime := lastNetTimeVal.(time.Time)
		if !lastNetTime.IsZero() {
			deltaTime := now.Sub(lastNetTime).Seconds()
			if deltaTime > 0 {
				inRate = (netInTotal - lastNetIn) / deltaTime
				outRate = (netOutTotal - lastNetOut) / deltaTime
			}
		}
	}

	storeFloat64(&s.lastNetIn, netInTotal)
	storeFloat64(&s.lastNetOut, netOutTotal)
	s.lastNetTime.Store(now)

	// Feed rolling windows
	s.netInMu.Lock()
	s.netInDigest.Add(inRate, 1)
	s.netInSamples = append(s.netInSamples, hostSample{value: inRate, time: now})
	if len(s.netInSamples) > 20 || time.Since(s.lastClean) > 10*time.Second {
		s.cleanupWindow(&s.netInSamples, s.netInDigest, now)
	}
	s.netInMu.Unlock()

	s.netOutMu.Lock()
	s.netOutDigest.Add(outRate, 1)
	s.netOutSamples = append(s.netOutSamples, hostSample{value: outRate, time: now})
	if len(s.netOutSamples) > 20 || time.Since(s.lastClean) > 10*time.Second {
		s.cleanupWindow(&s.netOutSamples, s.netOutDigest, now)
	}
	s.netOutMu.Unlock()

	s.lastClean = now

	return inRate, outRate
}

// sumNonLoopback sums counter values across metrics, skipping device="lo".
func sumNonLoopback(mf *dto.MetricFamily) float64 {
	var sum float64
	for _, metric := range mf.GetMetric() {
		isLoopback := false
		for _, label := range metric.GetLabel() {
			if label.GetName() == "device" && label.GetValue() == "lo" {
				isLoopback = true
				break
			}
		}
		if !isLoopback {
			sum += metric.GetCounter().GetValue()
		}
	}
	return sum
}

// Helper functions for atomic float64 operations

func storeFloat64(addr *atomic.Uint64, val float64) {
	addr.Store(math.Float64bits(val))
}

func loadFloat64(addr *atomic.Uint64) float64 {
	return math.Float64frombits(addr.Load())
}

// cleanupWindow removes samples older than the window and rebuilds the
// T-Digest. Only rebuilds when samples actually expired.
func (s *HostScraper) cleanupWindow(samples *[]hostSample, digest *tdigest.TDigest, now time.Time) {
	cutoff := now.Add(-s.windowSize)

	valid := make([]hostSample, 0, len(*samples))
	expiredCount := 0
	for _, sample := range *samples {
		if sample.time.After(cutoff) {
			valid = append(valid, sample)
		} else {
			expiredCount++
		}
	}

	if expiredCount > 0 {
		*digest = *tdigest.NewWithCompression(100)
		for _, sample := range valid {
			digest.Add(sample.value, 1)
		}
	}

	*samples = valid
}

// HostnameFromURL extracts the hostname from an exporter URL for display.
func HostnameFromURL(urlStr string) string {
	if urlStr == "" {
		return "unknown"
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "unknown"
	}
	return u.Hostname()
}
