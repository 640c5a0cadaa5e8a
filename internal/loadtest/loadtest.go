// Package loadtest generates CRUD traffic against a running events API.
// It is used to check dashboards and rate limits under a known load.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Profile names a predefined load scenario.
type Profile string

const (
	ProfileLight  Profile = "light"  // 5 req/s, 1 minute
	ProfileMedium Profile = "medium" // 20 req/s, 2 minutes
	ProfileHeavy  Profile = "heavy"  // 50 req/s, 5 minutes
	ProfileBurst  Profile = "burst"  // 100 req/s, 30 seconds, no ramp
)

// ProfileConfig defines the parameters for a load test.
type ProfileConfig struct {
	RequestsPerSecond int
	Duration          time.Duration
	RampUpTime        time.Duration
	RampDownTime      time.Duration
	ReadWriteRatio    float64 // 0.8 = 80% reads
}

// Profiles contains the predefined scenarios.
var Profiles = map[Profile]ProfileConfig{
	ProfileLight: {
		RequestsPerSecond: 5,
		Duration:          1 * time.Minute,
		RampUpTime:        10 * time.Second,
		RampDownTime:      10 * time.Second,
		ReadWriteRatio:    0.8,
	},
	ProfileMedium: {
		RequestsPerSecond: 20,
		Duration:          2 * time.Minute,
		RampUpTime:        20 * time.Second,
		RampDownTime:      20 * time.Second,
		ReadWriteRatio:    0.8,
	},
	ProfileHeavy: {
		RequestsPerSecond: 50,
		Duration:          5 * time.Minute,
		RampUpTime:        30 * time.Second,
		RampDownTime:      30 * time.Second,
		ReadWriteRatio:    0.7,
	},
	ProfileBurst: {
		RequestsPerSecond: 100,
		Duration:          30 * time.Second,
		ReadWriteRatio:    0.5,
	},
}

// Tester drives requests against baseURL.
type Tester struct {
	baseURL string
	client  *http.Client
	out     io.Writer

	mu  sync.Mutex
	rng *rand.Rand
	ids []string // events created during the run

	stats *Statistics
}

type Option func(*Tester)

func WithHTTPClient(client *http.Client) Option {
	return func(t *Tester) {
		if client != nil {
			t.client = client
		}
	}
}

// WithOutput sets where progress lines are written.
func WithOutput(w io.Writer) Option {
	return func(t *Tester) {
		if w != nil {
			t.out = w
		}
	}
}

func WithSeed(seed int64) Option {
	return func(t *Tester) {
		t.rng = rand.New(rand.NewSource(seed))
	}
}

func New(baseURL string, opts ...Option) *Tester {
	t := &Tester{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		out:     io.Discard,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run executes a predefined profile.
func (t *Tester) Run(ctx context.Context, profile Profile) (*Statistics, error) {
	cfg, ok := Profiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}
	return t.RunCustom(ctx, cfg)
}

// RunCustom executes cfg until its total duration elapses or ctx is done.
func (t *Tester) RunCustom(ctx context.Context, cfg ProfileConfig) (*Statistics, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, errors.New("requests per second must be positive")
	}
	if cfg.ReadWriteRatio < 0 || cfg.ReadWriteRatio > 1 {
		return nil, fmt.Errorf("read/write ratio %.2f out of range [0,1]", cfg.ReadWriteRatio)
	}

	t.stats = newStatistics()
	t.mu.Lock()
	t.ids = nil
	t.mu.Unlock()

	fmt.Fprintf(t.out, "Starting load test...\n")
	fmt.Fprintf(t.out, "  Target: %s\n", t.baseURL)
	fmt.Fprintf(t.out, "  RPS: %d\n", cfg.RequestsPerSecond)
	fmt.Fprintf(t.out, "  Duration: %s (ramp-up %s, ramp-down %s)\n", cfg.Duration, cfg.RampUpTime, cfg.RampDownTime)
	fmt.Fprintf(t.out, "  Read/Write ratio: %.0f%%/%.0f%%\n\n", cfg.ReadWriteRatio*100, (1-cfg.ReadWriteRatio)*100)

	workers := cfg.RequestsPerSecond * 2
	if workers < 4 {
		workers = 4
	}
	work := make(chan workItem, workers*2)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range work {
				t.execute(gctx, item)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(work)
		t.generate(gctx, cfg, work)
		return nil
	})
	_ = g.Wait()

	t.stats.finish()
	return t.stats, nil
}

type workItem struct {
	method   string
	path     string
	body     []byte
	endpoint string
}

// generate paces work items with a token bucket whose rate follows the
// ramp-up/steady/ramp-down curve.
func (t *Tester) generate(ctx context.Context, cfg ProfileConfig, work chan<- workItem) {
	start := time.Now()
	total := cfg.RampUpTime + cfg.Duration + cfg.RampDownTime

	limiter := rate.NewLimiter(rate.Limit(currentRPS(0, cfg)), 1)
	for {
		elapsed := time.Since(start)
		if elapsed >= total {
			return
		}
		limiter.SetLimit(rate.Limit(currentRPS(elapsed, cfg)))

		waitCtx, cancel := context.WithDeadline(ctx, start.Add(total))
		err := limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			return
		}

		item := t.nextItem(cfg.ReadWriteRatio)
		select {
		case work <- item:
		case <-ctx.Done():
			return
		}
	}
}

// currentRPS is the target rate at elapsed, never below 1.
func currentRPS(elapsed time.Duration, cfg ProfileConfig) int {
	target := cfg.RequestsPerSecond

	if elapsed < cfg.RampUpTime {
		return max(1, int(float64(target)*float64(elapsed)/float64(cfg.RampUpTime)))
	}
	steadyEnd := cfg.RampUpTime + cfg.Duration
	if elapsed < steadyEnd {
		return target
	}
	if down := elapsed - steadyEnd; down < cfg.RampDownTime {
		return max(1, int(float64(target)*(1-float64(down)/float64(cfg.RampDownTime))))
	}
	return 1
}

func (t *Tester) nextItem(readRatio float64) workItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := ""
	if len(t.ids) > 0 {
		id = t.ids[t.rng.Intn(len(t.ids))]
	}

	if t.rng.Float64() < readRatio {
		switch {
		case id != "" && t.rng.Intn(2) == 0:
			return workItem{method: http.MethodGet, path: "/events/" + id, endpoint: "get_event"}
		case t.rng.Intn(10) == 0:
			return workItem{method: http.MethodGet, path: "/healthz", endpoint: "healthz"}
		default:
			return workItem{method: http.MethodGet, path: "/events", endpoint: "list_events"}
		}
	}

	roll := t.rng.Intn(10)
	switch {
	case id != "" && roll < 3:
		body, _ := json.Marshal(map[string]string{"description": fmt.Sprintf("updated %d", t.rng.Int63())})
		return workItem{method: http.MethodPut, path: "/events/" + id, body: body, endpoint: "update_event"}
	case id != "" && roll == 3:
		t.forgetLocked(id)
		return workItem{method: http.MethodDelete, path: "/events/" + id, endpoint: "delete_event"}
	default:
		n := t.rng.Intn(100000)
		body, _ := json.Marshal(map[string]string{
			"title":       fmt.Sprintf("Load test event %d", n),
			"date":        time.Now().Add(time.Duration(n) * time.Minute).UTC().Format("2006-01-02"),
			"description": "generated by loadtest",
		})
		return workItem{method: http.MethodPost, path: "/events", body: body, endpoint: "create_event"}
	}
}

func (t *Tester) remember(id string) {
	t.mu.Lock()
	t.ids = append(t.ids, id)
	t.mu.Unlock()
}

func (t *Tester) forgetLocked(id string) {
	for i, existing := range t.ids {
		if existing == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			return
		}
	}
}

func (t *Tester) execute(ctx context.Context, item workItem) {
	var body io.Reader
	if item.body != nil {
		body = bytes.NewReader(item.body)
	}
	req, err := http.NewRequestWithContext(ctx, item.method, t.baseURL+item.path, body)
	if err != nil {
		t.stats.record(item.endpoint, 0, 0)
		return
	}
	if item.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		t.stats.record(item.endpoint, 0, time.Since(start))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	payload, _ := io.ReadAll(resp.Body)
	t.stats.record(item.endpoint, resp.StatusCode, time.Since(start))

	if item.endpoint == "create_event" && resp.StatusCode == http.StatusOK {
		var created struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(payload, &created) == nil && created.ID != "" {
			t.remember(created.ID)
		}
	}
}

// Statistics aggregates results of one run.
type Statistics struct {
	mu        sync.Mutex
	total     int64
	succeeded int64
	statuses  map[int]int64 // 0 means transport error
	latencies []time.Duration
	endpoints map[string]*endpointStats
	startTime time.Time
	endTime   time.Time
}

type endpointStats struct {
	latencies []time.Duration
	errors    int64
}

func newStatistics() *Statistics {
	return &Statistics{
		statuses:  make(map[int]int64),
		endpoints: make(map[string]*endpointStats),
		startTime: time.Now(),
	}
}

func (s *Statistics) record(endpoint string, status int, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.statuses[status]++
	ep := s.endpoints[endpoint]
	if ep == nil {
		ep = &endpointStats{}
		s.endpoints[endpoint] = ep
	}
	if status >= 200 && status < 300 {
		s.succeeded++
	} else {
		ep.errors++
	}
	if status != 0 {
		s.latencies = append(s.latencies, latency)
		ep.latencies = append(ep.latencies, latency)
	}
}

func (s *Statistics) finish() {
	s.mu.Lock()
	s.endTime = time.Now()
	s.mu.Unlock()
}

func (s *Statistics) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Statistics) Succeeded() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded
}

// StatusCount returns how many responses had status; 0 counts transport errors.
func (s *Statistics) StatusCount(status int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[status]
}

// Report renders a plain text summary.
func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	duration := s.endTime.Sub(s.startTime)
	failed := s.total - s.succeeded

	b.WriteString("\nLOAD TEST RESULTS\n")
	b.WriteString(strings.Repeat("=", 62) + "\n")
	fmt.Fprintf(&b, "Duration:        %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Total Requests:  %d\n", s.total)
	fmt.Fprintf(&b, "Successful:      %d (%.1f%%)\n", s.succeeded, percent(s.succeeded, s.total))
	fmt.Fprintf(&b, "Failed:          %d (%.1f%%)\n", failed, percent(failed, s.total))
	if duration > 0 {
		fmt.Fprintf(&b, "Requests/sec:    %.2f\n", float64(s.total)/duration.Seconds())
	}

	if len(s.latencies) > 0 {
		b.WriteString("\nResponse Times (ms):\n")
		fmt.Fprintf(&b, "  p50:      %d\n", percentile(s.latencies, 0.50).Milliseconds())
		fmt.Fprintf(&b, "  p95:      %d\n", percentile(s.latencies, 0.95).Milliseconds())
		fmt.Fprintf(&b, "  p99:      %d\n", percentile(s.latencies, 0.99).Milliseconds())
	}

	codes := make([]int, 0, len(s.statuses))
	for code := range s.statuses {
		if code < 200 || code >= 300 {
			codes = append(codes, code)
		}
	}
	if len(codes) > 0 {
		sort.Ints(codes)
		b.WriteString("\nErrors by Status Code:\n")
		for _, code := range codes {
			label := fmt.Sprintf("%d", code)
			if code == 0 {
				label = "transport"
			}
			fmt.Fprintf(&b, "  %s: %d\n", label, s.statuses[code])
		}
	}

	if len(s.endpoints) > 0 {
		names := make([]string, 0, len(s.endpoints))
		for name := range s.endpoints {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nPer-Endpoint Statistics:\n")
		fmt.Fprintf(&b, "%-16s %8s %8s %8s %8s\n", "Endpoint", "Count", "Errors", "p50(ms)", "p95(ms)")
		for _, name := range names {
			ep := s.endpoints[name]
			fmt.Fprintf(&b, "%-16s %8d %8d %8d %8d\n", name, len(ep.latencies), ep.errors,
				percentile(ep.latencies, 0.50).Milliseconds(), percentile(ep.latencies, 0.95).Milliseconds())
		}
	}
	b.WriteString(strings.Repeat("=", 62) + "\n")
	return b.String()
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
