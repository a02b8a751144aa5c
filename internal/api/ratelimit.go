package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tank-arena/internal/config"
)

// trafficClass splits a client's budget. Polling the state never eats into
// the budget for steering, and a stuck key never locks a client out of reads.
type trafficClass uint8

const (
	classRead trafficClass = iota
	classInput
	numClasses
)

func (c trafficClass) String() string {
	if c == classInput {
		return "input"
	}
	return "read"
}

// Reject reasons. Bounded so they can be metric labels.
const (
	RejectReadLimit    = "read_limit"
	RejectInputLimit   = "input_limit"
	RejectOrigin       = "origin"
	RejectWSTotalLimit = "ws_total_limit"
	RejectWSIPLimit    = "ws_ip_limit"
)

// RejectRecorder counts refused requests and connections by reason.
type RejectRecorder interface {
	Rejected(reason string)
}

type nopRejects struct{}

func (nopRejects) Rejected(string) {}

// RateLimitConfig sets one token bucket per client for each traffic class.
type RateLimitConfig struct {
	ReadRPS    float64
	ReadBurst  int
	InputRPS   float64
	InputBurst int
	IdleTTL    time.Duration // buckets unused this long are dropped
}

const defaultIdleTTL = 10 * time.Minute

// DefaultRateLimitConfig matches config.DefaultServer
var DefaultRateLimitConfig = RateLimitConfigFrom(config.DefaultServer())

// RateLimitConfigFrom builds the limiter settings from the server section
func RateLimitConfigFrom(cfg config.ServerConfig) RateLimitConfig {
	return RateLimitConfig{
		ReadRPS:    cfg.ReadRPS,
		ReadBurst:  cfg.ReadBurst,
		InputRPS:   cfg.InputRPS,
		InputBurst: cfg.InputBurst,
		IdleTTL:    defaultIdleTTL,
	}
}

// clientBuckets is one client's budget per class.
type clientBuckets struct {
	buckets [numClasses]*rate.Limiter
	seen    time.Time
}

// Throttle rate-limits clients by IP. HTTP reads go through Middleware;
// input, whether it arrives over HTTP or a websocket, draws from the same
// per-client input bucket.
type Throttle struct {
	cfg     RateLimitConfig
	rejects RejectRecorder
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBuckets

	allowed  [numClasses]atomic.Uint64
	rejected [numClasses]atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewThrottle starts a throttle and its idle-bucket janitor. Zero fields in
// cfg take the defaults; rejects may be nil.
func NewThrottle(cfg RateLimitConfig, rejects RejectRecorder) *Throttle {
	def := DefaultRateLimitConfig
	if cfg.ReadRPS <= 0 || cfg.ReadBurst <= 0 {
		cfg.ReadRPS, cfg.ReadBurst = def.ReadRPS, def.ReadBurst
	}
	if cfg.InputRPS <= 0 || cfg.InputBurst <= 0 {
		cfg.InputRPS, cfg.InputBurst = def.InputRPS, def.InputBurst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if rejects == nil {
		rejects = nopRejects{}
	}
	t := &Throttle{
		cfg:     cfg,
		rejects: rejects,
		now:     time.Now,
		clients: make(map[string]*clientBuckets),
		stop:    make(chan struct{}),
	}
	go t.janitor()
	return t
}

// Stop ends the janitor goroutine. Safe to call twice.
func (t *Throttle) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Throttle) allow(ip string, c trafficClass) bool {
	now := t.now()

	t.mu.Lock()
	cb, ok := t.clients[ip]
	if !ok {
		cb = &clientBuckets{}
		cb.buckets[classRead] = rate.NewLimiter(rate.Limit(t.cfg.ReadRPS), t.cfg.ReadBurst)
		cb.buckets[classInput] = rate.NewLimiter(rate.Limit(t.cfg.InputRPS), t.cfg.InputBurst)
		t.clients[ip] = cb
	}
	cb.seen = now
	ok = cb.buckets[c].AllowN(now, 1)
	t.mu.Unlock()

	if ok {
		t.allowed[c].Add(1)
		return true
	}
	t.rejected[c].Add(1)
	if c == classInput {
		t.rejects.Rejected(RejectInputLimit)
	} else {
		t.rejects.Rejected(RejectReadLimit)
	}
	return false
}

// AllowInput spends one input token for ip.
func (t *Throttle) AllowInput(ip string) bool { return t.allow(ip, classInput) }

// Middleware charges POST requests to the input bucket and everything else
// to the read bucket.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := classRead
		if r.Method == http.MethodPost {
			class = classInput
		}
		if !t.allow(clientIP(r), class) {
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) janitor() {
	ticker := time.NewTicker(t.cfg.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep drops clients idle for longer than IdleTTL and reports how many went.
// An idle client's buckets are full again anyway.
func (t *Throttle) sweep() int {
	cutoff := t.now().Add(-t.cfg.IdleTTL)
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for ip, cb := range t.clients {
		if cb.seen.Before(cutoff) {
			delete(t.clients, ip)
			n++
		}
	}
	return n
}

// Clients returns the number of tracked clients.
func (t *Throttle) Clients() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// GetStats returns counters for /api/stats
func (t *Throttle) GetStats() map[string]uint64 {
	stats := map[string]uint64{"clients": uint64(t.Clients())}
	var allowed, rejected uint64
	for c := classRead; c < numClasses; c++ {
		a, r := t.allowed[c].Load(), t.rejected[c].Load()
		stats[c.String()+"Allowed"] = a
		stats[c.String()+"Rejected"] = r
		allowed += a
		rejected += r
	}
	stats["allowed"] = allowed
	stats["rejected"] = rejected
	return stats
}

// clientIP returns the request's client address. middleware.RealIP has
// already replaced RemoteAddr when a proxy header was present.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// connLimit caps concurrent websocket connections per client.
type connLimit struct {
	mu   sync.Mutex
	max  int
	open map[string]int
}

func newConnLimit(max int) *connLimit {
	return &connLimit{max: max, open: make(map[string]int)}
}

// acquire reserves a slot for ip.
func (c *connLimit) acquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open[ip] >= c.max {
		return false
	}
	c.open[ip]++
	return true
}

// release frees a slot. Clients with no open connections are forgotten.
func (c *connLimit) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.open[ip]; n > 1 {
		c.open[ip] = n - 1
	} else {
		delete(c.open, ip)
	}
}

// count returns the open connections for ip.
func (c *connLimit) count(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open[ip]
}

// IsAllowedOrigin checks a websocket Origin header. Localhost on any port is
// always allowed; extra lists exact origins from the server config. An empty
// origin means a non-browser client such as the terminal client.
func IsAllowedOrigin(origin string, extra []string) bool {
	if origin == "" {
		return true
	}
	for _, local := range []string{"http://localhost", "http://127.0.0.1"} {
		if origin == local || strings.HasPrefix(origin, local+":") {
			return true
		}
	}
	for _, allowed := range extra {
		if origin == allowed {
			return true
		}
	}
	return false
}
