package proxy

import (
	"os"
	"strconv"
	"time"

	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
)

// Config holds the proxy engine's runtime knobs, sourced from environment
// variables rather than the YAML server config so they can be tuned
// per-deployment without a redeploy of the config file.
type Config struct {
	UpstreamBaseURL     string
	UpstreamAPIKey      string
	UpstreamBearer      string
	UpstreamExtraHeaders []upstream.Header

	TTLHot  time.Duration
	TTLWarm time.Duration
	TTLCold time.Duration

	MaxStale time.Duration
	Timeout  time.Duration

	Concurrency     int64
	BudgetPerMinute int64

	PopHot  float64
	PopWarm float64

	HotsetSize int
	L2Enabled  bool
}

// LoadConfigFromEnv reads the proxy Config from the process environment,
// applying the defaults documented for each knob.
func LoadConfigFromEnv() Config {
	return Config{
		UpstreamBaseURL:      getenv("UPSTREAM_BASE_URL", ""),
		UpstreamAPIKey:       getenv("UPSTREAM_API_KEY", ""),
		UpstreamBearer:       getenv("UPSTREAM_BEARER", ""),
		UpstreamExtraHeaders: upstream.ParseExtraHeaders(getenv("UPSTREAM_EXTRA_HEADERS", "")),

		TTLHot:  getenvSeconds("TTL_HOT_SECS", 15),
		TTLWarm: getenvSeconds("TTL_WARM_SECS", 45),
		TTLCold: getenvSeconds("TTL_COLD_SECS", 300),

		MaxStale: getenvSeconds("MAX_STALE_SECS", 180),
		Timeout:  getenvMillis("TIMEOUT_MS", 8000),

		Concurrency:     getenvInt64("CONCURRENCY", 16),
		BudgetPerMinute: getenvInt64("BUDGET_PER_MINUTE", 300),

		PopHot:  getenvFloat("POP_HOT", 50),
		PopWarm: getenvFloat("POP_WARM", 10),

		HotsetSize: int(getenvInt64("HOTSET_SIZE", 500)),
		L2Enabled:  getenvBool("L2_ENABLED", true),
	}
}

// TTLs returns the Config's TTL-class durations as a TTLs value.
func (c Config) TTLs() TTLs {
	return TTLs{Hot: c.TTLHot, Warm: c.TTLWarm, Cold: c.TTLCold}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvSeconds(key string, defSecs int64) time.Duration {
	return time.Duration(getenvInt64(key, defSecs)) * time.Second
}

func getenvMillis(key string, defMillis int64) time.Duration {
	return time.Duration(getenvInt64(key, defMillis)) * time.Millisecond
}
