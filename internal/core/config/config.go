// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type MaterializeCfg struct {
	URL          string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Retries      int
	Backoff      time.Duration
}

type RegistryCfg struct {
	Online bool
	URL    string
}

type Config struct {
	Addr              string
	LogLevel          string
	LogConsole        bool
	Version           string
	Registry          RegistryCfg
	Materialize       MaterializeCfg
	RedisAddr         string
	RedisPoolSize     int
	RedisMinIdle      int
	RedisDialTimeout  time.Duration
	RedisRWTimeout    time.Duration
	ResolverCacheSize int
	H3Res             int
	H3ResMin          int
	H3ResMax          int
	CacheOpTimeout    time.Duration
	CacheTTLDefault   time.Duration
	// CacheTTLOvr overrides the summary ttl per platform id.
	CacheTTLOvr       map[string]time.Duration
	SummaryMaxWorkers int
	SummaryMaxCells   int
	SummaryScale      float64
	Invalidation      InvalidationCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 8)
	minRes := getint("H3_RES_MIN", res)
	maxRes := getint("H3_RES_MAX", res)

	if minRes < 0 {
		minRes = 0
	}
	if maxRes > 15 {
		maxRes = 15
	}
	if minRes > maxRes {
		minRes, maxRes = res, res
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		Version:    getenv("APP_VERSION", "dev"),
		Registry: RegistryCfg{
			Online: getbool("REGISTRY_ONLINE", false),
			URL:    getenv("REGISTRY_URL", ""),
		},
		Materialize: MaterializeCfg{
			URL:          getenv("MATERIALIZE_URL", ""),
			TokenURL:     getenv("MATERIALIZE_TOKEN_URL", ""),
			ClientID:     getenv("MATERIALIZE_CLIENT_ID", ""),
			ClientSecret: getenv("MATERIALIZE_CLIENT_SECRET", ""),
			Scopes:       splitCSV(getenv("MATERIALIZE_SCOPES", "")),
			Retries:      getint("MATERIALIZE_RETRIES", 2),
			Backoff:      getduration("MATERIALIZE_BACKOFF", 200*time.Millisecond),
		},
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPoolSize:     getint("REDIS_POOL_SIZE", 64),
		RedisMinIdle:      getint("REDIS_MIN_IDLE_CONNS", 4),
		RedisDialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		RedisRWTimeout:    getduration("REDIS_RW_TIMEOUT", time.Second),
		ResolverCacheSize: getint("RESOLVER_CACHE_SIZE", 1024),
		H3Res:             res,
		H3ResMin:          minRes,
		H3ResMax:          maxRes,
		CacheOpTimeout:    getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheTTLDefault:   getduration("CACHE_TTL_DEFAULT", time.Hour),
		CacheTTLOvr:       parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")),
		SummaryMaxWorkers: getint("SUMMARY_MAX_WORKERS", 8),
		SummaryMaxCells:   getint("SUMMARY_MAX_CELLS", 2000),
		SummaryScale:      getfloat("SUMMARY_SCALE", 30),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "scene-ingest"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "band-algebra-invalidator"),
		},
	}
}

// Resolutions lists every resolution summaries may be cached at.
func (c Config) Resolutions() []int {
	out := make([]int, 0, c.H3ResMax-c.H3ResMin+1)
	for r := c.H3ResMin; r <= c.H3ResMax; r++ {
		out = append(out, r)
	}
	return out
}

// TTLFor returns the summary ttl of a platform.
func (c Config) TTLFor(platform string) time.Duration {
	if d, ok := c.CacheTTLOvr[platform]; ok {
		return d
	}
	return c.CacheTTLDefault
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "COPERNICUS/S2_SR=5m,other=30s" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	parts := strings.SplitSeq(s, ",")
	for p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
