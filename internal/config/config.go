package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Tier is one duration bucket of the lending book. Loans with a duration up
// to Days (and above the previous bucket) get this APY and LTV cap.
type Tier struct {
	Days   int     `json:"days"`
	APY    float64 `json:"apy"`
	MaxLtv float64 `json:"max_ltv"`
}

type Config struct {
	AppPort string

	// Storage
	DBDriver   string // "mysql" or "sqlite"
	SQLitePath string
	MySQLHost  string
	MySQLPort  string
	MySQLDB    string
	MySQLUser  string
	MySQLPass  string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// Chains
	SourceChain       string // collateral vault side
	DestChain         string // liquidity pool side
	PoolAddress       string
	TreasuryAddress   string
	PollInterval      time.Duration
	WatcherBatchSize  int
	FinalityTimeout   time.Duration
	MaxSettleAttempts int

	// Oracle
	CollateralAsset string
	BorrowedAsset   string
	QuoteCurrency   string
	PriceCacheTTL   time.Duration

	// Lending parameters
	MaxLtv               float64
	LiquidationThreshold float64
	Tiers                []Tier
	LateFeePerDay        float64
	MaxLateDays          int
	GracePeriodDays      int
	LiquidationPenalty   float64
	ProtocolShare        float64
	LiquidatorShare      float64
	MinCollateral        float64
	MinBorrow            float64

	AccrualInterval         time.Duration
	LiquidationScanInterval time.Duration
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getfloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getsecs(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return d
}

// defaultTiers mirrors the launch book: shorter loans pay more and may
// borrow less against the same collateral.
func defaultTiers() []Tier {
	return []Tier{
		{Days: 7, APY: 0.12, MaxLtv: 0.70},
		{Days: 14, APY: 0.10, MaxLtv: 0.70},
		{Days: 30, APY: 0.08, MaxLtv: 0.75},
		{Days: 60, APY: 0.07, MaxLtv: 0.75},
		{Days: 90, APY: 0.06, MaxLtv: 0.65},
		{Days: 180, APY: 0.055, MaxLtv: 0.65},
	}
}

// parseTiers reads "7:0.12:0.70,30:0.08:0.75,..." (days:apy[:maxLtv]).
// When the LTV part is omitted the global MaxLtv applies.
func parseTiers(raw string, fallbackLtv float64) ([]Tier, error) {
	out := make([]Tier, 0, 8)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("bad tier %q (want days:apy[:maxLtv])", part)
		}
		days, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("bad tier days in %q", part)
		}
		apy, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil || apy <= 0 {
			return nil, fmt.Errorf("bad tier apy in %q", part)
		}
		ltv := fallbackLtv
		if len(fields) == 3 {
			ltv, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil || ltv <= 0 || ltv >= 1 {
				return nil, fmt.Errorf("bad tier maxLtv in %q", part)
			}
		}
		out = append(out, Tier{Days: days, APY: apy, MaxLtv: ltv})
	}
	if len(out) == 0 {
		return nil, errors.New("no tiers parsed")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out, nil
}

func Load() *Config {
	c := &Config{
		AppPort: getenv("APP_PORT", "8080"),

		DBDriver:   getenv("DB_DRIVER", "mysql"),
		SQLitePath: getenv("SQLITE_PATH", "relayer.db"),
		MySQLHost:  getenv("MYSQL_HOST", "mysql"),
		MySQLPort:  getenv("MYSQL_PORT", "3306"),
		MySQLDB:    getenv("MYSQL_DB", "polarbridge"),
		MySQLUser:  getenv("MYSQL_USER", "polarbridge"),
		MySQLPass:  getenv("MYSQL_PASS", "polarbridge"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getint("REDIS_DB", 0),
		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		SourceChain:       getenv("SOURCE_CHAIN", "stellar"),
		DestChain:         getenv("DEST_CHAIN", "paseo"),
		PoolAddress:       getenv("POOL_ADDRESS", ""),
		TreasuryAddress:   getenv("TREASURY_ADDRESS", ""),
		PollInterval:      getsecs("POLL_INTERVAL_SECONDS", 5*time.Second),
		WatcherBatchSize:  getint("WATCHER_BATCH_SIZE", 100),
		FinalityTimeout:   getsecs("FINALITY_TIMEOUT_SECONDS", 120*time.Second),
		MaxSettleAttempts: getint("MAX_SETTLE_ATTEMPTS", 8),

		CollateralAsset: getenv("COLLATERAL_ASSET", "XLM"),
		BorrowedAsset:   getenv("BORROWED_ASSET", "PAS"),
		QuoteCurrency:   getenv("QUOTE_CURRENCY", "inr"),
		PriceCacheTTL:   getsecs("PRICE_CACHE_TTL_SECONDS", 60*time.Second),

		MaxLtv:               getfloat("MAX_LTV", 0.75),
		LiquidationThreshold: getfloat("LIQUIDATION_THRESHOLD", 0.85),
		LateFeePerDay:        getfloat("LATE_FEE_PER_DAY", 0.02),
		MaxLateDays:          getint("MAX_LATE_DAYS", 7),
		GracePeriodDays:      getint("GRACE_PERIOD_DAYS", 3),
		LiquidationPenalty:   getfloat("LIQUIDATION_PENALTY", 0.10),
		ProtocolShare:        getfloat("PROTOCOL_SHARE", 0.70),
		LiquidatorShare:      getfloat("LIQUIDATOR_SHARE", 0.30),
		MinCollateral:        getfloat("MIN_COLLATERAL", 100),
		MinBorrow:            getfloat("MIN_BORROW", 50),

		AccrualInterval:         getsecs("ACCRUAL_INTERVAL_SECONDS", 3600*time.Second),
		LiquidationScanInterval: getsecs("LIQUIDATION_SCAN_INTERVAL_SECONDS", 300*time.Second),
	}

	c.Tiers = defaultTiers()
	if raw := os.Getenv("RATES_BY_DURATION"); raw != "" {
		if tiers, err := parseTiers(raw, c.MaxLtv); err == nil {
			c.Tiers = tiers
		}
	}
	return c
}

// TierFor picks the smallest duration bucket that covers durationDays.
// Durations past the longest bucket fall back to that bucket's terms.
func (c *Config) TierFor(durationDays int) Tier {
	for _, t := range c.Tiers {
		if durationDays <= t.Days {
			return t
		}
	}
	return c.Tiers[len(c.Tiers)-1]
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.MaxLtv <= 0 || c.MaxLtv >= 1 {
		return fmt.Errorf("MAX_LTV must be in (0,1), got %v", c.MaxLtv)
	}
	if c.LiquidationThreshold <= c.MaxLtv || c.LiquidationThreshold > 1 {
		return fmt.Errorf("LIQUIDATION_THRESHOLD must be in (maxLtv,1], got %v", c.LiquidationThreshold)
	}
	if math.Abs(c.ProtocolShare+c.LiquidatorShare-1.0) > 1e-9 {
		return fmt.Errorf("penalty shares must sum to 1.0, got %v", c.ProtocolShare+c.LiquidatorShare)
	}
	if c.LateFeePerDay < 0 || c.LiquidationPenalty < 0 {
		return errors.New("fee rates must be non-negative")
	}
	if c.MaxLateDays <= 0 {
		return errors.New("MAX_LATE_DAYS must be positive")
	}
	if len(c.Tiers) == 0 {
		return errors.New("no rate tiers configured")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
