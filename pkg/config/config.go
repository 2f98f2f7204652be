package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "dispatch"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Health       HealthPolicy
	Bidding      BidPolicy
	Lifecycle    LifecyclePolicy
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DISPATCH_APP_ENV" required:"true"`
	Port         string `envconfig:"DISPATCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DISPATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DISPATCH_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"DISPATCH_TIMEZONE" default:"America/Chicago"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DISPATCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"DISPATCH_DB_DSN"`

	Host     string `envconfig:"DISPATCH_DB_HOST"`
	Port     int    `envconfig:"DISPATCH_DB_PORT" default:"5432"`
	User     string `envconfig:"DISPATCH_DB_USER"`
	Password string `envconfig:"DISPATCH_DB_PASSWORD"`
	Name     string `envconfig:"DISPATCH_DB_NAME"`
	SSLMode  string `envconfig:"DISPATCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DISPATCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DISPATCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DISPATCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DISPATCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Host == "" || db.User == "" || db.Name == "" {
		return fmt.Errorf("either DISPATCH_DB_DSN or DISPATCH_DB_HOST/USER/NAME must be set")
	}
	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Name,
		RawQuery: url.Values{"sslmode": []string{db.SSLMode}}.Encode(),
	}
	db.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"DISPATCH_REDIS_URL" required:"true"`
	Password     string        `envconfig:"DISPATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"DISPATCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DISPATCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DISPATCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DISPATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DISPATCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DISPATCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DISPATCH_AUTO_MIGRATE" default:"false"`
}

// HealthPolicy carries every tunable of the driver health engine. Point
// values, thresholds and caps are operational policy, never hardcoded in the
// ledger itself.
type HealthPolicy struct {
	PointsOnTimeConfirmation int `envconfig:"DISPATCH_HEALTH_POINTS_CONFIRMATION" default:"2"`
	PointsOnTimeArrival      int `envconfig:"DISPATCH_HEALTH_POINTS_ARRIVAL" default:"2"`
	PointsCompletedShift     int `envconfig:"DISPATCH_HEALTH_POINTS_COMPLETED" default:"5"`
	PointsHighDeliveryShift  int `envconfig:"DISPATCH_HEALTH_POINTS_HIGH_DELIVERY" default:"3"`
	PointsBidPickup          int `envconfig:"DISPATCH_HEALTH_POINTS_BID_PICKUP" default:"4"`
	PointsAutoDrop           int `envconfig:"DISPATCH_HEALTH_POINTS_AUTO_DROP" default:"-8"`
	PointsLateCancellation   int `envconfig:"DISPATCH_HEALTH_POINTS_LATE_CANCEL" default:"-10"`

	MaxScore            int     `envconfig:"DISPATCH_HEALTH_MAX_SCORE" default:"100"`
	PoolMinScore        int     `envconfig:"DISPATCH_HEALTH_POOL_MIN_SCORE" default:"40"`
	HighDeliveryRate    float64 `envconfig:"DISPATCH_HEALTH_HIGH_DELIVERY_RATE" default:"0.98"`
	RollingWindowDays   int     `envconfig:"DISPATCH_HEALTH_ROLLING_WINDOW_DAYS" default:"30"`
	HardStopLateCancels int     `envconfig:"DISPATCH_HEALTH_HARD_STOP_LATE_CANCELS" default:"3"`
	WeekMinAttendance   float64 `envconfig:"DISPATCH_HEALTH_WEEK_MIN_ATTENDANCE" default:"0.9"`
	WeekMinCompletion   float64 `envconfig:"DISPATCH_HEALTH_WEEK_MIN_COMPLETION" default:"0.95"`
	WeekMaxNoShows      int     `envconfig:"DISPATCH_HEALTH_WEEK_MAX_NO_SHOWS" default:"0"`
	WeekMaxLateCancels  int     `envconfig:"DISPATCH_HEALTH_WEEK_MAX_LATE_CANCELS" default:"1"`
	MaxStars            int     `envconfig:"DISPATCH_HEALTH_MAX_STARS" default:"4"`
}

// BidPolicy carries scoring weights and window behavior. Weights are
// normalized shares of the final score.
type BidPolicy struct {
	WeightHealth      float64 `envconfig:"DISPATCH_BID_WEIGHT_HEALTH" default:"0.45"`
	WeightFamiliarity float64 `envconfig:"DISPATCH_BID_WEIGHT_FAMILIARITY" default:"0.25"`
	WeightTenure      float64 `envconfig:"DISPATCH_BID_WEIGHT_TENURE" default:"0.15"`
	WeightPreference  float64 `envconfig:"DISPATCH_BID_WEIGHT_PREFERENCE" default:"0.15"`

	// FamiliarityPivot is the completed-route count at which the familiarity
	// component reaches 0.5.
	FamiliarityPivot int `envconfig:"DISPATCH_BID_FAMILIARITY_PIVOT" default:"5"`
	// FullTenureMonths is the account age at which the tenure component
	// saturates at 1.
	FullTenureMonths int `envconfig:"DISPATCH_BID_FULL_TENURE_MONTHS" default:"24"`
	// NeutralHealthComponent is used for drivers with no health history yet.
	NeutralHealthComponent float64 `envconfig:"DISPATCH_BID_NEUTRAL_HEALTH" default:"0.5"`

	InstantCutoffHours       int     `envconfig:"DISPATCH_BID_INSTANT_CUTOFF_HOURS" default:"24"`
	WindowDurationHours      int     `envconfig:"DISPATCH_BID_WINDOW_DURATION_HOURS" default:"4"`
	EmergencyPayBonusPercent float64 `envconfig:"DISPATCH_BID_EMERGENCY_PAY_BONUS_PERCENT" default:"15"`
}

// LifecyclePolicy carries the assignment transition windows.
type LifecyclePolicy struct {
	ConfirmationOpensDays     int           `envconfig:"DISPATCH_LIFECYCLE_CONFIRMATION_OPENS_DAYS" default:"3"`
	ConfirmationDeadlineHours int           `envconfig:"DISPATCH_LIFECYCLE_CONFIRMATION_DEADLINE_HOURS" default:"12"`
	RequireConfirmForArrival  bool          `envconfig:"DISPATCH_LIFECYCLE_REQUIRE_CONFIRM_FOR_ARRIVAL" default:"true"`
	ArrivalEarliest           time.Duration `envconfig:"DISPATCH_LIFECYCLE_ARRIVAL_EARLIEST" default:"2h"`
	ArrivalGrace              time.Duration `envconfig:"DISPATCH_LIFECYCLE_ARRIVAL_GRACE" default:"30m"`
	EditWindow                time.Duration `envconfig:"DISPATCH_LIFECYCLE_EDIT_WINDOW" default:"24h"`
	ReminderLead              time.Duration `envconfig:"DISPATCH_LIFECYCLE_REMINDER_LEAD" default:"48h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"DISPATCH_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"DISPATCH_CRON_LOCK_TTL" default:"1h"`
}
