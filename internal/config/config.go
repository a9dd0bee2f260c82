package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    RabbitURL string // AMQP broker for occupancy events; empty disables publishing

    Log       LogConfig
    Occupancy OccupancyConfig
    Session   SessionConfig
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
    Level    string
    Format   string
    Output   string
    FilePath string
}

// OccupancyConfig tunes the occupancy tracker.
type OccupancyConfig struct {
    LockTTL        time.Duration // expiry of the per-course-time Redis lock
    LockWait       time.Duration // how long a request waits for the lock
    UpdateAttempts int           // recounts allowed when the version check fails
    ReconcileQueue bool          // consume occupancy.reconcile in this process
}

// SessionConfig tunes the signed-in user cache.
type SessionConfig struct {
    TTL time.Duration
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    env := must("APP_ENV")
    return Config{
        Env:            env,
        Port:           envStr("APP_PORT", "8080"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         envStr("DB_PORT", "3306"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     envInt("BCRYPT_COST", 10),

        RabbitURL: rabbitURL(),

        Log: LogConfig{
            Level:    envStr("LOG_LEVEL", "info"),
            Format:   envStr("LOG_FORMAT", defaultLogFormat(env)),
            Output:   envStr("LOG_OUTPUT", "stdout"),
            FilePath: os.Getenv("LOG_FILE"),
        },
        Occupancy: OccupancyConfig{
            LockTTL:        envDur("OCCUPANCY_LOCK_TTL", 5*time.Second),
            LockWait:       envDur("OCCUPANCY_LOCK_WAIT", 3*time.Second),
            UpdateAttempts: envInt("OCCUPANCY_UPDATE_ATTEMPTS", 3),
            ReconcileQueue: envBool("OCCUPANCY_RECONCILE_CONSUMER", true),
        },
        Session: SessionConfig{
            TTL: envDur("SESSION_CACHE_TTL", 5*time.Minute),
        },
    }
}

func defaultLogFormat(env string) string {
    if env == "dev" || env == "local" {
        return "console"
    }
    return "json"
}

// rabbitURL prefers RABBITMQ_URL, then AMQP_URL.  An explicit "off"
// disables messaging.
func rabbitURL() string {
    u := os.Getenv("RABBITMQ_URL")
    if u == "" {
        u = os.Getenv("AMQP_URL")
    }
    if u == "off" {
        return ""
    }
    return u
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
