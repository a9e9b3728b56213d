package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Log levels accepted by MAPMAKER_LOG_LEVEL / LOG_LEVEL.
const (
	LogNone  = "NONE"
	LogInfo  = "INFO"
	LogDebug = "DEBUG"
)

// Settings are process-level knobs that do not affect the rendered map and
// so are kept out of the spec (and its fingerprint).
type Settings struct {
	LogLevel        string
	Workdir         string
	DownloadTimeout time.Duration
	ConvertTimeout  time.Duration
	OGR2OGR         string
	S3              S3Settings
}

// S3Settings configures artifact publishing. Empty Endpoint disables it.
type S3Settings struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether enough is set to attempt an upload.
func (s S3Settings) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// DefaultSettings returns the settings used when the environment is silent.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:        LogInfo,
		Workdir:         ".",
		DownloadTimeout: 10 * time.Minute,
		ConvertTimeout:  5 * time.Minute,
		OGR2OGR:         "ogr2ogr",
		S3:              S3Settings{Region: "us-east-1", UseSSL: true},
	}
}

// LoadSettings reads a .env file from the current directory if present,
// then overlays the environment onto DefaultSettings.
func LoadSettings() (Settings, error) {
	_ = godotenv.Load()
	return SettingsFromEnv(os.Getenv)
}

// SettingsFromEnv builds Settings from a lookup function.
func SettingsFromEnv(getenv func(string) string) (Settings, error) {
	s := DefaultSettings()

	if v := firstNonEmpty(getenv("MAPMAKER_LOG_LEVEL"), getenv("LOG_LEVEL")); v != "" {
		lvl, err := ParseLogLevel(v)
		if err != nil {
			return s, err
		}
		s.LogLevel = lvl
	}
	if v := getenv("MAPMAKER_WORKDIR"); v != "" {
		s.Workdir = v
	}
	if v := getenv("MAPMAKER_OGR2OGR"); v != "" {
		s.OGR2OGR = v
	}

	var err error
	if s.DownloadTimeout, err = durationEnv(getenv, "MAPMAKER_DOWNLOAD_TIMEOUT", s.DownloadTimeout); err != nil {
		return s, err
	}
	if s.ConvertTimeout, err = durationEnv(getenv, "MAPMAKER_CONVERT_TIMEOUT", s.ConvertTimeout); err != nil {
		return s, err
	}

	s.S3.Endpoint = strings.TrimSpace(getenv("MAPMAKER_S3_ENDPOINT"))
	s.S3.Bucket = strings.TrimSpace(getenv("MAPMAKER_S3_BUCKET"))
	s.S3.AccessKey = getenv("MAPMAKER_S3_ACCESS_KEY")
	s.S3.SecretKey = getenv("MAPMAKER_S3_SECRET_KEY")
	if v := getenv("MAPMAKER_S3_REGION"); v != "" {
		s.S3.Region = v
	}
	if v := getenv("MAPMAKER_S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("MAPMAKER_S3_USE_SSL: %w", err)
		}
		s.S3.UseSSL = b
	}
	return s, nil
}

// ParseLogLevel normalises a log level name.
func ParseLogLevel(v string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case LogNone, "OFF", "QUIET":
		return LogNone, nil
	case LogInfo, "":
		return LogInfo, nil
	case LogDebug:
		return LogDebug, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want NONE, INFO or DEBUG)", v)
	}
}

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return def, fmt.Errorf("%s: negative duration %s", key, v)
	}
	return d, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
