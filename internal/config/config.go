package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	API         APIConfig
	Recognition RecognitionConfig
	Camera      CameraConfig
	Burst       BurstConfig
	Web         WebConfig
}

type APIConfig struct {
	URL     string        // roster and persistence backend
	Timeout time.Duration // per-request timeout for boundary calls
}

type RecognitionConfig struct {
	URL string // defaults to API.URL
}

type CameraConfig struct {
	SnapshotURL string // IP camera still endpoint (e.g. http://cam.local/snapshot.jpg)
	FramesDir   string // directory of frames written by an external grabber
	LockFile    string // exclusive lock held while a session owns the camera
}

// HasLocalSource reports whether a server-side camera is configured.
// Without one, frames are supplied by the client with each capture.
func (c *CameraConfig) HasLocalSource() bool {
	return c.SnapshotURL != "" || c.FramesDir != ""
}

type BurstConfig struct {
	Frames   int           `yaml:"frames"`
	Interval time.Duration `yaml:"interval"`
	MaxSize  int           `yaml:"max_size"` // longest edge of a submitted frame, in pixels
}

type WebConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	APIToken       string        `yaml:"-"` // optional bearer token required by the session API
	AllowedOrigins []string      `yaml:"allowed_origins"`
	SessionTTL     time.Duration `yaml:"session_ttl"` // closed sessions are dropped after this
}

// defaults mirrors defaults.yaml.
type defaults struct {
	API struct {
		URL string `yaml:"url"`
	} `yaml:"api"`
	HTTP struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
	Burst BurstConfig `yaml:"burst"`
	Web   WebConfig   `yaml:"web"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration ("200ms", "30s").
// Returns the default value if the env var is unset, empty, invalid, or negative.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := loadDefaults()

	apiURL := envString("ATTENDANCE_API_URL", d.API.URL)

	return &Config{
		API: APIConfig{
			URL:     apiURL,
			Timeout: envDuration("HTTP_TIMEOUT", d.HTTP.Timeout),
		},
		Recognition: RecognitionConfig{
			URL: envString("RECOGNITION_URL", apiURL),
		},
		Camera: CameraConfig{
			SnapshotURL: os.Getenv("CAMERA_SNAPSHOT_URL"),
			FramesDir:   os.Getenv("CAMERA_FRAMES_DIR"),
			LockFile:    envString("CAMERA_LOCK_FILE", filepath.Join(os.TempDir(), "attendance-camera.lock")),
		},
		Burst: BurstConfig{
			Frames:   envInt("BURST_FRAMES", d.Burst.Frames),
			Interval: envDuration("BURST_INTERVAL", d.Burst.Interval),
			MaxSize:  envInt("FRAME_MAX_SIZE", d.Burst.MaxSize),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", d.Web.Port),
			Host:           envString("WEB_HOST", d.Web.Host),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
			SessionTTL:     envDuration("WEB_SESSION_TTL", d.Web.SessionTTL),
		},
	}
}
