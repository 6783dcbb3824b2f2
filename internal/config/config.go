package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Library   LibraryConfig
	Embedding EmbeddingConfig
	Cache     CacheConfig
	Profiles  ProfilesConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	Web       WebConfig
}

type LibraryConfig struct {
	Root                string   // library root containing one folder per namespace
	Extensions          []string // supported image extensions, lower case with leading dot
	SourceFolders       []string // folder names holding unsorted images (e.g. "Mix")
	SuggestionThreshold float64  // minimum centroid similarity for proposals
}

type EmbeddingConfig struct {
	URL         string        // defaults to http://localhost:8000
	Concurrency int           // concurrent embedding requests (default 4)
	Timeout     time.Duration // per-request timeout
	Upload      bool          // upload image bytes; for a server that cannot read LIBRARY_ROOT
}

type CacheConfig struct {
	Backend string // sqlite, postgres or mariadb
	Path    string // sqlite database file
}

type ProfilesConfig struct {
	Backend string // json or postgres
	Dir     string // directory for per-namespace JSON files
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. sorter:sorter@tcp(localhost:3306)/sorter?parseTime=true
}

type WebConfig struct {
	Port           int      // defaults to 8080
	Host           string   // defaults to 127.0.0.1; the API has no authentication
	AllowedOrigins []string // extra CORS origins besides localhost
}

// Defaults mirrors the structure of the embedded defaults.yaml.
type Defaults struct {
	Library struct {
		Extensions          []string `yaml:"extensions"`
		SourceFolders       []string `yaml:"source_folders"`
		SuggestionThreshold float64  `yaml:"suggestion_threshold"`
	} `yaml:"library"`
	Embedding struct {
		URL            string `yaml:"url"`
		Concurrency    int    `yaml:"concurrency"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"embedding"`
	Cache struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"cache"`
	Profiles struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
	} `yaml:"profiles"`
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

// envFloat reads an environment variable as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envString returns the env var value or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

// envList splits a comma or semicolon separated env var, trimming blanks.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	return SplitList(s)
}

// SplitList splits a comma or semicolon separated list and drops empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDefaults parses the embedded defaults.
func LoadDefaults() Defaults {
	var d Defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := LoadDefaults()

	exts := envList("LIBRARY_EXTENSIONS", d.Library.Extensions)
	for i, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}

	return &Config{
		Library: LibraryConfig{
			Root:                os.Getenv("LIBRARY_ROOT"),
			Extensions:          exts,
			SourceFolders:       envList("SOURCE_FOLDERS", d.Library.SourceFolders),
			SuggestionThreshold: envFloat("SUGGESTION_THRESHOLD", d.Library.SuggestionThreshold),
		},
		Embedding: EmbeddingConfig{
			URL:         envString("EMBEDDING_URL", d.Embedding.URL),
			Concurrency: envInt("EMBEDDING_CONCURRENCY", d.Embedding.Concurrency),
			Timeout:     time.Duration(envInt("EMBEDDING_TIMEOUT_SECONDS", d.Embedding.TimeoutSeconds)) * time.Second,
			Upload:      envBool("EMBEDDING_UPLOAD", false),
		},
		Cache: CacheConfig{
			Backend: envString("CACHE_BACKEND", d.Cache.Backend),
			Path:    envString("CACHE_PATH", d.Cache.Path),
		},
		Profiles: ProfilesConfig{
			Backend: envString("PROFILE_BACKEND", d.Profiles.Backend),
			Dir:     envString("PROFILES_DIR", d.Profiles.Dir),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           envString("WEB_HOST", "127.0.0.1"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", nil),
		},
	}
}
