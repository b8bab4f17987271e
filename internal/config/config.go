package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

type WatcherConfig struct {
	Enabled        bool
	DebounceWindow time.Duration
	IgnorePatterns []string
}

type Config struct {
	ProjectID     string
	WorkspacePath string
	ProjectsDir   string
	DataDir       string
	SocketPath    string
	LogLevel      string
	Cache         CacheConfig
	Watcher       WatcherConfig
}

// Load builds the configuration for one project. One server process owns
// one project's data directory; the socket path is derived from the
// project identifier so concurrent projects never collide.
func Load(projectID, workspacePath string) *Config {
	homeDir, _ := os.UserHomeDir()
	projectsDir := filepath.Join(homeDir, ".membank", "projects")

	return &Config{
		ProjectID:     projectID,
		WorkspacePath: workspacePath,
		ProjectsDir:   projectsDir,
		DataDir:       filepath.Join(projectsDir, projectID),
		SocketPath:    SocketPath(projectID),
		LogLevel:      "info",
		Cache: CacheConfig{
			MaxEntries: 10000,
			TTL:        time.Hour,
		},
		Watcher: WatcherConfig{
			Enabled:        true,
			DebounceWindow: time.Second,
			IgnorePatterns: []string{
				"**/.git/**",
				"**/node_modules/**",
				"**/dist/**",
			},
		},
	}
}

// SocketPath derives the unix socket path for a project id. The id is
// hashed so arbitrary project names stay within socket path limits.
func SocketPath(projectID string) string {
	homeDir, _ := os.UserHomeDir()
	sum := sha256.Sum256([]byte(projectID))
	name := fmt.Sprintf("membank-%x.sock", sum[:8])
	return filepath.Join(homeDir, ".membank", name)
}

func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.DataDir, 0700)
}
