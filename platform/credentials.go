package platform

import (
	"os"

	"github.com/publora/publora/config"
)

// FileCredentialStore treats a readable, non-empty token file as proof of
// authentication. Token acquisition and refresh live outside this system.
type FileCredentialStore struct {
	platforms map[string]config.PlatformConfig
}

// NewFileCredentialStore creates a credential store over the configured platforms
func NewFileCredentialStore(platforms map[string]config.PlatformConfig) *FileCredentialStore {
	return &FileCredentialStore{platforms: platforms}
}

// IsAuthenticated reports whether the platform's token file exists and is non-empty
func (c *FileCredentialStore) IsAuthenticated(platform string) bool {
	cfg, ok := c.platforms[platform]
	if !ok || cfg.TokenFile == "" {
		return false
	}

	info, err := os.Stat(cfg.TokenFile)
	return err == nil && info.Size() > 0
}
