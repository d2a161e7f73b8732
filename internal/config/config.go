package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds everything the portal needs to run: where the platform API
// lives, how cookies are scoped, where client credentials are persisted, and
// which tool this white-label instance fronts.
type Config struct {
	PortalPort int              `yaml:"portalPort"`
	Platform   PlatformConfig   `yaml:"platform"`
	Cookie     CookieConfig     `yaml:"cookie"`
	TokenStore TokenStoreConfig `yaml:"tokenStore"`
	Tool       ToolConfig       `yaml:"tool"`
}

// PlatformConfig points the portal at the platform API.
type PlatformConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	APIKey         string `yaml:"apiKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// CookieConfig scopes the portal's session cookie.
type CookieConfig struct {
	Domain string `yaml:"domain"`
	Secure bool   `yaml:"secure"`
}

// TokenStoreConfig locates the sqlite credentials database.
type TokenStoreConfig struct {
	Path string `yaml:"path"`
}

// ToolConfig identifies the tool this white-label instance fronts.
type ToolConfig struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	NoLoginTool bool   `yaml:"noLoginTool"`
}

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TOOLPORTAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// With an explicit config file viper reports a missing file as a
		// plain *fs.PathError, not ConfigFileNotFoundError.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logrus.Warnf("could not read config file %q, using defaults and environment: %v", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.PortalPort == 0 {
		cfg.PortalPort = 8082
		logrus.Info("portalPort not specified, using default 8082")
	}
	if cfg.Platform.BaseURL == "" {
		cfg.Platform.BaseURL = "https://api.mtp.tools"
		logrus.Info("platform.baseUrl not specified, using default https://api.mtp.tools")
	}
	if cfg.Platform.TimeoutSeconds == 0 {
		cfg.Platform.TimeoutSeconds = 30
	}
	if cfg.TokenStore.Path == "" {
		cfg.TokenStore.Path = "/data/toolportal.db"
		logrus.Info("tokenStore.path not specified, using default /data/toolportal.db")
	}
	if cfg.Tool.Slug == "" {
		cfg.Tool.Slug = "demo-tool"
	}

	// Only set secure default if it wasn't specified in the config file.
	if !v.IsSet("cookie.secure") {
		env := os.Getenv("TOOLPORTAL_ENV")
		cfg.Cookie.Secure = env == "prod"
		logrus.Infof("cookie.secure not specified, defaulting to %v based on environment", cfg.Cookie.Secure)
	}

	return &cfg, nil
}
