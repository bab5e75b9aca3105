// Package config loads the wallet builder configuration.
//
// Configuration comes from one YAML file named by the --config flag or the
// XDAO_WALLET_CONFIG environment variable. Without either, Default applies.
// Unknown keys are rejected so typos fail loudly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"xdao.co/wallet/storage/casconfig"
)

// EnvVar names the environment variable consulted when no path is given.
const EnvVar = "XDAO_WALLET_CONFIG"

type Config struct {
	// Domain is the vault domain all capability keys are issued in.
	Domain string `yaml:"domain"`

	// Templates is the directory holding the wallet and app templates.
	Templates string `yaml:"templates"`

	Layout Layout `yaml:"layout"`

	// Environment is written into every new wallet as EnvironmentFile.
	Environment map[string]any `yaml:"environment"`

	// StrictLandingApp makes a failed landing-app marker write fail the build.
	StrictLandingApp bool `yaml:"strict_landing_app"`

	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
}

// Layout names every folder and file the builder relies on.
type Layout struct {
	// WalletTemplateFolder holds the wallet template; TypeFile inside it
	// records the wallet type capability.
	WalletTemplateFolder string `yaml:"wallet_template_folder"`
	// AppsFolder holds one template per app plus RegistryFile.
	AppsFolder   string `yaml:"apps_folder"`
	RegistryFile string `yaml:"registry_file"`

	CodeFolder string `yaml:"code_folder"`
	AppFolder  string `yaml:"app_folder"`
	InitFile   string `yaml:"init_file"`

	TypeFile string `yaml:"type_file"`
	// SeedFile is dropped from the wallet template on rebuild.
	SeedFile string `yaml:"seed_file"`

	LandingAppFile  string `yaml:"landing_app_file"`
	EnvironmentFile string `yaml:"environment_file"`
	AppsMountDir    string `yaml:"apps_mount_dir"`
}

// Storage selects the block store, head store and blob compression.
type Storage struct {
	casconfig.Config `yaml:",inline"`

	// HeadsDir holds unit heads. Empty keeps heads in memory.
	HeadsDir string `yaml:"heads_dir"`
	// Compression is one of none, zstd, lz4.
	Compression string `yaml:"compression"`
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
	// File, when set, also receives JSON records.
	File string `yaml:"file"`
	// Journal also sends records to the systemd journal.
	Journal bool `yaml:"journal"`
}

// Default returns the conventional layout with a local block store.
func Default() *Config {
	return &Config{
		Domain:    "vault",
		Templates: ".",
		Layout: Layout{
			WalletTemplateFolder: "wallet-patch",
			AppsFolder:           "apps-patch",
			RegistryFile:         "apps.json",
			CodeFolder:           "code",
			AppFolder:            "app",
			InitFile:             "initialization.js",
			TypeFile:             "seed",
			SeedFile:             "seed",
			LandingAppFile:       "/apps-patch/.landingApp",
			EnvironmentFile:      "/environment.json",
			AppsMountDir:         "/apps",
		},
		Environment: map[string]any{"domain": "vault"},
		Storage: Storage{
			Config: casconfig.Config{
				Backends: []casconfig.BackendConfig{
					{Name: "localfs", Config: map[string]string{"localfs-dir": "${HOME}/.xdao-wallet/cas"}},
				},
			},
			HeadsDir:    "${HOME}/.xdao-wallet/heads",
			Compression: "zstd",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads the file at path, or at $XDAO_WALLET_CONFIG when path is empty.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

func (c *Config) expandVariables() {
	c.Templates = expandVars(c.Templates)
	c.Storage.HeadsDir = expandVars(c.Storage.HeadsDir)
	c.Log.File = expandVars(c.Log.File)
	for i := range c.Storage.Backends {
		for k, v := range c.Storage.Backends[i].Config {
			c.Storage.Backends[i].Config[k] = expandVars(v)
		}
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Domain == "" {
		errs = append(errs, errors.New("domain is required"))
	}
	required := []struct{ name, value string }{
		{"layout.code_folder", c.Layout.CodeFolder},
		{"layout.wallet_template_folder", c.Layout.WalletTemplateFolder},
		{"layout.app_folder", c.Layout.AppFolder},
		{"layout.apps_folder", c.Layout.AppsFolder},
		{"layout.registry_file", c.Layout.RegistryFile},
		{"layout.type_file", c.Layout.TypeFile},
		{"layout.init_file", c.Layout.InitFile},
		{"layout.environment_file", c.Layout.EnvironmentFile},
		{"layout.landing_app_file", c.Layout.LandingAppFile},
		{"layout.apps_mount_dir", c.Layout.AppsMountDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	switch c.Storage.Compression {
	case "", "none", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Errorf("storage.compression must be one of: none, zstd, lz4"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json"))
	}
	if err := c.Storage.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
