// Package config carica la configurazione YAML degli strumenti a riga di
// comando e del server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configurazione del server HTTP
type ServerConfig struct {
	Port       int  `yaml:"port" validate:"min=1,max=65535"`
	EnableCORS bool `yaml:"cors"`
	Debug      bool `yaml:"debug"`
}

// FormatsConfig cartelle da cui caricare i format.js
type FormatsConfig struct {
	Dirs []string `yaml:"dirs" validate:"dive,required"`
}

// CompileConfig valori di default per la compilazione
type CompileConfig struct {
	Format  string `yaml:"format"`
	Target  string `yaml:"target" validate:"omitempty,oneof=html twine2 twine1 twee json archive"`
	WorkDir string `yaml:"work_dir"`
}

// WatchConfig configurazione del file watcher
type WatchConfig struct {
	Paths       []string      `yaml:"paths" validate:"dive,required"`
	Debounce    time.Duration `yaml:"debounce" validate:"min=0"`
	AutoCompile bool          `yaml:"auto_compile"`
}

// Config è la configurazione completa
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Formats FormatsConfig `yaml:"formats"`
	Compile CompileConfig `yaml:"compile"`
	Watch   WatchConfig   `yaml:"watch"`
}

// Default restituisce la configurazione usata senza file
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, EnableCORS: true},
		Logging: LoggingConfig{
			Console: ConsoleLogger{Level: "normal"},
			File:    FileLogger{Level: "none", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		},
		Formats: FormatsConfig{Dirs: []string{"storyformats"}},
		Compile: CompileConfig{Target: "html", WorkDir: "output"},
		Watch:   WatchConfig{Debounce: 500 * time.Millisecond, AutoCompile: true},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate controlla i vincoli dichiarati nei tag
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configurazione non valida: %w", err)
	}
	return nil
}

// Parse legge YAML sopra i valori di default. Le chiavi sconosciute sono errori.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("errore lettura configurazione: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load legge il file; con path vuoto restituisce i default
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("errore apertura configurazione: %w", err)
	}
	return Parse(data)
}

// Dump serializza la configurazione in YAML
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
