// Package config reads the settings shared by the batch job and the server.
//
// Every setting has a flag and an environment variable; a non-empty
// environment value wins over the flag.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/warp/subscription-engine/factory"
	"github.com/warp/subscription-engine/logging"
)

const (
	DefaultAccounts = "data/accounts.json"
	DefaultOutput   = "output/result.json"
	DefaultAddress  = "localhost:8080"
	DefaultLogLevel = "info"
)

// DefaultPartners is used when no partner file is configured.
var DefaultPartners = PartnerFiles{
	{Name: "Wondertel", Path: "data/wondertel.json"},
	{Name: "Amazecom", Path: "data/amazecom.json"},
}

type Config struct {
	Accounts     string
	Partners     PartnerFiles
	Output       string
	LogLevel     string
	LogFile      string
	DatabasePath string
	Address      string
	Workers      int
}

// envConfig mirrors Config as read from the environment. Partners stays a
// raw string so env does not try to walk factory.PartnerFile as a struct.
type envConfig struct {
	Accounts     string `env:"ACCOUNTS_FILE"`
	Partners     string `env:"PARTNER_FILES"`
	Output       string `env:"OUTPUT_FILE"`
	LogLevel     string `env:"LOG_LEVEL"`
	LogFile      string `env:"LOG_FILE"`
	DatabasePath string `env:"DATABASE_PATH"`
	Address      string `env:"RUN_ADDRESS"`
	Workers      int    `env:"WORKERS"`
}

// PartnerFiles is an ordered list of Name=path pairs. As a flag it is
// repeatable; from the environment it is one comma separated list.
type PartnerFiles []factory.PartnerFile

func (p *PartnerFiles) String() string {
	if p == nil {
		return ""
	}
	parts := make([]string, len(*p))
	for i, pf := range *p {
		parts[i] = pf.String()
	}
	return strings.Join(parts, ",")
}

// Set appends one Name=path pair.
func (p *PartnerFiles) Set(s string) error {
	pf, err := factory.ParsePartnerFile(s)
	if err != nil {
		return err
	}
	*p = append(*p, pf)
	return nil
}

// UnmarshalText replaces the list with a comma separated one.
func (p *PartnerFiles) UnmarshalText(text []byte) error {
	var out PartnerFiles
	for _, item := range strings.Split(string(text), ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		if err := out.Set(item); err != nil {
			return err
		}
	}
	*p = out
	return nil
}

// Parse reads the environment, then args (without the program name).
func Parse(name string, args []string) (*Config, error) {
	envCfg := &envConfig{}
	if err := env.Parse(envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	var envPartners PartnerFiles
	if err := envPartners.UnmarshalText([]byte(envCfg.Partners)); err != nil {
		return nil, fmt.Errorf("parse env PARTNER_FILES: %w", err)
	}

	cfg := &Config{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Accounts, "accounts", DefaultAccounts, "account directory JSON file")
	fs.Var(&cfg.Partners, "partner", "partner data as Name=path, repeat in priority order")
	fs.StringVar(&cfg.Output, "o", DefaultOutput, "report output file")
	fs.StringVar(&cfg.LogLevel, "v", DefaultLogLevel, "log level: "+strings.Join(logging.Levels, "|"))
	fs.StringVar(&cfg.LogLevel, "verbose", DefaultLogLevel, "same as -v")
	fs.StringVar(&cfg.LogFile, "log-file", "", "also append warnings and errors to this file")
	fs.StringVar(&cfg.DatabasePath, "d", "", "SQLite archive path, empty disables archiving")
	fs.StringVar(&cfg.Address, "a", DefaultAddress, "address and port for HTTP server")
	fs.IntVar(&cfg.Workers, "workers", 1, "beneficiaries resolved concurrently")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	overlay(cfg, envCfg)
	if len(envPartners) > 0 {
		cfg.Partners = envPartners
	}

	if len(cfg.Partners) == 0 {
		cfg.Partners = append(PartnerFiles(nil), DefaultPartners...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlay(cfg *Config, envCfg *envConfig) {
	if envCfg.Accounts != "" {
		cfg.Accounts = envCfg.Accounts
	}
	if envCfg.Output != "" {
		cfg.Output = envCfg.Output
	}
	if envCfg.LogLevel != "" {
		cfg.LogLevel = envCfg.LogLevel
	}
	if envCfg.LogFile != "" {
		cfg.LogFile = envCfg.LogFile
	}
	if envCfg.DatabasePath != "" {
		cfg.DatabasePath = envCfg.DatabasePath
	}
	if envCfg.Address != "" {
		cfg.Address = envCfg.Address
	}
	if envCfg.Workers != 0 {
		cfg.Workers = envCfg.Workers
	}
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	seen := make(map[string]bool, len(c.Partners))
	for _, pf := range c.Partners {
		if seen[pf.Name] {
			errs = append(errs, fmt.Errorf("partner %s configured twice", pf.Name))
		}
		seen[pf.Name] = true
	}
	return errors.Join(errs...)
}
