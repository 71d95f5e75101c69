package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/veritail/veritail/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3040"

var (
	apiClient *client.Client
	flagURL   string
	flagActor string
	flagFmt   string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("veritail version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("veritail version %s-dev", version)
}

type configFile struct {
	// Flat format
	URL   string `yaml:"url,omitempty"`
	Actor string `yaml:"actor,omitempty"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles,omitempty"`
	ActiveProfile string                   `yaml:"active_profile,omitempty"`
}

type configProfile struct {
	URL   string `yaml:"url"`
	Actor string `yaml:"actor"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "veritail",
		Short:   "Veritail CLI — entity versioning and tamper-evident audit ledger",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagActor != "" {
				opts = append(opts, client.WithActorID(flagActor))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Veritail server URL (env: VERITAIL_URL)")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "Actor recorded against writes (env: VERITAIL_ACTOR)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup
	doctorCmd := newDoctorCmd()
	doctorCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(newEntityCmd())
	rootCmd.AddCommand(newChangesCmd())
	rootCmd.AddCommand(newLedgerCmd())
	rootCmd.AddCommand(newVerifyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagURL == defaultURL {
		if v := os.Getenv("VERITAIL_URL"); v != "" {
			flagURL = v
		}
	}
	if flagActor == "" {
		flagActor = os.Getenv("VERITAIL_ACTOR")
	}

	// Try config file for any remaining defaults.
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfgPath := filepath.Join(home, ".veritail", "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return
	}
	// Resolve from profiles if available, fall back to flat format.
	resolvedURL := cfg.URL
	resolvedActor := cfg.Actor
	if cfg.Profiles != nil {
		profileName := cfg.ActiveProfile
		if profileName == "" {
			profileName = "default"
		}
		if p, ok := cfg.Profiles[profileName]; ok {
			if p.URL != "" {
				resolvedURL = p.URL
			}
			if p.Actor != "" {
				resolvedActor = p.Actor
			}
		}
	}
	if flagURL == defaultURL && resolvedURL != "" {
		flagURL = resolvedURL
	}
	if flagActor == "" && resolvedActor != "" {
		flagActor = resolvedActor
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
