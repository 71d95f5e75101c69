package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, database, and the ledger chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor() error {
	fmt.Println("\nVeritail Doctor")
	fmt.Println("===============")

	var results []checkResult

	// 1. Config file.
	cfgPath, cfg, cfgErr := doctorLoadConfig()
	if cfgErr != nil {
		results = append(results, checkResult{
			Name: "Config file", Passed: false,
			Detail: cfgPath,
			Hint:   "Run: veritail init",
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	// Resolve URL and actor from flags, env, config (same priority as resolveConfig).
	url, actor := doctorResolveSettings(cfg)

	// 2. Server URL.
	if url == "" {
		results = append(results, checkResult{
			Name: "Server URL", Passed: false,
			Hint: "Set --url, VERITAIL_URL, or run veritail init",
		})
	} else {
		results = append(results, checkResult{
			Name: "Server URL", Passed: true, Detail: url,
		})
	}

	// 3. Actor (info only; writes fall back to anonymous without one).
	if actor == "" {
		results = append(results, checkResult{
			Name: "Actor", Passed: true, Detail: "not set (writes are recorded without an actor)",
		})
	} else {
		results = append(results, checkResult{
			Name: "Actor", Passed: true, Detail: actor,
		})
	}

	// 4. Server reachable, database, ledger chain.
	if url != "" {
		health, err := doctorCheckHealth(url)
		if err != nil {
			results = append(results, checkResult{
				Name: "Server reachable", Passed: false,
				Detail: url,
				Hint:   fmt.Sprintf("Is the Veritail server running? Try: systemctl status veritaild\n   Error: %v", err),
			})
		} else {
			detail := url
			if health.Version != "" {
				detail = fmt.Sprintf("v%s", health.Version)
			}
			results = append(results, checkResult{
				Name: "Server reachable", Passed: true, Detail: detail,
			})

			if health.Database == "connected" {
				results = append(results, checkResult{
					Name: "Database", Passed: true, Detail: "connected",
				})
			} else {
				results = append(results, checkResult{
					Name: "Database", Passed: false,
					Detail: health.Database,
					Hint:   "Check the server's DATABASE_URL and Postgres availability",
				})
			}

			switch {
			case health.LedgerValid == nil:
				results = append(results, checkResult{
					Name: "Ledger chain", Passed: true,
					Detail: "not yet verified (run: veritail verify run)",
				})
			case *health.LedgerValid:
				results = append(results, checkResult{
					Name: "Ledger chain", Passed: true, Detail: "last verification valid",
				})
			default:
				results = append(results, checkResult{
					Name: "Ledger chain", Passed: false,
					Detail: "last verification found broken links",
					Hint:   "Run: veritail verify run  to list the affected entries",
				})
			}
		}
	}

	// Print results.
	fmt.Println()
	allPassed := true
	for _, r := range results {
		if r.Passed {
			if r.Detail != "" {
				fmt.Printf("✅ %s: %s\n", r.Name, r.Detail)
			} else {
				fmt.Printf("✅ %s\n", r.Name)
			}
		} else {
			allPassed = false
			if r.Detail != "" {
				fmt.Printf("❌ %s: %s\n", r.Name, r.Detail)
			} else {
				fmt.Printf("❌ %s\n", r.Name)
			}
			if r.Hint != "" {
				fmt.Printf("   Hint: %s\n", r.Hint)
			}
		}
	}

	fmt.Println()
	if allPassed {
		fmt.Println("✅ All checks passed!")
	} else {
		fmt.Println("❌ Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}

	return nil
}

func doctorLoadConfig() (string, *configFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil, err
	}
	cfgPath := filepath.Join(home, ".veritail", "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfgPath, nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfgPath, nil, err
	}
	return cfgPath, &cfg, nil
}

func doctorResolveSettings(cfg *configFile) (url, actor string) {
	// Flags first (use the global flag values).
	url = flagURL
	actor = flagActor

	// Env overrides defaults.
	if url == defaultURL {
		if v := os.Getenv("VERITAIL_URL"); v != "" {
			url = v
		}
	}
	if actor == "" {
		actor = os.Getenv("VERITAIL_ACTOR")
	}

	// Config file fills remaining gaps.
	if cfg != nil {
		cfgURL := cfg.URL
		cfgActor := cfg.Actor
		profile := cfg.ActiveProfile
		if profile == "" {
			profile = "default"
		}
		if p, ok := cfg.Profiles[profile]; ok {
			if p.URL != "" {
				cfgURL = p.URL
			}
			if p.Actor != "" {
				cfgActor = p.Actor
			}
		}
		if url == defaultURL && cfgURL != "" {
			url = cfgURL
		}
		if actor == "" {
			actor = cfgActor
		}
	}

	return url, actor
}

type doctorHealth struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Database    string `json:"database"`
	LedgerValid *bool  `json:"ledger_valid"`
}

func doctorCheckHealth(url string) (*doctorHealth, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/v1/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var health doctorHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}
