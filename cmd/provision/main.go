// Command provision applies a tenant setup file: tenant, users, cost centers,
// catalog products and approval workflow templates. Re-running it with the
// same file is a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-approvals/internal/application/service"
	"github.com/garyjia/procurement-approvals/internal/config"
	"github.com/garyjia/procurement-approvals/internal/container"
	"github.com/garyjia/procurement-approvals/pkg/utils"
)

func main() {
	file := flag.String("file", "", "tenant setup YAML to apply (required)")
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: provision -file tenant.yaml [-config configs/config.yaml]")
		os.Exit(2)
	}

	if err := run(*file, *configPath, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "provision failed: %v\n", err)
		os.Exit(1)
	}
}

func run(file, configPath string, verbose bool) error {
	setup, err := loadSetup(file)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := utils.NewCLILogger(verbose)
	defer logger.Sync()

	ccfg := cfg.ToContainerConfig()
	ccfg.Worker.DocumentRetryEnabled = false

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app, err := container.NewContainer(ccfg, logger)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	report, err := app.Services().Provisioning.ProvisionTenant(ctx, *setup)
	if err != nil {
		return err
	}

	fmt.Printf("Provisioned tenant %s: %d users, %d cost centers, %d products, %d workflows\n",
		report.TenantID, report.Users, report.CostCenters, report.Products, report.Workflows)
	return nil
}

func loadSetup(path string) (*service.TenantSetup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read setup file: %w", err)
	}
	var setup service.TenantSetup
	if err := yaml.Unmarshal(data, &setup); err != nil {
		return nil, fmt.Errorf("failed to parse setup file %s: %w", path, err)
	}
	return &setup, nil
}
