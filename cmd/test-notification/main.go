package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/garyjia/procurement-approvals/internal/config"
	"github.com/garyjia/procurement-approvals/internal/container"
	"github.com/garyjia/procurement-approvals/pkg/utils"
)

// Sends one message to a provisioned user through every configured channel,
// so channel credentials can be checked without running an approval.

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	tenantID := flag.String("tenant", "", "tenant id (required)")
	userID := flag.String("user", "", "user id to notify (required)")
	message := flag.String("message", "", "message body (default: a timestamped test message)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *tenantID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: test-notification -tenant TENANT -user USER [-message TEXT] [-config PATH]")
		os.Exit(2)
	}

	fmt.Println("=== Notification Channel Test ===")
	fmt.Println()

	fmt.Println("[Step 1] Loading configuration...")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("✓ Channels: %s\n", strings.Join(cfg.Notification.Channels, ", "))
	if cfg.Notification.HasChannel("lark") {
		fmt.Printf("  Lark app: %s\n", maskSecret(cfg.Notification.Lark.AppID))
	}
	if cfg.Notification.HasChannel("ses") {
		fmt.Printf("  SES sender: %s\n", cfg.Notification.SES.FromEmail)
	}

	logger := utils.NewCLILogger(*verbose)
	defer logger.Sync()

	ccfg := cfg.ToContainerConfig()
	ccfg.Worker.DocumentRetryEnabled = false

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("\n[Step 2] Starting services...")
	app, err := container.NewContainer(ccfg, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start container: %v", err)
	}
	defer app.Close()
	fmt.Printf("✓ %d notifier(s) ready\n", len(app.Notifiers()))

	body := *message
	if body == "" {
		body = fmt.Sprintf("Test notification from the procurement approval service at %s", time.Now().Format(time.RFC3339))
	}

	fmt.Printf("\n[Step 3] Notifying user %s in tenant %s...\n", *userID, *tenantID)
	err = app.Services().Notification.NotifyUser(ctx, *tenantID, *userID, "Procurement notification test", body)
	if err != nil {
		fmt.Printf("✗ Notification failed: %v\n", err)
		app.Close()
		os.Exit(1)
	}
	fmt.Println("✓ Notification sent")
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
