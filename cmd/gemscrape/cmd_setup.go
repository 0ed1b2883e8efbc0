package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/gemscrape/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Gemscrape Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. Agent listen address
		cfg.Agent.Addr = prompt(scanner, "Agent listen address", cfg.Agent.Addr)

		// 2. Output directory for archives
		cfg.OutputDir = prompt(scanner, "Output directory", cfg.OutputDir)

		// 3. Conversations per batch
		batchStr := prompt(scanner, "Conversations per batch", strconv.Itoa(cfg.Scrape.BatchSize))
		if n, err := strconv.Atoi(batchStr); err == nil && n > 0 {
			cfg.Scrape.BatchSize = n
		}

		// 4. Export schedule (optional)
		cfg.Schedule = prompt(scanner, "Export cron schedule (optional)", cfg.Schedule)

		// 5. Telegram bot token (optional)
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		// 6. Telegram chat ID (optional)
		chatStr := prompt(scanner, "Telegram chat ID (optional)", strconv.FormatInt(cfg.Telegram.ChatID, 10))
		if id, err := strconv.ParseInt(chatStr, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
