package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenledger/verifier/internal/agent"
	"github.com/greenledger/verifier/internal/cache"
	"github.com/greenledger/verifier/internal/config"
	"github.com/greenledger/verifier/internal/qrcode"
)

var (
	cfgFile string
	cfg     *config.AgentConfig
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "greenledger-agent",
		Short: "GreenLedger field agent - scan and verify crop batches",
		Long:  `A field agent for the GreenLedger network that encodes, decodes and verifies crop batch QR codes, with an offline cache of recent verifications.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./agent.toml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(encodeCmd())
	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if cfgFile == "" {
		cfgFile = "agent.toml"
	}

	var err error
	cfg, err = config.LoadAgent(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new field agent",
		Long:  `Initialize a new field agent by registering a scanner device with the verifier API.`,
		RunE:  runInit,
	}

	cmd.Flags().String("name", "", "Agent name (required)")
	cmd.Flags().String("server-url", "http://localhost:8080", "Verifier API URL")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	serverURL, _ := cmd.Flags().GetString("server-url")

	cfg = config.DefaultAgentConfig()
	cfg.Agent.Name = name
	cfg.Server.URL = serverURL

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	client := agent.NewClient(cfg)
	regResp, err := client.RegisterDevice(name)
	if err != nil {
		return fmt.Errorf("failed to register with verifier: %w", err)
	}

	cfg.Agent.DeviceID = regResp.DeviceID
	cfg.Agent.APIKey = regResp.APIKey

	configPath := "agent.toml"
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Field agent initialized successfully!\n")
	fmt.Printf("Device ID: %s\n", regResp.DeviceID)
	fmt.Printf("API Key: %s\n", regResp.APIKey)
	fmt.Printf("Config saved to: %s\n", configPath)

	return nil
}

func encodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <token-id>",
		Short: "Generate the QR payload for a token id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := qrcode.GeneratePayload(args[0])
			fmt.Println(qrcode.EncodePayload(payload))
			return nil
		},
	}
}

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <data>",
		Short: "Decode scanned QR content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := qrcode.DecodeQR(args[0])
			if payload == nil {
				return fmt.Errorf("not a valid greenledger code")
			}
			if !qrcode.ValidatePayload(payload) {
				fmt.Fprintln(os.Stderr, "warning: checksum does not match token id")
			}

			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <qr-or-token-id>",
		Short: "Verify a crop batch",
		Long:  `Verify a crop batch by QR content or raw token id. Falls back to the offline cache when the verifier API is unreachable.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	tokenID := args[0]
	if payload := qrcode.DecodeQR(args[0]); payload != nil {
		if !qrcode.ValidatePayload(payload) {
			return fmt.Errorf("checksum mismatch: code may be tampered")
		}
		tokenID = payload.TokenID
	}

	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		// Verification still works without the cache, it just loses the
		// offline fallback.
		fmt.Fprintf(os.Stderr, "warning: offline cache unavailable: %v\n", err)
		store = nil
	}
	defer store.Close()

	verifier := agent.NewVerifier(
		agent.NewClient(cfg),
		store,
		time.Duration(cfg.Cache.MaxAgeMin)*time.Minute)

	result := verifier.Verify(context.Background(), tokenID)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.IsValid {
		os.Exit(1)
	}
	return nil
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline verification cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached verifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			store, err := cache.Open(cfg.Cache.Path)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer store.Close()

			entries := store.List()
			if len(entries) == 0 {
				fmt.Println("cache is empty")
				return nil
			}

			maxAge := time.Duration(cfg.Cache.MaxAgeMin) * time.Minute
			for _, e := range entries {
				freshness := "stale"
				if cache.IsFresh(&e, maxAge) {
					freshness = "fresh"
				}
				fmt.Printf("%s  valid=%t  cached=%s  %s\n",
					e.TokenID, e.Result.IsValid, e.CachedAt.Format(time.RFC3339), freshness)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove stale cached verifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			store, err := cache.Open(cfg.Cache.Path)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer store.Close()

			removed := store.Prune(time.Duration(cfg.Cache.MaxAgeMin) * time.Minute)
			fmt.Printf("removed %d stale entries\n", removed)
			return nil
		},
	})

	return cmd
}
