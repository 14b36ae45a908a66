package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	registryURL string
	cfgFile     string
	token       string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sdar",
	Short: "Stacks Decentralized Asset Registry CLI",
	Long: `sdar is the command-line interface for the asset registry.

It submits spreadsheet audits, looks up recorded asset digests, and
verifies live data against the on-ledger record.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.sdar")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if registryURL == "" {
			registryURL = viper.GetString("registry_url")
		}
		if registryURL == "" {
			registryURL = "http://localhost:8080"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sdar/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&registryURL, "registry", "", "registry URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator bearer token (or token in config)")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client with the resolved registry URL and token.
func newClient() *client.Client {
	opts := []client.Option{}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(registryURL, opts...)
}

// friendlyErr rewrites well-known registry error kinds into actionable text.
func friendlyErr(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Kind {
	case "already_recorded":
		return fmt.Errorf("asset already recorded — records are write-once; use 'sdar verify' to compare against the existing record")
	case "insufficient_data":
		return fmt.Errorf("the range holds no data rows below the header; records need at least one data row")
	case "ledger_transport":
		return fmt.Errorf("the ledger did not answer — the record may or may not exist.\nRun 'sdar get <asset-id>' before retrying: %w", apiErr)
	}
	return apiErr
}

// ── audit ────────────────────────────────────────────────────────────────────

var (
	auditSpreadsheet string
	auditRange       string
)

var auditCmd = &cobra.Command{
	Use:   "audit <asset-id>",
	Short: "Snapshot a spreadsheet range and record its digest on the ledger",
	Long: `audit reads the given spreadsheet range, canonicalizes it (header row
excluded), and records the SHA-256 digest under the asset ID. Records are
write-once: a second audit of the same asset ID is rejected.

  sdar audit invoice-2026-q3 --spreadsheet 1BxiMVs0XRA5 --range "Invoices!A1:F40"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().AuditAsset(context.Background(), &client.AuditRequest{
			AssetID:       args[0],
			SpreadsheetID: auditSpreadsheet,
			Range:         auditRange,
		})
		if err != nil {
			return friendlyErr(err)
		}

		fmt.Printf("✓ Asset recorded\n\n")
		fmt.Printf("  Asset:  %s\n", res.AssetID)
		fmt.Printf("  Digest: %s\n", res.Digest)
		fmt.Printf("  TxID:   %s\n", res.TxID)
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditSpreadsheet, "spreadsheet", "", "Spreadsheet ID to snapshot")
	auditCmd.Flags().StringVar(&auditRange, "range", "", "A1-notation range including the header row")

	_ = auditCmd.MarkFlagRequired("spreadsheet")
	_ = auditCmd.MarkFlagRequired("range")
}

// ── get ──────────────────────────────────────────────────────────────────────

var getFormat string

var getCmd = &cobra.Command{
	Use:   "get <asset-id>",
	Short: "Look up the recorded digest for an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newClient().GetAsset(context.Background(), args[0])
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Kind == "no_record" {
				return fmt.Errorf("no record for asset %q", args[0])
			}
			return err
		}

		if getFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		fmt.Printf("Asset:       %s\n", rec.AssetID)
		fmt.Printf("Digest:      %s\n", rec.DataHash)
		fmt.Printf("Recorded at: block %d\n", rec.RecordedAt)
		fmt.Printf("Recorded by: %s\n", rec.RecordedBy)
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getFormat, "format", "text", "Output format: text or json")
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyDigest      string
	verifySpreadsheet string
	verifyRange       string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <asset-id>",
	Short: "Verify a digest or live spreadsheet data against the record",
	Long: `verify compares either a locally computed digest (--digest) or a fresh
snapshot of live data (--spreadsheet/--range) against the on-ledger record.

  sdar verify invoice-2026-q3 --digest 9f86d081884c7d65...
  sdar verify invoice-2026-q3 --spreadsheet 1BxiMVs0XRA5 --range "Invoices!A1:F40"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		assetID := args[0]
		c := newClient()
		ctx := context.Background()

		var res *client.VerifyResult
		var err error
		switch {
		case verifyDigest != "" && verifySpreadsheet == "":
			res, err = c.VerifyDigest(ctx, assetID, verifyDigest)
		case verifyDigest == "" && verifySpreadsheet != "":
			res, err = c.VerifyRange(ctx, assetID, verifySpreadsheet, verifyRange)
		default:
			return fmt.Errorf("provide exactly one of --digest or --spreadsheet/--range")
		}
		if err != nil {
			return friendlyErr(err)
		}

		switch res.Outcome {
		case "match":
			fmt.Printf("✓ MATCH — data is unchanged since it was recorded\n\n")
		case "mismatch":
			fmt.Printf("✗ MISMATCH — data differs from the recorded digest\n\n")
		case "no_record":
			fmt.Printf("? NO RECORD — asset %q has never been recorded\n", assetID)
			return nil
		}

		fmt.Printf("  Asset:    %s\n", res.AssetID)
		if res.ComputedDigest != "" {
			fmt.Printf("  Computed: %s\n", res.ComputedDigest)
		}
		if res.RecordedDigest != "" {
			fmt.Printf("  Recorded: %s (block %d, by %s)\n", res.RecordedDigest, res.RecordedAt, res.RecordedBy)
		}
		if res.Outcome == "mismatch" {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDigest, "digest", "", "Hex SHA-256 digest to compare")
	verifyCmd.Flags().StringVar(&verifySpreadsheet, "spreadsheet", "", "Spreadsheet ID to re-snapshot")
	verifyCmd.Flags().StringVar(&verifyRange, "range", "", "A1-notation range including the header row")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sdar CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sdar %s\n", version)
	},
}
