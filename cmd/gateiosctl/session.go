package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GateAI-net/gate-ios/attestation"
	"github.com/GateAI-net/gate-ios/authapi"
	"github.com/GateAI-net/gate-ios/devicekey"
	"github.com/GateAI-net/gate-ios/gateiosconfig"
	"github.com/GateAI-net/gate-ios/session"
)

var (
	flagConfigFile       string
	flagBaseURL          string
	flagBundleIdentifier string
	flagTeamIdentifier   string
	flagEnvironment      string
	flagDevToken         string
	flagProvider         string
	flagLogLevel         string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "YAML config file (when set, --dev-token is the only config flag that overrides it)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "auth gateway base URL")
	rootCmd.PersistentFlags().StringVar(&flagBundleIdentifier, "bundle-id", "net.gateai.gate-ios.ctl", "app bundle identifier")
	rootCmd.PersistentFlags().StringVar(&flagTeamIdentifier, "team-id", "", "10-character team identifier")
	rootCmd.PersistentFlags().StringVar(&flagEnvironment, "env", string(gateiosconfig.EnvironmentDevice), "environment: device or simulator")
	rootCmd.PersistentFlags().StringVar(&flagDevToken, "dev-token", "", "development token (simulator only)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "unsupported", "attestation provider: unsupported or tpm")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level")
}

func buildSession() (*session.AuthSession, error) {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing --log-level: %w", err)
	}
	logger := log.Output(os.Stderr).Level(level)

	var cfg *gateiosconfig.Config
	if flagConfigFile != "" {
		cfg, err = gateiosconfig.LoadFile(flagConfigFile)
		if err != nil {
			return nil, err
		}
		if flagDevToken != "" {
			cfg.DevelopmentToken = flagDevToken
		}
	} else {
		cfg = &gateiosconfig.Config{
			BaseURL:          flagBaseURL,
			BundleIdentifier: flagBundleIdentifier,
			TeamIdentifier:   flagTeamIdentifier,
			Environment:      gateiosconfig.Environment(flagEnvironment),
			DevelopmentToken: flagDevToken,
		}
		cfg.WithDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	var provider attestation.Provider
	switch flagProvider {
	case "tpm":
		provider = attestation.NewTPMProvider(cfg.BundleIdentifier, &logger)
	default:
		provider = attestation.Unsupported{}
	}

	keyStore := devicekey.NewKeyringStore(cfg.BundleIdentifier, &logger)
	api := authapi.New(cfg.BaseURL, nil, &logger)

	return session.New(cfg, keyStore, provider, api, &logger), nil
}

func fatal(cmd *cobra.Command, err error) {
	cmd.PrintErrln(err)
	os.Exit(1)
}
