package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/config"
	"github.com/optifreight/liboptifreight-go/engine"
)

// passwordEnv supplies the key password when --password is not given.
const passwordEnv = config.EnvPrefix + "_PASSWORD"

// GlobalFlags are the flags shared by every command.
type GlobalFlags struct {
	DataDir  string // data directory (default ~/.optifreight)
	Key      string // signing key name
	Password string // signing key password
	LogLevel string // overrides the configured log level
}

var (
	globalFlags GlobalFlags
	cfg         config.Config
)

var rootCmd = &cobra.Command{
	Use:   "freightctl",
	Short: "OptiFreight trailer tokenization ledger",
	Long: `freightctl drives a local OptiFreight ledger: trailer asset registry,
primary sales, escrowed resale listings and returns pools.

Signing commands take --key, the name of a key in the data directory's key
store. The key password comes from --password, ` + passwordEnv + `, or a
prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(globalFlags.DataDir)
		if err != nil {
			return err
		}
		if globalFlags.LogLevel != "" {
			cfg.LogLevel = globalFlags.LogLevel
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.DataDir, "data-dir", "", "data directory (default: ~/.optifreight)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Key, "key", "k", "", "signing key name")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Password, "password", "", "signing key password (default: $"+passwordEnv+")")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(assetCmd)
	rootCmd.AddCommand(saleCmd)
	rootCmd.AddCommand(marketCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(governanceCmd)
	rootCmd.AddCommand(metricsCmd)
}

// loadConfig reads config.yaml from dataDir, falling back to defaults and
// environment overrides when the file does not exist.
func loadConfig(dataDir string) (config.Config, error) {
	if dataDir == "" {
		dataDir = os.Getenv(config.EnvPrefix + "_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	c, err := config.LoadConfig(config.ConfigPath(dataDir))
	if errors.Is(err, config.ErrConfigNotFound) {
		c, err = config.LoadEnv()
	}
	if err != nil {
		return config.Config{}, err
	}
	c.DataDir = dataDir
	return c, nil
}

// withEngine opens the engine for the duration of fn.
func withEngine(fn func(e *engine.Engine) error) error {
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

// password resolves the key password from the flag, the environment or a
// terminal prompt, in that order.
func password(prompt string) (string, error) {
	if globalFlags.Password != "" {
		return globalFlags.Password, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password: use --password or %s", passwordEnv)
	}
	fmt.Fprint(os.Stderr, prompt+": ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// signingKey loads the key named by --key.
func signingKey(e *engine.Engine) (*auth.Key, error) {
	if globalFlags.Key == "" {
		return nil, errors.New("--key is required")
	}
	pw, err := password("Password for " + globalFlags.Key)
	if err != nil {
		return nil, err
	}
	return e.Keys.Load(globalFlags.Key, pw)
}

// authorize loads the signing key and signs action with it.
func authorize(e *engine.Engine, action string) (auth.Principal, error) {
	k, err := signingKey(e)
	if err != nil {
		return auth.Principal{}, err
	}
	return k.Authorize(action)
}

func parseKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

func parseUint16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	return uint16(n), nil
}

func parseUint64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return n, nil
}

// printJSON writes v to the command's output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
