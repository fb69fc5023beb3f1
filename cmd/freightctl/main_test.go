package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optifreight/liboptifreight-go/config"
	"github.com/optifreight/liboptifreight-go/registry"
	"github.com/optifreight/liboptifreight-go/sale"
)

var platform = solana.PublicKey{0xFE}

// run executes freightctl against dataDir and returns its standard output.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	globalFlags = GlobalFlags{}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--data-dir", dataDir, "--password", "pw", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := run(t, dataDir, args...)
	require.NoError(t, err, "freightctl %s", strings.Join(args, " "))
	return out
}

func newAccount(t *testing.T, dataDir, name string) string {
	t.Helper()
	return strings.TrimSpace(mustRun(t, dataDir, "key", "new", name))
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func TestInit_WritesConfig(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "init", "--platform", platform.String())
	assert.Equal(t, config.ConfigPath(dir), strings.TrimSpace(out))

	cfg, err := config.LoadConfig(config.ConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, platform.String(), cfg.Platform)

	_, err = run(t, dir, "init")
	assert.ErrorContains(t, err, "exists")
}

func TestInit_RejectsInvalidPlatform(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "init", "--platform", "not-base58!")
	assert.ErrorIs(t, err, config.ErrInvalidPlatform)
	_, statErr := os.Stat(config.ConfigPath(dir))
	assert.True(t, os.IsNotExist(statErr))
}

// ---------------------------------------------------------------------------
// Keys and accounts
// ---------------------------------------------------------------------------

func TestKeys(t *testing.T) {
	dir := t.TempDir()
	addr := newAccount(t, dir, "alice")
	_, err := solana.PublicKeyFromBase58(addr)
	require.NoError(t, err)

	assert.Equal(t, addr, strings.TrimSpace(mustRun(t, dir, "key", "show", "alice")))
	assert.Equal(t, "alice\n", mustRun(t, dir, "key", "list"))

	_, err = run(t, dir, "key", "new", "alice")
	assert.Error(t, err)
}

func TestFundAndBalance(t *testing.T) {
	dir := t.TempDir()
	addr := newAccount(t, dir, "alice")

	mustRun(t, dir, "fund", addr, "1000")
	mustRun(t, dir, "fund", addr, "500")
	assert.Equal(t, "1500\n", mustRun(t, dir, "balance", addr))

	_, err := run(t, dir, "fund", "bogus", "1")
	assert.ErrorContains(t, err, "invalid address")
	_, err = run(t, dir, "fund", addr, "lots")
	assert.ErrorContains(t, err, "invalid amount")
}

func TestSigningRequiresKey(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "pool", "init", "17")
	assert.ErrorContains(t, err, "--key is required")
}

// ---------------------------------------------------------------------------
// Primary sale end to end
// ---------------------------------------------------------------------------

func TestPrimarySale(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init", "--platform", platform.String())
	issuer := newAccount(t, dir, "issuer")
	buyer := newAccount(t, dir, "buyer")

	var asset registry.TrailerAsset
	out := mustRun(t, dir, "--key", "issuer", "asset", "create",
		"--name", "Reefer 53", "--symbol", "RF53", "--total-tokens", "1000",
		"--token-price", "120000000", "--apy", "17", "--term", "5")
	require.NoError(t, json.Unmarshal([]byte(out), &asset))
	assert.Equal(t, issuer, asset.Authority.String())

	var s sale.Sale
	out = mustRun(t, dir, "--key", "issuer", "sale", "init", asset.Mint.String())
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.EqualValues(t, 1000, s.Total)

	mustRun(t, dir, "fund", buyer, "1000000000")
	var rcpt sale.Receipt
	out = mustRun(t, dir, "--key", "buyer", "sale", "buy", s.Address.String(), "2")
	require.NoError(t, json.Unmarshal([]byte(out), &rcpt))
	assert.EqualValues(t, 240_000_000, rcpt.BaseCost)
	assert.EqualValues(t, 7_200_000, rcpt.Fee)

	assert.Equal(t, "752800000\n", mustRun(t, dir, "balance", buyer))
	assert.Equal(t, "240000000\n", mustRun(t, dir, "balance", issuer))
	assert.Equal(t, "7200000\n", mustRun(t, dir, "balance", platform.String()))

	// only the issuer may close the sale
	_, err := run(t, dir, "--key", "buyer", "sale", "close", s.Address.String())
	assert.Error(t, err)
	mustRun(t, dir, "--key", "issuer", "sale", "close", s.Address.String())
}
