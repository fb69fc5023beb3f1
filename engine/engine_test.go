package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/config"
	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/market"
	"github.com/optifreight/liboptifreight-go/protocol"
	"github.com/optifreight/liboptifreight-go/registry"
	"github.com/optifreight/liboptifreight-go/returns"
	"github.com/optifreight/liboptifreight-go/sale"
	"github.com/optifreight/liboptifreight-go/service"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.LogFile = filepath.Join(cfg.DataDir, "logs", "engine.log")
	cfg.Platform = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	return cfg
}

func sign(t *testing.T, k *auth.Key, action string) auth.Principal {
	t.Helper()
	p, err := k.Authorize(action)
	require.NoError(t, err)
	return p
}

func newKey(t *testing.T) *auth.Key {
	t.Helper()
	k, err := auth.NewKey()
	require.NoError(t, err)
	return k
}

func TestNew_RequiresLedger(t *testing.T) {
	_, err := New(&service.Env{Params: protocol.DefaultParams()})
	assert.ErrorIs(t, err, service.ErrNoLedger)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "loud"
	_, err := Open(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidLogLevel)
}

// TestLifecycle walks one trailer through its primary sale, a resale and a
// distribution on a persistent ledger.
func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	e, err := Open(cfg)
	require.NoError(t, err)

	issuer, investor, reseller := newKey(t), newKey(t), newKey(t)
	mint := solana.PublicKey{0x77}

	_, err = e.Registry.Create(ctx, sign(t, issuer, registry.ActionCreate), registry.CreateParams{
		Mint:        mint,
		Name:        "Trailer VNL-860-07",
		Symbol:      "OPTI7",
		TokenPrice:  120_000_000,
		TotalTokens: 1000,
		APY:         17,
		TermYears:   5,
	})
	require.NoError(t, err)

	s, err := e.Sales.Init(ctx, sign(t, issuer, sale.ActionInit), sale.InitParams{Mint: mint})
	require.NoError(t, err)
	require.NoError(t, e.Fund(ctx, investor.Address(), 2_000_000_000))
	_, err = e.Sales.Buy(ctx, sign(t, investor, sale.ActionBuy), s.Address, 10)
	require.NoError(t, err)

	platform, err := cfg.PlatformKey()
	require.NoError(t, err)
	fee, err := e.Balance(ctx, platform)
	require.NoError(t, err)
	assert.Equal(t, uint64(36_000_000), fee)

	require.NoError(t, e.Registry.IssueUnit(ctx, sign(t, issuer, registry.ActionIssue), mint, investor.Address()))
	l, err := e.Market.List(ctx, sign(t, investor, market.ActionList), market.ListParams{
		Mint:         mint,
		Price:        149_500_000,
		PurchaseDate: e.Env.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, e.Fund(ctx, reseller.Address(), 124_500_000))
	rcpt, err := e.Market.Buy(ctx, sign(t, reseller, market.ActionBuy), l.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(120_765_000), rcpt.Proceeds)

	units, err := e.Units(ctx, reseller.Address(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), units)

	pool, err := e.Returns.InitPool(ctx, sign(t, issuer, returns.ActionInit), 17)
	require.NoError(t, err)
	require.NoError(t, e.Returns.Deposit(ctx, sign(t, issuer, returns.ActionDeposit), pool.Address, 1_000_000))
	_, err = e.Returns.Claim(ctx, sign(t, investor, returns.ActionClaim), pool.Address, 10)
	require.NoError(t, err)

	entries, err := e.Journal(ctx, reseller.Address())
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	require.NoError(t, e.Close())

	// Reopen and confirm state survived.
	e, err = Open(cfg)
	require.NoError(t, err)
	defer e.Close()

	got, err := e.Market.Get(ctx, l.Address)
	require.NoError(t, err)
	assert.Equal(t, market.StatusSold, got.Status)
	bal, err := e.Returns.Balance(ctx, pool.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), bal)
}

func TestMetricsHandler(t *testing.T) {
	ctx := context.Background()
	e, err := Open(testConfig(t))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Fund(ctx, solana.PublicKey{0x01}, 5))

	srv := httptest.NewServer(e.MetricsHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `optifreight_operations_total{op="engine.fund",result="ok"} 1`)
}

func TestOpen_FailureFlushesLog(t *testing.T) {
	tests := []struct {
		name  string
		block func(t *testing.T, dataDir string)
	}{
		{"keystore", func(t *testing.T, dataDir string) {
			require.NoError(t, os.WriteFile(KeysDir(dataDir), []byte("not a directory"), 0600))
		}},
		{"ledger", func(t *testing.T, dataDir string) {
			require.NoError(t, os.MkdirAll(LedgerPath(dataDir), 0700))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.LogFile = filepath.Join(t.TempDir(), "engine.log")
			tt.block(t, cfg.DataDir)

			e, err := Open(cfg)
			require.Error(t, err)
			assert.Nil(t, e)

			data, err := os.ReadFile(cfg.LogFile)
			require.NoError(t, err)
			assert.Contains(t, string(data), "engine open failed")
		})
	}
}

func TestNew_MemLedger(t *testing.T) {
	d := derive.New(derive.DefaultProgramID)
	e, err := New(&service.Env{
		Ledger: ledger.NewMemLedger(d, protocol.NewFixedClock(0)),
		Derive: d,
		Params: protocol.DefaultParams(),
	})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Fund(ctx, solana.PublicKey{0x02}, 42))
	bal, err := e.Balance(ctx, solana.PublicKey{0x02})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), bal)

	units, err := e.Units(ctx, solana.PublicKey{0x02}, solana.PublicKey{0x03})
	require.NoError(t, err)
	assert.Zero(t, units)
}
