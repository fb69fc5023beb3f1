package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/protocol"
	"github.com/optifreight/liboptifreight-go/service"
)

func TestInitialize(t *testing.T) {
	d := derive.New(derive.DefaultProgramID)
	clock := protocol.NewFixedClock(1_700_000_000)
	g := New(&service.Env{
		Ledger: ledger.NewMemLedger(d, clock),
		Derive: d,
		Params: protocol.DefaultParams(),
		Clock:  clock,
	})
	ctx := context.Background()

	_, err := g.Get(ctx)
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)

	k, err := auth.NewKey()
	require.NoError(t, err)
	p, err := k.Authorize(ActionInit)
	require.NoError(t, err)

	st, err := g.Initialize(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, d.Governance(), st.Address)
	assert.Equal(t, k.Address(), st.Authority)
	assert.Equal(t, int64(1_700_000_000), st.InitializedAt)

	got, err := g.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	_, err = g.Initialize(ctx, p)
	assert.ErrorIs(t, err, protocol.ErrAlreadyInitialized)

	_, err = g.Initialize(ctx, auth.Principal{})
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}
