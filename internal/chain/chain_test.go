package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldFromString(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{name: "integer", in: "5123456789", want: "5123456789"},
		{name: "padded", in: " 42 ", want: "42"},
		{name: "zero", in: "0", want: "0"},
		{name: "decimal point", in: "1.5", wantErr: "invalid field element"},
		{name: "negative", in: "-1", wantErr: "non-negative"},
		{name: "modulus", in: Modulus.String(), wantErr: "exceeds modulus"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := FieldFromString(tc.in)
			if tc.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, f.String())
			assert.Equal(t, "Field("+tc.want+")", f.GoString())
		})
	}
}

func TestFieldZeroValue(t *testing.T) {
	var f Field
	assert.True(t, f.IsZero())
	assert.Equal(t, "0", f.String())
	assert.True(t, f.Equal(FieldFromUint64(0)))
	assert.False(t, f.Equal(FieldFromUint64(1)))
}

func TestBase58Check(t *testing.T) {
	payload := append([]byte{0x01}, make([]byte, 33)...)
	encoded := EncodeBase58Check(VersionPublicKey, payload)

	decoded, err := DecodeBase58Check(encoded, VersionPublicKey)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	_, err = DecodeBase58Check(encoded, VersionSignature)
	assert.ErrorContains(t, err, "unexpected version byte")

	tampered := []byte(encoded)
	if tampered[5] == '2' {
		tampered[5] = '3'
	} else {
		tampered[5] = '2'
	}
	_, err = DecodeBase58Check(string(tampered), VersionPublicKey)
	assert.Error(t, err)

	_, err = DecodeBase58Check("0OIl", VersionPublicKey)
	assert.ErrorContains(t, err, "invalid base58")
}

func newTestChain(t *testing.T) (*Local, TestAccount, *keys.PrivateKey) {
	t.Helper()
	l, err := NewLocal(Options{Accounts: 2})
	require.NoError(t, err)
	zkKey, err := keys.NewPrivateKey()
	require.NoError(t, err)
	return l, l.TestAccounts[0], zkKey
}

func deploy(t *testing.T, l *Local, payer TestAccount, zkKey *keys.PrivateKey) string {
	t.Helper()
	addr := zkKey.PublicKey().Address()
	tx, err := l.Transaction(payer.Address, func(tx *Tx) error {
		tx.FundNewAccount()
		_, err := tx.Deploy(addr)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, tx.Prove())
	_, err = tx.Sign(zkKey, payer.Key).Send(context.Background())
	require.NoError(t, err)
	return addr
}

func TestNewLocalDefaults(t *testing.T) {
	l, err := NewLocal(Options{})
	require.NoError(t, err)
	assert.Len(t, l.TestAccounts, 10)
	assert.False(t, l.ProofsEnabled())

	want := new(big.Int).Mul(big.NewInt(1000), OneMina)
	for _, acc := range l.TestAccounts {
		assert.Equal(t, want, l.Balance(acc.Address))
	}
}

func TestDeployAndCall(t *testing.T) {
	l, payer, zkKey := newTestChain(t)
	before := l.Balance(payer.Address)
	addr := deploy(t, l, payer, zkKey)

	acc, ok := l.Account(addr)
	require.True(t, ok)
	assert.True(t, acc.ZkApp)

	wantFee := new(big.Int).Add(AccountCreationFee, TxFee)
	assert.Equal(t, new(big.Int).Sub(before, wantFee), l.Balance(payer.Address))

	state := NewState(l, addr, 3)
	tx, err := l.Transaction(payer.Address, func(tx *Tx) error {
		u, err := tx.Call(addr, "set", nil)
		if err != nil {
			return err
		}
		if err := u.Set(3, FieldFromUint64(7)); err != nil {
			return err
		}
		assert.Equal(t, "7", state.GetIn(tx).String())
		assert.True(t, state.Get().IsZero(), "committed state must not change before Send")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, tx.Prove())

	receipt, err := tx.Sign(payer.Key).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt.Height)
	assert.Equal(t, "7", state.Get().String())
	assert.Len(t, l.Receipts(), 2)

	_, err = tx.Send(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySent)
}

func TestSendRejectsWithoutSideEffects(t *testing.T) {
	l, payer, zkKey := newTestChain(t)
	addr := zkKey.PublicKey().Address()

	build := func(fund bool) *Tx {
		tx, err := l.Transaction(payer.Address, func(tx *Tx) error {
			if fund {
				tx.FundNewAccount()
			}
			u, err := tx.Deploy(addr)
			if err != nil {
				return err
			}
			return u.Set(0, FieldFromUint64(1))
		})
		require.NoError(t, err)
		return tx
	}

	cases := []struct {
		name   string
		send   func() error
		wantIs error
		want   string
	}{
		{
			name: "missing zkapp signature",
			send: func() error {
				tx := build(true)
				require.NoError(t, tx.Prove())
				_, err := tx.Sign(payer.Key).Send(context.Background())
				return err
			},
			wantIs: ErrMissingSig,
		},
		{
			name: "missing fee payer signature",
			send: func() error {
				tx := build(true)
				require.NoError(t, tx.Prove())
				_, err := tx.Sign(zkKey).Send(context.Background())
				return err
			},
			wantIs: ErrMissingSig,
		},
		{
			name: "not proved",
			send: func() error {
				_, err := build(true).Sign(zkKey, payer.Key).Send(context.Background())
				return err
			},
			wantIs: ErrNotProved,
		},
		{
			name: "unfunded account",
			send: func() error {
				tx := build(false)
				require.NoError(t, tx.Prove())
				_, err := tx.Sign(zkKey, payer.Key).Send(context.Background())
				return err
			},
			want: "only 0 funded",
		},
		{
			name: "cancelled",
			send: func() error {
				tx := build(true)
				require.NoError(t, tx.Prove())
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				_, err := tx.Sign(zkKey, payer.Key).Send(ctx)
				return err
			},
			wantIs: context.Canceled,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := l.Balance(payer.Address)
			err := tc.send()
			require.Error(t, err)
			if tc.wantIs != nil {
				assert.True(t, errors.Is(err, tc.wantIs), "got %v", err)
			}
			if tc.want != "" {
				assert.Contains(t, err.Error(), tc.want)
			}
			_, exists := l.Account(addr)
			assert.False(t, exists)
			assert.Equal(t, before, l.Balance(payer.Address))
			assert.Zero(t, l.Height())
		})
	}
}

func TestSignatureOverTamperedPayload(t *testing.T) {
	l, payer, zkKey := newTestChain(t)
	addr := deploy(t, l, payer, zkKey)

	var update *AccountUpdate
	tx, err := l.Transaction(payer.Address, func(tx *Tx) error {
		u, err := tx.Call(addr, "set", nil)
		update = u
		return err
	})
	require.NoError(t, err)
	require.NoError(t, tx.Prove())
	tx.Sign(payer.Key)

	require.NoError(t, update.Set(1, FieldFromUint64(99)))
	_, err = tx.Send(context.Background())
	assert.ErrorContains(t, err, "invalid signature")
	assert.True(t, NewState(l, addr, 1).Get().IsZero())
}

func TestStaleNonce(t *testing.T) {
	l, payer, zkKey := newTestChain(t)
	addr := deploy(t, l, payer, zkKey)

	build := func() *Tx {
		tx, err := l.Transaction(payer.Address, func(tx *Tx) error {
			_, err := tx.Call(addr, "noop", nil)
			return err
		})
		require.NoError(t, err)
		require.NoError(t, tx.Prove())
		return tx.Sign(payer.Key)
	}

	first, second := build(), build()
	_, err := first.Send(context.Background())
	require.NoError(t, err)
	_, err = second.Send(context.Background())
	assert.ErrorContains(t, err, "stale nonce")
}

func TestProveRunsProversOnlyWhenEnabled(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		l, err := NewLocal(Options{Accounts: 1, ProofsEnabled: enabled})
		require.NoError(t, err)
		payer := l.TestAccounts[0]
		zkKey, err := keys.NewPrivateKey()
		require.NoError(t, err)
		addr := deploy(t, l, payer, zkKey)

		calls := 0
		tx, err := l.Transaction(payer.Address, func(tx *Tx) error {
			_, err := tx.Call(addr, "proved", func() error {
				calls++
				return errors.New("bad witness")
			})
			return err
		})
		require.NoError(t, err)

		err = tx.Prove()
		if enabled {
			assert.ErrorContains(t, err, "bad witness")
			assert.Equal(t, 1, calls)
		} else {
			assert.NoError(t, err)
			assert.Zero(t, calls)
		}
	}
}

func TestCallUnknownZkApp(t *testing.T) {
	l, payer, _ := newTestChain(t)
	_, err := l.Transaction(payer.Address, func(tx *Tx) error {
		_, err := tx.Call(l.TestAccounts[1].Address, "m", nil)
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownAccount)

	_, err = l.Transaction("nobody", func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestPayloadUnambiguous(t *testing.T) {
	packed := &Tx{sender: "B62qsender", updates: []*AccountUpdate{
		{Address: "B62qapp", Method: "set", state: map[int]Field{0: FieldFromUint64(0x0105)}},
	}}
	split := &Tx{sender: "B62qsender", updates: []*AccountUpdate{
		{Address: "B62qapp", Method: "set", state: map[int]Field{0: {}, 1: FieldFromUint64(0x05)}},
	}}
	assert.NotEqual(t, packed.payload(), split.payload())

	shifted := &Tx{sender: "B62qsender", updates: []*AccountUpdate{
		{Address: "B62qap", Method: "pset", state: map[int]Field{0: FieldFromUint64(0x0105)}},
	}}
	assert.NotEqual(t, packed.payload(), shifted.payload())
	assert.NotEqual(t, packed.Hash(), shifted.Hash())
}
