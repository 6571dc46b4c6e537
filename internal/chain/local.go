// Package chain is an in-process ledger for exercising zkApp-style contracts.
// Accounts are secp256r1 keys, contract state is eight Field slots per
// account, and transactions follow a build, prove, sign, send lifecycle.
// Only Send mutates the ledger.
package chain

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
)

// StateSlots is the number of on-chain state fields per zkApp account.
const StateSlots = 8

var (
	// OneMina is 10^9 nanomina.
	OneMina = big.NewInt(1_000_000_000)
	// AccountCreationFee is charged once per newly created account.
	AccountCreationFee = new(big.Int).Set(OneMina)
	// TxFee is charged to the fee payer of every sent transaction.
	TxFee = big.NewInt(100_000_000)
)

// Account is a ledger entry.
type Account struct {
	Address   string
	PublicKey *keys.PublicKey
	Balance   *big.Int
	Nonce     uint64
	ZkApp     bool
	State     [StateSlots]Field
}

func (a *Account) clone() *Account {
	c := *a
	c.Balance = new(big.Int).Set(a.Balance)
	return &c
}

// TestAccount is a funded account whose key is known to the caller.
type TestAccount struct {
	Key     *keys.PrivateKey
	Address string
}

// Options configures NewLocal.
type Options struct {
	ProofsEnabled  bool
	Accounts       int
	InitialBalance *big.Int
}

// Local is an in-memory blockchain.
type Local struct {
	mu            sync.RWMutex
	proofsEnabled bool
	accounts      map[string]*Account
	receipts      []*Receipt
	height        uint64

	TestAccounts []TestAccount
}

// NewLocal creates a chain with funded test accounts.
// Defaults: 10 accounts holding 1000 MINA each.
func NewLocal(opts Options) (*Local, error) {
	if opts.Accounts <= 0 {
		opts.Accounts = 10
	}
	if opts.InitialBalance == nil {
		opts.InitialBalance = new(big.Int).Mul(big.NewInt(1000), OneMina)
	}

	l := &Local{
		proofsEnabled: opts.ProofsEnabled,
		accounts:      make(map[string]*Account),
	}

	for i := 0; i < opts.Accounts; i++ {
		key, err := keys.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate test account %d: %w", i, err)
		}
		pub := key.PublicKey()
		addr := pub.Address()
		l.accounts[addr] = &Account{
			Address:   addr,
			PublicKey: pub,
			Balance:   new(big.Int).Set(opts.InitialBalance),
		}
		l.TestAccounts = append(l.TestAccounts, TestAccount{Key: key, Address: addr})
	}

	return l, nil
}

func (l *Local) ProofsEnabled() bool {
	return l.proofsEnabled
}

// Height is the number of transactions applied so far.
func (l *Local) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

// Account returns a snapshot of the account at addr.
func (l *Local) Account(addr string) (*Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return nil, false
	}
	return acc.clone(), true
}

// Balance returns the balance of addr, or zero for unknown accounts.
func (l *Local) Balance(addr string) *big.Int {
	acc, ok := l.Account(addr)
	if !ok {
		return new(big.Int)
	}
	return acc.Balance
}

// State returns committed state; unknown accounts and slots read as zero.
func (l *Local) State(addr string, slot int) Field {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok || slot < 0 || slot >= StateSlots {
		return Field{}
	}
	return acc.State[slot]
}

// Receipts returns the applied transactions in order.
func (l *Local) Receipts() []*Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Receipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}

// State is a handle on one state slot of a contract account.
type State struct {
	chain *Local
	addr  string
	slot  int
}

// NewState binds slot of addr on c.
func NewState(c *Local, addr string, slot int) State {
	return State{chain: c, addr: addr, slot: slot}
}

// Get reads the committed value.
func (s State) Get() Field {
	return s.chain.State(s.addr, s.slot)
}

// GetIn reads the value as staged inside tx.
func (s State) GetIn(tx *Tx) Field {
	return tx.stagedState(s.addr, s.slot)
}

// Slot is the state index this handle reads.
func (s State) Slot() int {
	return s.slot
}
