package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
)

var (
	ErrAlreadySent     = errors.New("transaction already sent")
	ErrNotProved       = errors.New("transaction has unproved account updates")
	ErrMissingSig      = errors.New("missing signature")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrInsufficientFee = errors.New("insufficient balance")
)

// Prover produces and checks the proof for one account update.
type Prover func() error

// AccountUpdate is one contract-level change inside a transaction.
type AccountUpdate struct {
	Address string
	Method  string
	Deploy  bool

	state  map[int]Field
	prover Prover
	proved bool
}

// Set stages a state write.
func (u *AccountUpdate) Set(slot int, v Field) error {
	if slot < 0 || slot >= StateSlots {
		return fmt.Errorf("state slot %d out of range", slot)
	}
	u.state[slot] = v
	return nil
}

type signature struct {
	pub *keys.PublicKey
	sig []byte
}

// Receipt records an applied transaction.
type Receipt struct {
	Hash   string
	Height uint64
	Fee    *big.Int
}

// Tx is a transaction under construction.
type Tx struct {
	chain      *Local
	sender     string
	nonce      uint64
	funded     int
	updates    []*AccountUpdate
	signatures map[string]signature
	sent       bool
}

// Transaction builds a transaction paid for by sender. body stages the
// account updates; nothing is applied until Send.
func (l *Local) Transaction(sender string, body func(tx *Tx) error) (*Tx, error) {
	acc, ok := l.Account(sender)
	if !ok {
		return nil, fmt.Errorf("fee payer %s: %w", sender, ErrUnknownAccount)
	}

	tx := &Tx{
		chain:      l,
		sender:     sender,
		nonce:      acc.Nonce,
		signatures: make(map[string]signature),
	}

	if err := body(tx); err != nil {
		return nil, fmt.Errorf("transaction body failed: %w", err)
	}

	return tx, nil
}

// FundNewAccount makes the fee payer cover the creation fee of one new account.
func (tx *Tx) FundNewAccount() {
	tx.funded++
}

// Deploy stages creation of a zkApp account at addr. The zkApp key must sign.
func (tx *Tx) Deploy(addr string) (*AccountUpdate, error) {
	if _, ok := tx.chain.Account(addr); ok {
		return nil, fmt.Errorf("account %s already exists", addr)
	}
	for _, u := range tx.updates {
		if u.Deploy && u.Address == addr {
			return nil, fmt.Errorf("account %s deployed twice", addr)
		}
	}

	u := &AccountUpdate{Address: addr, Method: "deploy", Deploy: true, state: make(map[int]Field)}
	tx.updates = append(tx.updates, u)
	return u, nil
}

// Call stages a method invocation on an existing zkApp. prover may be nil
// when the method has no circuit beyond its native checks.
func (tx *Tx) Call(addr, method string, prover Prover) (*AccountUpdate, error) {
	if !tx.deployed(addr) {
		return nil, fmt.Errorf("zkApp %s: %w", addr, ErrUnknownAccount)
	}

	u := &AccountUpdate{Address: addr, Method: method, state: make(map[int]Field), prover: prover}
	tx.updates = append(tx.updates, u)
	return u, nil
}

func (tx *Tx) deployed(addr string) bool {
	if acc, ok := tx.chain.Account(addr); ok {
		return acc.ZkApp
	}
	for _, u := range tx.updates {
		if u.Deploy && u.Address == addr {
			return true
		}
	}
	return false
}

// stagedState resolves a slot through this transaction's writes, newest first.
func (tx *Tx) stagedState(addr string, slot int) Field {
	for i := len(tx.updates) - 1; i >= 0; i-- {
		u := tx.updates[i]
		if u.Address != addr {
			continue
		}
		if v, ok := u.state[slot]; ok {
			return v
		}
	}
	return tx.chain.State(addr, slot)
}

// Updates returns the staged account updates.
func (tx *Tx) Updates() []*AccountUpdate {
	return tx.updates
}

// Prove runs every update's prover when proofs are enabled.
// With proofs disabled the updates are accepted as-is.
func (tx *Tx) Prove() error {
	for _, u := range tx.updates {
		if tx.chain.proofsEnabled && u.prover != nil {
			if err := u.prover(); err != nil {
				return fmt.Errorf("failed to prove %s.%s: %w", u.Address, u.Method, err)
			}
		}
		u.proved = true
	}
	return nil
}

// Sign adds signatures from keys over the transaction hash.
func (tx *Tx) Sign(signers ...*keys.PrivateKey) *Tx {
	payload := tx.payload()
	for _, k := range signers {
		pub := k.PublicKey()
		tx.signatures[pub.Address()] = signature{pub: pub, sig: k.Sign(payload)}
	}
	return tx
}

// Hash is the hex SHA-256 of the signed payload.
func (tx *Tx) Hash() string {
	sum := sha256.Sum256(tx.payload())
	return hex.EncodeToString(sum[:])
}

// Send validates the transaction and applies it atomically.
func (tx *Tx) Send(ctx context.Context) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := tx.chain
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.sent {
		return nil, ErrAlreadySent
	}

	payer, ok := l.accounts[tx.sender]
	if !ok {
		return nil, fmt.Errorf("fee payer %s: %w", tx.sender, ErrUnknownAccount)
	}
	if payer.Nonce != tx.nonce {
		return nil, fmt.Errorf("stale nonce %d, account is at %d", tx.nonce, payer.Nonce)
	}

	digest := sha256.Sum256(tx.payload())
	if err := tx.verifySignature(tx.sender, digest[:]); err != nil {
		return nil, fmt.Errorf("fee payer: %w", err)
	}

	created := 0
	deployed := make(map[string]bool)
	for _, u := range tx.updates {
		if u.Deploy {
			if _, exists := l.accounts[u.Address]; exists {
				return nil, fmt.Errorf("account %s already exists", u.Address)
			}
			if err := tx.verifySignature(u.Address, digest[:]); err != nil {
				return nil, fmt.Errorf("deploy %s: %w", u.Address, err)
			}
			deployed[u.Address] = true
			created++
		} else if acc, ok := l.accounts[u.Address]; (!ok || !acc.ZkApp) && !deployed[u.Address] {
			return nil, fmt.Errorf("zkApp %s: %w", u.Address, ErrUnknownAccount)
		}
		if !u.proved {
			return nil, fmt.Errorf("%s.%s: %w", u.Address, u.Method, ErrNotProved)
		}
	}

	if created > tx.funded {
		return nil, fmt.Errorf("%d new accounts but only %d funded", created, tx.funded)
	}

	fee := new(big.Int).Mul(AccountCreationFee, big.NewInt(int64(tx.funded)))
	fee.Add(fee, TxFee)
	if payer.Balance.Cmp(fee) < 0 {
		return nil, fmt.Errorf("fee payer needs %s: %w", fee, ErrInsufficientFee)
	}

	// Everything below is infallible; a rejected Send leaves the ledger untouched.
	for _, u := range tx.updates {
		if u.Deploy {
			l.accounts[u.Address] = &Account{
				Address:   u.Address,
				PublicKey: tx.signatures[u.Address].pub,
				Balance:   new(big.Int),
				ZkApp:     true,
			}
		}
		acc := l.accounts[u.Address]
		for slot, v := range u.state {
			acc.State[slot] = v
		}
	}

	payer.Balance.Sub(payer.Balance, fee)
	payer.Nonce++
	l.height++
	tx.sent = true

	receipt := &Receipt{Hash: hex.EncodeToString(digest[:]), Height: l.height, Fee: fee}
	l.receipts = append(l.receipts, receipt)
	slog.Debug("Transaction applied", "hash", receipt.Hash, "height", receipt.Height, "updates", len(tx.updates))

	return receipt, nil
}

func (tx *Tx) verifySignature(addr string, digest []byte) error {
	s, ok := tx.signatures[addr]
	if !ok {
		return fmt.Errorf("%s: %w", addr, ErrMissingSig)
	}
	if !s.pub.Verify(s.sig, digest) {
		return fmt.Errorf("%s: invalid signature", addr)
	}
	return nil
}

// payload is the canonical byte encoding that signatures commit to.
// Strings carry a length prefix and fields are fixed-width.
func (tx *Tx) payload() []byte {
	var buf []byte
	buf = appendString(buf, tx.sender)
	buf = binary.BigEndian.AppendUint64(buf, tx.nonce)
	buf = binary.BigEndian.AppendUint32(buf, uint32(tx.funded))
	buf = binary.AppendUvarint(buf, uint64(len(tx.updates)))
	for _, u := range tx.updates {
		buf = appendString(buf, u.Address)
		buf = appendString(buf, u.Method)
		slots := make([]int, 0, len(u.state))
		for s := range u.state {
			slots = append(slots, s)
		}
		sort.Ints(slots)
		buf = binary.AppendUvarint(buf, uint64(len(slots)))
		for _, s := range slots {
			buf = append(buf, byte(s))
			buf = appendField(buf, u.state[s])
		}
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendField(buf []byte, f Field) []byte {
	var b [fieldSize]byte
	f.BigInt().FillBytes(b[:])
	return append(buf, b[:]...)
}
