// Package swap implements the Swap zkApp: it stores oracle-signed MINA and
// ETH prices and the exchange rates derived from them.
package swap

import (
	"errors"
	"fmt"

	"github.com/Doot-Foundation/example/internal/chain"
	"github.com/Doot-Foundation/example/internal/utils"
	"github.com/Doot-Foundation/example/internal/zkp"
)

const (
	slotMinaPrice = iota
	slotEthereumPrice
	slotMinaToEth
	slotEthToMina
)

var (
	// ErrNotCompiled is returned when proving before Compile.
	ErrNotCompiled = errors.New("swap is not compiled")
	// ErrRateMismatch is returned when submitted rates differ from the stored prices' ratio.
	ErrRateMismatch = errors.New("exchange rate does not match stored prices")
	// ErrUntrustedOracle is returned when the oracle differs from the configured one.
	ErrUntrustedOracle = errors.New("untrusted oracle")
)

// Swap is a deployed (or to-be-deployed) instance of the contract.
type Swap struct {
	Address string

	MinaPrice         chain.State
	EthereumPrice     chain.State
	MinaToEthExchange chain.State
	EthToMinaExchange chain.State

	verifier      Verifier
	trustedOracle string
}

type Option func(*Swap)

// WithVerifier replaces the default MinaFormatVerifier.
func WithVerifier(v Verifier) Option {
	return func(s *Swap) {
		s.verifier = v
	}
}

// WithTrustedOracle pins the oracle key updatePrices accepts.
func WithTrustedOracle(oracle string) Option {
	return func(s *Swap) {
		s.trustedOracle = oracle
	}
}

// New binds the contract to address on c.
func New(c *chain.Local, address string, opts ...Option) *Swap {
	s := &Swap{
		Address:           address,
		MinaPrice:         chain.NewState(c, address, slotMinaPrice),
		EthereumPrice:     chain.NewState(c, address, slotEthereumPrice),
		MinaToEthExchange: chain.NewState(c, address, slotMinaToEth),
		EthToMinaExchange: chain.NewState(c, address, slotEthToMina),
		verifier:          MinaFormatVerifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile prepares the proving keys. Required before proving with proofs enabled.
func Compile() error {
	_, err := zkp.Compile()
	return err
}

// Deploy stages the account creation with all state zeroed.
func (s *Swap) Deploy(tx *chain.Tx) error {
	u, err := tx.Deploy(s.Address)
	if err != nil {
		return err
	}
	for _, slot := range []int{slotMinaPrice, slotEthereumPrice, slotMinaToEth, slotEthToMina} {
		if err := u.Set(slot, chain.Field{}); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePrices stores both prices after checking each signature against oracle.
func (s *Swap) UpdatePrices(tx *chain.Tx, priceE chain.Field, sigE string, priceM chain.Field, sigM string, oracle string) error {
	if s.trustedOracle != "" && oracle != s.trustedOracle {
		return fmt.Errorf("%w: %s", ErrUntrustedOracle, oracle)
	}
	if err := s.verifier.Verify(oracle, priceE, sigE); err != nil {
		return fmt.Errorf("ethereum price: %w", err)
	}
	if err := s.verifier.Verify(oracle, priceM, sigM); err != nil {
		return fmt.Errorf("mina price: %w", err)
	}

	u, err := tx.Call(s.Address, "updatePrices", nil)
	if err != nil {
		return err
	}
	if err := u.Set(slotEthereumPrice, priceE); err != nil {
		return err
	}
	return u.Set(slotMinaPrice, priceM)
}

// SetExchangeRates stores the rates when they equal floor(price*10^10/other).
// With proofs enabled the update carries a groth16 proof of that relation.
func (s *Swap) SetExchangeRates(tx *chain.Tx, minaToEth, ethToMina chain.Field) error {
	mina := s.MinaPrice.GetIn(tx).BigInt()
	eth := s.EthereumPrice.GetIn(tx).BigInt()
	if mina.Sign() == 0 || eth.Sign() == 0 {
		return fmt.Errorf("%w: prices are not set", ErrRateMismatch)
	}

	wantMinaToEth, err := utils.ScaledRatio(mina, eth)
	if err != nil {
		return err
	}
	wantEthToMina, err := utils.ScaledRatio(eth, mina)
	if err != nil {
		return err
	}
	if minaToEth.BigInt().Cmp(wantMinaToEth) != 0 {
		return fmt.Errorf("%w: MINA/ETH %s, want %s", ErrRateMismatch, minaToEth, wantMinaToEth)
	}
	if ethToMina.BigInt().Cmp(wantEthToMina) != 0 {
		return fmt.Errorf("%w: ETH/MINA %s, want %s", ErrRateMismatch, ethToMina, wantEthToMina)
	}

	prover := func() error {
		if !zkp.IsCompiled() {
			return ErrNotCompiled
		}
		c, err := zkp.Compile()
		if err != nil {
			return err
		}
		assignment, err := zkp.NewAssignment(mina, eth, minaToEth.BigInt(), ethToMina.BigInt())
		if err != nil {
			return err
		}
		_, err = c.Prove(assignment)
		return err
	}

	u, err := tx.Call(s.Address, "setExchangeRates", prover)
	if err != nil {
		return err
	}
	if err := u.Set(slotMinaToEth, minaToEth); err != nil {
		return err
	}
	return u.Set(slotEthToMina, ethToMina)
}
