// Package zkp holds the groth16 circuit that proves Swap exchange rates are
// the floor ratios of the stored prices.
package zkp

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Scale is the fixed-point factor of exchange rates (10^10).
const Scale = 10_000_000_000

// ExchangeRateCircuit constrains, over the BN254 scalar field,
//
//	MinaToEth*EthPrice + MinaRem == MinaPrice*Scale, MinaRem < EthPrice
//	EthToMina*MinaPrice + EthRem == EthPrice*Scale,  EthRem < MinaPrice
type ExchangeRateCircuit struct {
	MinaPrice frontend.Variable `gnark:",public"`
	EthPrice  frontend.Variable `gnark:",public"`
	MinaToEth frontend.Variable `gnark:",public"`
	EthToMina frontend.Variable `gnark:",public"`

	MinaRem frontend.Variable
	EthRem  frontend.Variable
}

func (c *ExchangeRateCircuit) Define(api frontend.API) error {
	api.AssertIsDifferent(c.MinaPrice, 0)
	api.AssertIsDifferent(c.EthPrice, 0)

	api.AssertIsEqual(api.Add(api.Mul(c.MinaToEth, c.EthPrice), c.MinaRem), api.Mul(c.MinaPrice, Scale))
	api.AssertIsLessOrEqual(c.MinaRem, api.Sub(c.EthPrice, 1))

	api.AssertIsEqual(api.Add(api.Mul(c.EthToMina, c.MinaPrice), c.EthRem), api.Mul(c.EthPrice, Scale))
	api.AssertIsLessOrEqual(c.EthRem, api.Sub(c.MinaPrice, 1))

	return nil
}

// ErrPriceRange is returned when a scaled price does not fit the BN254 scalar field.
var ErrPriceRange = errors.New("scaled price exceeds the proof field")

// NewAssignment builds a full witness, deriving the remainders.
// Both price*Scale products must be below the BN254 scalar field order.
func NewAssignment(mina, eth, minaToEth, ethToMina *big.Int) (*ExchangeRateCircuit, error) {
	if mina.Sign() <= 0 || eth.Sign() <= 0 {
		return nil, errors.New("prices must be positive")
	}
	scale := big.NewInt(Scale)
	order := ecc.BN254.ScalarField()
	for _, p := range []*big.Int{mina, eth} {
		if new(big.Int).Mul(p, scale).Cmp(order) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrPriceRange, p)
		}
	}

	minaRem := new(big.Int).Mul(mina, scale)
	minaRem.Sub(minaRem, new(big.Int).Mul(minaToEth, eth))
	ethRem := new(big.Int).Mul(eth, scale)
	ethRem.Sub(ethRem, new(big.Int).Mul(ethToMina, mina))

	return &ExchangeRateCircuit{
		MinaPrice: mina,
		EthPrice:  eth,
		MinaToEth: minaToEth,
		EthToMina: ethToMina,
		MinaRem:   minaRem,
		EthRem:    ethRem,
	}, nil
}

// Compiled is a compiled circuit together with its groth16 keys.
type Compiled struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

var (
	compileOnce sync.Once
	compiled    *Compiled
	compileErr  error
	ready       atomic.Bool
)

// Compile runs the one-time circuit compilation and key setup. The result is cached.
func Compile() (*Compiled, error) {
	compileOnce.Do(func() {
		start := time.Now()
		var circuit ExchangeRateCircuit
		ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
		if err != nil {
			compileErr = fmt.Errorf("failed to compile circuit: %w", err)
			return
		}

		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			compileErr = fmt.Errorf("groth16 setup failed: %w", err)
			return
		}

		compiled = &Compiled{ccs: ccs, pk: pk, vk: vk}
		ready.Store(true)
		slog.Info("Exchange rate circuit compiled", "constraints", ccs.GetNbConstraints(), "elapsed", time.Since(start))
	})
	return compiled, compileErr
}

// IsCompiled reports whether Compile has completed successfully.
func IsCompiled() bool {
	return ready.Load()
}

// Prove creates a proof for assignment and verifies it against the public inputs.
func (c *Compiled) Prove(assignment *ExchangeRateCircuit) (groth16.Proof, error) {
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to build witness: %w", err)
	}

	proof, err := groth16.Prove(c.ccs, c.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("failed to prove: %w", err)
	}

	publicWitness, err := witness.Public()
	if err != nil {
		return nil, fmt.Errorf("failed to extract public witness: %w", err)
	}

	if err := groth16.Verify(proof, c.vk, publicWitness); err != nil {
		return nil, fmt.Errorf("proof rejected: %w", err)
	}

	return proof, nil
}
