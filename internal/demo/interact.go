package demo

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/Doot-Foundation/example/internal/chain"
	"github.com/Doot-Foundation/example/internal/swap"
	"github.com/Doot-Foundation/example/internal/utils"
)

// InteractOptions configures RunInteract.
type InteractOptions struct {
	ProofsEnabled bool
	// Verifier overrides the Swap's signature verifier.
	Verifier swap.Verifier
}

type step struct {
	name string
	run  func() error
}

// interaction is the state shared by the RunInteract steps.
type interaction struct {
	ctx  context.Context
	c    Client
	p    *printer
	opts InteractOptions

	priceM, priceE chain.Field
	sigM, sigE     string
	oracle         string

	local    *chain.Local
	deployer chain.TestAccount
	zkKey    *keys.PrivateKey
	swap     *swap.Swap
}

// RunInteract fetches signed MINA and ETH prices, deploys Swap on a local
// chain, stores the prices and derives the exchange rates on-chain.
// Once a step fails the remaining steps are skipped.
func RunInteract(ctx context.Context, c Client, w io.Writer, opts InteractOptions) error {
	in := &interaction{ctx: ctx, c: c, p: &printer{w: w}, opts: opts}

	steps := []step{
		{name: "Fetch prices", run: in.fetchPrices},
		{name: "Local chain", run: in.startChain},
		{name: "Deploy", run: in.deploy},
		{name: "updatePrices", run: in.updatePrices},
		{name: "setExchangeRates", run: in.setExchangeRates},
	}

	for i, s := range steps {
		if err := s.run(); err != nil {
			slog.Error("Interaction step failed", "step", s.name, "error", err)
			in.p.printf("FAILED - %s: %v", s.name, err)
			for _, skipped := range steps[i+1:] {
				in.p.printf("SKIPPED - %s: depends on %s", skipped.name, s.name)
			}
			break
		}
	}

	in.p.println()
	return in.p.err
}

func (in *interaction) fetchPrices() error {
	mina, err := in.c.GetData(in.ctx, "mina")
	if err != nil {
		return err
	}
	ethereum, err := in.c.GetData(in.ctx, "ethereum")
	if err != nil {
		return err
	}

	if in.priceM, err = chain.FieldFromString(mina.PriceData.Price); err != nil {
		return fmt.Errorf("mina price: %w", err)
	}
	if in.priceE, err = chain.FieldFromString(ethereum.PriceData.Price); err != nil {
		return fmt.Errorf("ethereum price: %w", err)
	}
	in.sigM = mina.PriceData.Signature
	in.sigE = ethereum.PriceData.Signature
	in.oracle = mina.PriceData.Oracle

	slog.Debug("Fetched prices", "mina", in.priceM, "mina_source", mina.Source, "ethereum", in.priceE, "ethereum_source", ethereum.Source)
	return nil
}

func (in *interaction) startChain() error {
	local, err := chain.NewLocal(chain.Options{ProofsEnabled: in.opts.ProofsEnabled})
	if err != nil {
		return err
	}
	zkKey, err := keys.NewPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to generate zkApp key: %w", err)
	}

	if in.opts.ProofsEnabled {
		if err := swap.Compile(); err != nil {
			return err
		}
	}

	var opts []swap.Option
	if in.opts.Verifier != nil {
		opts = append(opts, swap.WithVerifier(in.opts.Verifier))
	}

	in.local = local
	in.deployer = local.TestAccounts[0]
	in.zkKey = zkKey
	in.swap = swap.New(local, zkKey.PublicKey().Address(), opts...)
	return nil
}

func (in *interaction) deploy() error {
	in.p.println("\nDeploying Swap...")

	err := in.send(func(tx *chain.Tx) error {
		tx.FundNewAccount()
		return in.swap.Deploy(tx)
	}, in.zkKey, in.deployer.Key)
	if err != nil {
		return err
	}

	in.printPrices("\nInitial Prices On-Chain =========================")
	return nil
}

func (in *interaction) updatePrices() error {
	err := in.send(func(tx *chain.Tx) error {
		return in.swap.UpdatePrices(tx, in.priceE, in.sigE, in.priceM, in.sigM, in.oracle)
	}, in.deployer.Key)
	if err != nil {
		return err
	}

	in.printPrices("\nUpdated Prices On-Chain =========================")
	return nil
}

func (in *interaction) setExchangeRates() error {
	in.p.println("\nExchange Rates On-Chain =========================")

	mina := in.swap.MinaPrice.Get().BigInt()
	eth := in.swap.EthereumPrice.Get().BigInt()

	minaToEthRate, err := utils.ScaledRatio(mina, eth)
	if err != nil {
		return err
	}
	ethToMinaRate, err := utils.ScaledRatio(eth, mina)
	if err != nil {
		return err
	}
	minaToEth, err := chain.NewField(minaToEthRate)
	if err != nil {
		return err
	}
	ethToMina, err := chain.NewField(ethToMinaRate)
	if err != nil {
		return err
	}

	err = in.send(func(tx *chain.Tx) error {
		return in.swap.SetExchangeRates(tx, minaToEth, ethToMina)
	}, in.deployer.Key)
	if err != nil {
		return err
	}

	gotMinaToEth := in.swap.MinaToEthExchange.Get()
	gotEthToMina := in.swap.EthToMinaExchange.Get()

	p := in.p
	p.println("Fields ->")
	p.println("MINA / ETH:", fmt.Sprintf("%#v", gotMinaToEth))
	p.println("ETH / MINA :", fmt.Sprintf("%#v", gotEthToMina))
	p.println("Strings ->")
	p.println("MINA / ETH:", gotMinaToEth.String())
	p.println("ETH / MINA :", gotEthToMina.String())
	p.println("Actual Exchange Rates(/10**10) ->")
	p.println("MINA / ETH :", utils.Unscale(gotMinaToEth.BigInt()))
	p.println("ETH / MINA :", utils.Unscale(gotEthToMina.BigInt()))
	return nil
}

func (in *interaction) send(body func(tx *chain.Tx) error, signers ...*keys.PrivateKey) error {
	tx, err := in.local.Transaction(in.deployer.Address, body)
	if err != nil {
		return err
	}
	if err := tx.Prove(); err != nil {
		return err
	}
	receipt, err := tx.Sign(signers...).Send(in.ctx)
	if err != nil {
		return err
	}
	slog.Debug("Transaction applied", "hash", receipt.Hash, "height", receipt.Height, "fee", receipt.Fee)
	return nil
}

func (in *interaction) printPrices(title string) {
	mina := in.swap.MinaPrice.Get()
	eth := in.swap.EthereumPrice.Get()

	p := in.p
	p.println(title)
	p.println("Fields ->")
	p.println("MINA / USD:", fmt.Sprintf("%#v", mina))
	p.println("ETH / USD :", fmt.Sprintf("%#v", eth))
	p.println("Strings ->")
	p.println("MINA / USD:", mina.String())
	p.println("ETH / USD :", eth.String())
}
