package demo

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/Doot-Foundation/example/internal/client"
	"github.com/Doot-Foundation/example/internal/models"
)

type fetchFunc func(ctx context.Context, token string) (*models.ClientResult, error)

// smokeStep is one numbered retrieval of a smoke test.
type smokeStep struct {
	token    string
	label    string
	places   int32
	intro    string
	note     string
	contract bool
	oracle   bool
}

// RunAPITest validates the key and then fetches bitcoin, ethereum and mina from the API.
func RunAPITest(ctx context.Context, c Client, w io.Writer) error {
	p := &printer{w: w}

	p.println("=== Testing API Method ===")
	p.println()
	p.println("1. Validating API Key...")
	if !keyValid(ctx, c) {
		p.println("   API Key Status: ❌ Invalid")
		p.printf("\n⚠️  Invalid API key! Get one at: %s", dashboardURL)
		return p.err
	}
	p.println("   API Key Status: ✅ Valid")

	steps := []smokeStep{
		{token: "bitcoin", label: "Bitcoin", places: 2, intro: "Fetching Bitcoin price...", oracle: true},
		{token: "ethereum", label: "Ethereum", places: 2, intro: "Fetching Ethereum price..."},
		{token: "mina", label: "MINA", places: 6, intro: "Fetching MINA price..."},
	}
	for i, step := range steps {
		runSmokeStep(ctx, p, c.GetFromAPI, i+2, step, nil)
	}

	p.println("\n=== API Test Complete ===")
	return p.err
}

// RunL2Test fetches mina, ethereum and bitcoin from the Zeko L2 contract.
func RunL2Test(ctx context.Context, c Client, w io.Writer) error {
	p := &printer{w: w}

	p.println("=== Testing Zeko L2 Method ===")
	p.println()
	p.println("1. Connecting to Zeko L2 blockchain...")
	p.println("   (This will compile contracts on first run - may take 30-60s)")
	p.println()

	steps := []smokeStep{
		{token: "mina", label: "MINA (L2)", places: 6, intro: "Fetching MINA price from L2...", contract: true},
		{token: "ethereum", label: "Ethereum (L2)", places: 2, intro: "Fetching Ethereum price from L2...", note: "   (Using cached compilation - should be faster)"},
		{token: "bitcoin", label: "Bitcoin (L2)", places: 2, intro: "Fetching Bitcoin price from L2..."},
	}
	for i, step := range steps {
		runSmokeStep(ctx, p, c.GetFromL2, i+2, step, nil)
	}

	p.println("\n=== L2 Test Complete ===")
	return p.err
}

// RunL1Test fetches mina, ethereum and bitcoin from the Mina L1 contract and
// explains settlement errors.
func RunL1Test(ctx context.Context, c Client, w io.Writer) error {
	p := &printer{w: w}

	p.println("=== Testing Mina L1 Method ===")
	p.println()
	p.println("1. Connecting to Mina L1 blockchain...")
	p.println("   (This will use cached compilation if L2 was tested first)")
	p.println()

	settlingDetail := func(err error) {
		if !isSettling(err) {
			return
		}
		p.println("\n   ℹ️  This is the NEW error handling in action!")
		p.println("   The offchain state is currently settling on L1.")
		p.println("   This prevents the cryptic Field.assertEquals error.")
		p.println("   Try again in a few minutes after settlement completes.")
	}
	settlingShort := func(err error) {
		if isSettling(err) {
			p.println("   ℹ️  Offchain state is settling - try again later")
		}
	}

	runSmokeStep(ctx, p, c.GetFromL1, 2, smokeStep{token: "mina", label: "MINA (L1)", places: 6, intro: "Fetching MINA price from L1...", contract: true}, settlingDetail)
	runSmokeStep(ctx, p, c.GetFromL1, 3, smokeStep{token: "ethereum", label: "Ethereum (L1)", places: 2, intro: "Fetching Ethereum price from L1..."}, settlingShort)
	runSmokeStep(ctx, p, c.GetFromL1, 4, smokeStep{token: "bitcoin", label: "Bitcoin (L1)", places: 2, intro: "Fetching Bitcoin price from L1..."}, settlingShort)

	p.println("\n=== L1 Test Complete ===")
	p.println("\nNote: If you see \"OffchainState still settling\" messages,")
	p.println("this demonstrates the NEW error handling that provides")
	p.println("user-friendly feedback instead of cryptic errors.")
	return p.err
}

func runSmokeStep(ctx context.Context, p *printer, fetch fetchFunc, n int, step smokeStep, onErr func(error)) {
	p.printf("\n%d. %s", n, step.intro)
	if step.note != "" {
		p.println(step.note)
		p.println()
	}

	res, price, err := fetchPrice(ctx, fetch, step.token, step.places)
	if err != nil {
		p.printf("   ❌ Failed: %v", err)
		if onErr != nil {
			onErr(err)
		}
		return
	}

	p.printf("   ✅ %s: $%s", step.label, price)
	p.printf("   Source: %s", res.Source)
	switch {
	case step.contract:
		p.printf("   Contract: %s", res.PriceData.Oracle)
	case step.oracle:
		p.printf("   Oracle: %s", res.PriceData.Oracle)
	}
}

// isSettling matches by message as well, so errors that crossed a process
// boundary are still recognized.
func isSettling(err error) bool {
	return errors.Is(err, client.ErrStateSettling) || strings.Contains(err.Error(), "OffchainState still settling")
}
