package spread

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

var expiry = time.Date(2025, 6, 20, 16, 0, 0, 0, time.UTC)

// sampleChain quotes strikes every dollar around spot 640 with healthy
// volume on both sides.
func sampleChain() *types.OptionChain {
	chain := &types.OptionChain{Underlying: "SPY", AsOf: expiry}
	for strike := 630.0; strike <= 650.0; strike++ {
		dist := strike - 640
		// Puts cheapen below spot, calls cheapen above it.
		chain.Contracts = append(chain.Contracts,
			types.OptionContract{
				Strike: strike, Expiry: expiry, Type: types.OptionPut,
				Bid: max(0.05, 2.0+dist*0.35), Ask: max(0.10, 2.2+dist*0.35), Volume: 500,
			},
			types.OptionContract{
				Strike: strike, Expiry: expiry, Type: types.OptionCall,
				Bid: max(0.05, 2.0-dist*0.35), Ask: max(0.10, 2.2-dist*0.35), Volume: 500,
			},
		)
	}
	return chain
}

func TestBuildBullPutSpread(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 10)

	def, err := b.Build(types.FamilyBullPutSpread, sampleChain(), 640, expiry)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(def.Legs) != 2 {
		t.Fatalf("legs = %d, want 2", len(def.Legs))
	}
	sell, buy := def.Legs[0], def.Legs[1]
	if sell.Action != types.ActionSell || buy.Action != types.ActionBuy {
		t.Errorf("leg actions = %s/%s, want sell/buy", sell.Action, buy.Action)
	}
	if sell.Contract.Strike <= buy.Contract.Strike {
		t.Errorf("short put %0.f must sit above long put %0.f",
			sell.Contract.Strike, buy.Contract.Strike)
	}
	if def.NetCredit <= 0 {
		t.Errorf("net credit = %f, want positive", def.NetCredit)
	}
	wantMaxLoss := (def.Width() - def.NetCredit) * types.SharesPerContract
	if def.MaxLoss != wantMaxLoss {
		t.Errorf("max loss = %f, want width-credit = %f", def.MaxLoss, wantMaxLoss)
	}
}

func TestBuildIronCondorUsesWidestSide(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 10)

	def, err := b.Build(types.FamilyIronCondor, sampleChain(), 640, expiry)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(def.Legs) != 4 {
		t.Fatalf("legs = %d, want 4", len(def.Legs))
	}
	if def.MaxLoss <= 0 || def.MaxProfit <= 0 {
		t.Errorf("max loss %f / max profit %f must both be positive",
			def.MaxLoss, def.MaxProfit)
	}
	if def.MaxProfit != def.NetCredit*types.SharesPerContract {
		t.Errorf("condor max profit = %f, want credit*100 = %f",
			def.MaxProfit, def.NetCredit*types.SharesPerContract)
	}
}

func TestBuildLongCallIsDebit(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 10)

	def, err := b.Build(types.FamilyLongCall, sampleChain(), 640, expiry)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if def.NetCredit >= 0 {
		t.Errorf("long call net credit = %f, want negative (debit)", def.NetCredit)
	}
	if def.MaxLoss != -def.NetCredit*types.SharesPerContract {
		t.Errorf("long call max loss = %f, want debit*100", def.MaxLoss)
	}
}

func TestBuildCondorSharesStrikeAcrossTypes(t *testing.T) {
	// Strike uniqueness applies per option type: when the nearest call
	// strike coincides with the short put strike, the condor must still
	// build rather than drift to a worse strike or fail.
	chain := &types.OptionChain{Underlying: "SPY", AsOf: expiry}
	for _, c := range []types.OptionContract{
		{Strike: 640, Type: types.OptionPut, Bid: 2.0, Ask: 2.2},
		{Strike: 635, Type: types.OptionPut, Bid: 0.7, Ask: 0.9},
		{Strike: 640, Type: types.OptionCall, Bid: 2.0, Ask: 2.2},
		{Strike: 645, Type: types.OptionCall, Bid: 0.7, Ask: 0.9},
	} {
		c.Expiry = expiry
		c.Volume = 500
		chain.Contracts = append(chain.Contracts, c)
	}

	b := NewBuilder(zap.NewNop(), 10)
	def, err := b.Build(types.FamilyIronCondor, chain, 640, expiry)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	shortPut, shortCall := def.Legs[0], def.Legs[2]
	if shortPut.Contract.Strike != 640 || shortCall.Contract.Strike != 640 {
		t.Errorf("short strikes = %.0f put / %.0f call, want both 640",
			shortPut.Contract.Strike, shortCall.Contract.Strike)
	}
	if def.Legs[3].Contract.Strike != 645 {
		t.Errorf("long call strike = %.0f, want 645", def.Legs[3].Contract.Strike)
	}
}

func TestBuildFailsWithoutMatchingStrikes(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 10)

	// Wrong expiry day: nothing in the chain matches.
	_, err := b.Build(types.FamilyBullPutSpread, sampleChain(), 640, expiry.AddDate(0, 0, 1))
	if !errors.Is(err, ErrConstruction) {
		t.Errorf("err = %v, want ErrConstruction", err)
	}

	_, err = b.Build(types.FamilyIronCondor, &types.OptionChain{}, 640, expiry)
	if !errors.Is(err, ErrConstruction) {
		t.Errorf("empty chain err = %v, want ErrConstruction", err)
	}
}

func TestBuildRespectsVolumeFloor(t *testing.T) {
	chain := sampleChain()
	for i := range chain.Contracts {
		chain.Contracts[i].Volume = 3
	}

	b := NewBuilder(zap.NewNop(), 10)
	_, err := b.Build(types.FamilyBullPutSpread, chain, 640, expiry)
	if !errors.Is(err, ErrConstruction) {
		t.Errorf("thin chain err = %v, want ErrConstruction", err)
	}
}

func TestBuildUnknownFamily(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 10)
	_, err := b.Build(types.FamilyNone, sampleChain(), 640, expiry)
	if !errors.Is(err, ErrConstruction) {
		t.Errorf("err = %v, want ErrConstruction", err)
	}
}
