package book

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/domain"
)

func randomBenchQuote(rng *rand.Rand) domain.Quote {
	side := domain.SideBid
	base := int64(10_000)
	width := int64(50)
	var price int64
	if rng.Intn(2) == 0 {
		side = domain.SideAsk
		price = base - rng.Int63n(width)
	} else {
		price = base + rng.Int63n(width)
	}
	return domain.Quote{
		Kind:     domain.OrderKindLimit,
		Side:     side,
		Price:    decimal.NewFromInt(price),
		Quantity: decimal.NewFromInt(rng.Int63n(20) + 1),
		TraderID: "bench",
	}
}

func BenchmarkSubmitCrossingFlow(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	quotes := make([]domain.Quote, b.N)
	for i := range quotes {
		quotes[i] = randomBenchQuote(rng)
	}
	bk := New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := bk.Submit(quotes[i], false, false); err != nil {
			b.Fatalf("submit failed: %v", err)
		}
	}
}

func BenchmarkCancelResting(b *testing.B) {
	bk := New()
	ids := make([]int64, b.N)
	for i := 0; i < b.N; i++ {
		_, resting, err := bk.Submit(domain.Quote{
			Kind:     domain.OrderKindLimit,
			Side:     domain.SideBid,
			Price:    decimal.NewFromInt(int64(i%1000) + 1),
			Quantity: decimal.NewFromInt(1),
			TraderID: "bench",
		}, false, false)
		if err != nil {
			b.Fatalf("submit failed: %v", err)
		}
		ids[i] = resting.ID
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := bk.Cancel(domain.SideBid, ids[i], nil); err != nil {
			b.Fatalf("cancel failed: %v", err)
		}
	}
}
