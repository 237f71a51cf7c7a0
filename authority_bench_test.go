package tokenauth

import (
	"context"
	"testing"
)

func BenchmarkIssueTokenPair(b *testing.B) {
	a, _, _ := newTestAuthority(b, testConfig())
	p := testPrincipal(b, 42)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		if _, err := a.IssueTokenPair(ctx, p); err != nil {
			b.Fatalf("IssueTokenPair: %v", err)
		}
	}
}

// BenchmarkRotate walks one refresh chain, so every iteration presents the
// token issued by the previous one.
func BenchmarkRotate(b *testing.B) {
	a, _, _ := newTestAuthority(b, testConfig())
	p := testPrincipal(b, 42)
	ctx := context.Background()

	pair, err := a.IssueTokenPair(ctx, p)
	if err != nil {
		b.Fatalf("IssueTokenPair: %v", err)
	}

	b.ReportAllocs()
	for b.Loop() {
		pair, err = a.Rotate(ctx, pair.RefreshToken, p)
		if err != nil {
			b.Fatalf("Rotate: %v", err)
		}
	}
}

func BenchmarkIssueTokenPairParallel(b *testing.B) {
	a, _, _ := newTestAuthority(b, testConfig())
	p := testPrincipal(b, 42)

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := a.IssueTokenPair(ctx, p); err != nil {
				b.Errorf("IssueTokenPair: %v", err)
				return
			}
		}
	})
}
