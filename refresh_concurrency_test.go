package tokenauth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	a, _, rdb := newTestAuthority(t, testConfig())
	p := testPrincipal(t, 77)

	pair, err := a.IssueTokenPair(context.Background(), p)
	if err != nil {
		t.Fatalf("IssueTokenPair failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	start := make(chan struct{})
	type outcome struct {
		pair TokenPair
		err  error
	}
	results := make(chan outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			next, err := a.Rotate(context.Background(), pair.RefreshToken, p)
			results <- outcome{pair: next, err: err}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	var winner TokenPair
	for res := range results {
		if res.err == nil {
			success++
			winner = res.pair
			continue
		}
		if errors.Is(res.err, ErrRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected rotate error: %v", res.err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one rotate success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d rotate failures, got %d", n-1, fail)
	}

	members, err := rdb.SMembers(context.Background(), "user_refresh_tokens:77").Result()
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 1 || members[0] != refreshJTI(t, a, winner.RefreshToken) {
		t.Fatalf("expected only the winner's jti in the index, got %v", members)
	}
}

func TestRefreshConcurrencyDistinctTokensAllSucceed(t *testing.T) {
	a, _, _ := newTestAuthority(t, testConfig())
	p := testPrincipal(t, 78)

	const n = 8
	tokens := make([]string, n)
	for i := range tokens {
		pair, err := a.IssueTokenPair(context.Background(), p)
		if err != nil {
			t.Fatalf("IssueTokenPair failed: %v", err)
		}
		tokens[i] = pair.RefreshToken
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_, err := a.Rotate(context.Background(), tok, p)
			errs <- err
		}(tok)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("independent rotation failed: %v", err)
		}
	}
}
