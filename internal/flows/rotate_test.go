package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/principal"
	"github.com/hotelcast/tokenauth/store"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]string
	saveErr  error
	checkErr error
	saved    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]string{}}
}

func (f *fakeStore) Save(_ context.Context, jti, userID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records[jti] = userID
	f.saved = append(f.saved, jti)
	return nil
}

func (f *fakeStore) IsValid(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	_, ok := f.records[jti]
	return ok, nil
}

func (f *fakeStore) Revoke(_ context.Context, jti, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[jti]
	delete(f.records, jti)
	return ok, nil
}

func (f *fakeStore) RevokeAll(_ context.Context, userID string) (store.RevokeAllResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res store.RevokeAllResult
	for jti, owner := range f.records {
		if owner == userID {
			res.Scanned++
			res.Deleted++
			delete(f.records, jti)
		}
	}
	return res, nil
}

func newFlowDeps(t *testing.T, st *fakeStore) (*jwt.Manager, RotateDeps) {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		Secret:     []byte("flow-secret-flow-secret-flow-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, RotateDeps{
		Decode: m.Decode,
		Store:  st,
		Issue: IssueDeps{
			EncodeAccess:  m.EncodeAccess,
			EncodeRefresh: m.EncodeRefresh,
			Now:           time.Now,
			Store:         st,
		},
	}
}

func mustPrincipal(t *testing.T, id int64) principal.Principal {
	t.Helper()
	p, err := principal.New(id, principal.RoleUser, []principal.HotelAccess{{HotelID: 1, Role: principal.HotelManager}})
	if err != nil {
		t.Fatalf("new principal: %v", err)
	}
	return p
}

func TestRunIssueRegistersRefreshJTI(t *testing.T) {
	st := newFakeStore()
	_, deps := newFlowDeps(t, st)

	res := RunIssue(context.Background(), mustPrincipal(t, 3), deps.Issue)
	if res.Failure != IssueFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if st.records[res.JTI] != "3" {
		t.Fatalf("expected jti %q registered for user 3, have %v", res.JTI, st.records)
	}
	if !res.RefreshExpiresAt.After(res.AccessExpiresAt) {
		t.Fatal("expected refresh to outlive access")
	}
}

func TestRunIssueStoreFailureReturnsNoTokens(t *testing.T) {
	st := newFakeStore()
	st.saveErr = errors.New("down")
	_, deps := newFlowDeps(t, st)

	res := RunIssue(context.Background(), mustPrincipal(t, 3), deps.Issue)
	if res.Failure != IssueFailureStore {
		t.Fatalf("expected store failure, got %v", res.Failure)
	}
	if res.AccessToken != "" || res.RefreshToken != "" {
		t.Fatal("tokens returned despite store failure")
	}
}

func TestRunIssueRejectsZeroPrincipal(t *testing.T) {
	_, deps := newFlowDeps(t, newFakeStore())
	if res := RunIssue(context.Background(), principal.Principal{}, deps.Issue); res.Failure != IssueFailurePrincipal {
		t.Fatalf("expected principal failure, got %v", res.Failure)
	}
}

func TestRunRotateFailureKinds(t *testing.T) {
	st := newFakeStore()
	m, deps := newFlowDeps(t, st)
	ctx := context.Background()
	p := mustPrincipal(t, 3)

	issued := RunIssue(ctx, p, deps.Issue)
	if issued.Failure != IssueFailureNone {
		t.Fatalf("issue: %v", issued.Err)
	}

	if res := RunRotate(ctx, "garbage", p, deps); res.Failure != RotateFailureDecode {
		t.Fatalf("expected decode failure, got %v", res.Failure)
	}
	if res := RunRotate(ctx, issued.AccessToken, p, deps); res.Failure != RotateFailureWrongType {
		t.Fatalf("expected wrong-type failure, got %v", res.Failure)
	}
	if res := RunRotate(ctx, issued.RefreshToken, mustPrincipal(t, 4), deps); res.Failure != RotateFailureSubjectMismatch {
		t.Fatalf("expected subject mismatch, got %v", res.Failure)
	}

	noJTI, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.MapClaims{
		"sub":        "3",
		"token_type": "refresh",
		"exp":        time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("flow-secret-flow-secret-flow-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if res := RunRotate(ctx, noJTI, p, deps); res.Failure != RotateFailureMissingJTI {
		t.Fatalf("expected missing jti, got %v", res.Failure)
	}

	st.checkErr = errors.New("down")
	if res := RunRotate(ctx, issued.RefreshToken, p, deps); res.Failure != RotateFailureStoreCheck {
		t.Fatalf("expected store check failure, got %v", res.Failure)
	}
	st.checkErr = nil

	first := RunRotate(ctx, issued.RefreshToken, p, deps)
	if first.Failure != RotateFailureNone {
		t.Fatalf("first rotate: %v (%v)", first.Failure, first.Err)
	}
	if first.Issued.JTI == issued.JTI {
		t.Fatal("expected a new jti")
	}
	if _, err := m.Decode(first.Issued.RefreshToken); err != nil {
		t.Fatalf("decode new refresh: %v", err)
	}

	if res := RunRotate(ctx, issued.RefreshToken, p, deps); res.Failure != RotateFailureNotLive {
		t.Fatalf("expected not-live failure on reuse, got %v", res.Failure)
	}
}

// raceStore reports every token as live but lets only the first Revoke win,
// modelling a second presenter that passed the liveness check concurrently.
type raceStore struct {
	*fakeStore
}

func (r raceStore) IsValid(context.Context, string) (bool, error) { return true, nil }

func TestRunRotateLoserReportsReplay(t *testing.T) {
	st := newFakeStore()
	_, deps := newFlowDeps(t, st)
	ctx := context.Background()
	p := mustPrincipal(t, 3)

	issued := RunIssue(ctx, p, deps.Issue)
	deps.Store = raceStore{st}

	if res := RunRotate(ctx, issued.RefreshToken, p, deps); res.Failure != RotateFailureNone {
		t.Fatalf("winner: %v", res.Err)
	}
	res := RunRotate(ctx, issued.RefreshToken, p, deps)
	if res.Failure != RotateFailureReplay {
		t.Fatalf("expected replay failure, got %v", res.Failure)
	}
	if res.Issued.RefreshToken != "" {
		t.Fatal("loser must not receive tokens")
	}
}

func TestRunRevoke(t *testing.T) {
	st := newFakeStore()
	_, deps := newFlowDeps(t, st)
	ctx := context.Background()
	p := mustPrincipal(t, 3)
	revokeDeps := RevokeDeps{Decode: deps.Decode, Store: st}

	issued := RunIssue(ctx, p, deps.Issue)

	if res := RunRevoke(ctx, issued.AccessToken, revokeDeps); res.Failure != RevokeFailureWrongType {
		t.Fatalf("expected wrong-type failure, got %v", res.Failure)
	}
	res := RunRevoke(ctx, issued.RefreshToken, revokeDeps)
	if res.Failure != RevokeFailureNone || !res.Deleted {
		t.Fatalf("first revoke: %+v", res)
	}
	res = RunRevoke(ctx, issued.RefreshToken, revokeDeps)
	if res.Failure != RevokeFailureNone || res.Deleted {
		t.Fatalf("second revoke should be a no-op: %+v", res)
	}
}
