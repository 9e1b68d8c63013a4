package accountauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/accountauth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type memoryRepo struct {
	mu      sync.Mutex
	byID    map[string]*Account
	byEmail map[string]string

	updates int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func cloneAccount(a *Account) *Account {
	c := *a
	return &c
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(r.byID[id]), nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *memoryRepo) Create(_ context.Context, in NewAccount) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[in.Email]; ok {
		return nil, ErrDuplicateEmail
	}
	a := &Account{
		ID:                    in.ID,
		Email:                 in.Email,
		Name:                  in.Name,
		Role:                  in.Role,
		PasswordHash:          in.PasswordHash,
		LoginMethod:           in.LoginMethod,
		Status:                in.Status,
		PendingProviderSecret: in.PendingProviderSecret,
		CreatedAt:             in.CreatedAt,
		UpdatedAt:             in.CreatedAt,
	}
	r.byID[a.ID] = a
	r.byEmail[a.Email] = a.ID
	return cloneAccount(a), nil
}

func (r *memoryRepo) Update(_ context.Context, id string, upd AccountUpdate) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if upd.IfResetOTPHash != nil && a.ResetOTPHash != *upd.IfResetOTPHash {
		return nil, ErrStaleAccount
	}
	upd.Apply(a)
	r.updates++
	return cloneAccount(a), nil
}

func (r *memoryRepo) get(t *testing.T, email string) *Account {
	t.Helper()
	a, err := r.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("account %s: %v", email, err)
	}
	return a
}

func (r *memoryRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

type sentMail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return n.sent[len(n.sent)-1]
}

// verificationToken pulls the token query parameter out of the last
// verification mail.
func (n *fakeNotifier) verificationToken(t *testing.T) string {
	t.Helper()
	body := n.last(t).body
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("no token in mail body: %s", body)
	}
	rest := body[i+len("token="):]
	end := strings.IndexAny(rest, "\"&< ")
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

// resetCode pulls the first run of digits of the configured length out of
// the last reset mail.
func (n *fakeNotifier) resetCode(t *testing.T, digits int) string {
	t.Helper()
	body := n.last(t).body
	run := 0
	for i := 0; i < len(body); i++ {
		if body[i] >= '0' && body[i] <= '9' {
			run++
			if run == digits && (i+1 == len(body) || body[i+1] < '0' || body[i+1] > '9') {
				return body[i-digits+1 : i+1]
			}
			continue
		}
		run = 0
	}
	t.Fatalf("no %d-digit code in mail body: %s", digits, body)
	return ""
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMFA struct {
	mu sync.Mutex

	challenge   string
	session     string
	direct      *ProviderTokens
	initiateErr error
	completeErr error
	tokens      *ProviderTokens

	provisioned map[string]string
	provisionN  int
}

func (f *fakeMFA) InitiateChallenge(_ context.Context, email, password string) (*ChallengeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	if f.provisioned[email] != password {
		return nil, ErrMFACredentials
	}
	if f.direct != nil {
		return &ChallengeResult{Tokens: f.direct}, nil
	}
	return &ChallengeResult{Challenge: f.challenge, Session: f.session}, nil
}

func (f *fakeMFA) CompleteChallenge(_ context.Context, _, session, challenge, code string) (*ProviderTokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	if session != f.session || challenge != f.challenge || code != "123456" {
		return nil, ErrMFACodeMismatch
	}
	return f.tokens, nil
}

func (f *fakeMFA) ProvisionIdentity(_ context.Context, email, temporaryPassword string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.provisioned == nil {
		f.provisioned = make(map[string]string)
	}
	f.provisioned[email] = temporaryPassword
	f.provisionN++
	return "sub-" + email, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.VerificationSecret = []byte(strings.Repeat("v", 32))
	cfg.Tokens.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.Tokens.RefreshSecret = []byte(strings.Repeat("r", 32))
	cfg.Tokens.ResetSecret = []byte(strings.Repeat("p", 32))
	cfg.Tokens.MFASessionSecret = []byte(strings.Repeat("m", 32))
	cfg.OTP.Secret = []byte(strings.Repeat("o", 32))
	cfg.Verification.ConfirmURL = "https://app.example.com/confirm-email"
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine   *Engine
	repo     *memoryRepo
	notifier *fakeNotifier
	clock    *testClock
	mfa      *fakeMFA
}

type testOption func(*Builder, *Config)

func withRedisClient(rdb *redis.Client) testOption {
	return func(b *Builder, _ *Config) { b.WithRedis(rdb) }
}

func withConfig(f func(*Config)) testOption {
	return func(_ *Builder, cfg *Config) { f(cfg) }
}

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:     newMemoryRepo(),
		notifier: &fakeNotifier{},
		clock:    newTestClock(),
		mfa:      &fakeMFA{challenge: "SOFTWARE_TOKEN_MFA", session: "provider-session", tokens: &ProviderTokens{IDToken: "id", AccessToken: "pa", RefreshToken: "pr", ExpiresIn: 3600}},
	}
	cfg := testConfig()
	b := New().
		WithRepository(env.repo).
		WithNotifier(env.notifier).
		WithMFAProvider(env.mfa).
		WithClock(env.clock.Now)
	for _, opt := range opts {
		opt(b, &cfg)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	env.engine = engine
	return env
}

const testPassword = "Str0ng!pass"

// registerVerified registers email and follows the mailed verification link.
func (env *testEnv) registerVerified(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.Register(ctx, RegisterInput{Email: email, Name: "Test", Password: testPassword}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := env.engine.VerifyEmail(ctx, env.notifier.verificationToken(t)); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error of kind %s, got %v", kind, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, e.Kind, err)
	}
	return e
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) contains(s string) bool {
	return strings.Contains(b.String(), s)
}
