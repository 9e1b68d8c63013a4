// Package enginetest builds an in-memory Engine for tests of the packages
// that sit on top of it.
package enginetest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/repository/memory"
)

// Message is one captured notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Outbox records every message instead of sending it.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
}

func (o *Outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, Message{To: to, Subject: subject, Body: body})
	return nil
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

// Last returns the most recent message.
func (o *Outbox) Last(t testing.TB) Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.msgs) == 0 {
		t.Fatal("no message sent")
	}
	return o.msgs[len(o.msgs)-1]
}

// VerificationToken extracts the token query parameter of the last message.
func (o *Outbox) VerificationToken(t testing.TB) string {
	t.Helper()
	body := o.Last(t).Body
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("no token in message: %s", body)
	}
	rest := body[i+len("token="):]
	if end := strings.IndexAny(rest, "\"&< "); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// ResetCode extracts the highlighted code of the last message.
func (o *Outbox) ResetCode(t testing.TB) string {
	t.Helper()
	body := o.Last(t).Body
	start := strings.Index(body, "<strong>")
	end := strings.Index(body, "</strong>")
	if start < 0 || end < start {
		t.Fatalf("no code in message: %s", body)
	}
	return body[start+len("<strong>") : end]
}

// Config returns a valid configuration with cheap hashing.
func Config() accountauth.Config {
	cfg := accountauth.DefaultConfig()
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

// Env is a built Engine with its in-memory collaborators.
type Env struct {
	Engine   *accountauth.Engine
	Accounts *memory.Accounts
	Outbox   *Outbox
}

// Option adjusts the builder or the configuration before Build.
type Option func(b *accountauth.Builder, cfg *accountauth.Config)

// New builds an Engine on a memory repository and an Outbox.
func New(t testing.TB, opts ...Option) *Env {
	t.Helper()

	env := &Env{Accounts: memory.New(), Outbox: &Outbox{}}
	cfg := Config()
	b := accountauth.New().
		WithRepository(env.Accounts).
		WithNotifier(env.Outbox)
	for _, opt := range opts {
		opt(b, &cfg)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	env.Engine = engine
	return env
}

// RegisterVerified signs email up and follows the verification link.
func (e *Env) RegisterVerified(t testing.TB, email, password string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.Engine.Register(ctx, accountauth.RegisterInput{Email: email, Name: "Test User", Password: password}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Engine.VerifyEmail(ctx, e.Outbox.VerificationToken(t)); err != nil {
		t.Fatalf("verify email: %v", err)
	}
}

// Login returns an access and refresh token for a verified account.
func (e *Env) Login(t testing.TB, email, password string) (string, string) {
	t.Helper()
	res, err := e.Engine.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res.AccessToken, res.RefreshToken
}
