package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	queried bool
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried = true
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.Token(context.Background(), ProviderGemini)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderOpenAI)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSetToken(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{name: "gemini", provider: "gemini", key: "secret"},
		{name: "anthropic mixed case", provider: " Anthropic ", key: "secret"},
		{name: "empty key", provider: "openai", key: " ", wantErr: true},
		{name: "unknown provider", provider: "qwen", key: "secret", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{}
			store := NewStore(exec)
			err := store.SetToken(context.Background(), tc.provider, tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetToken error: %v", err)
			}
			if len(exec.exec.args) != 3 {
				t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
			}
			if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
				t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
			}
			raw, ok := exec.exec.args[2].([]byte)
			if !ok {
				t.Fatalf("properties arg = %T", exec.exec.args[2])
			}
			var props map[string]string
			if err := json.Unmarshal(raw, &props); err != nil {
				t.Fatalf("decode properties: %v", err)
			}
			if props["source"] != "deckctl" {
				t.Fatalf("properties = %v", props)
			}
			if _, err := time.Parse(time.RFC3339, props["rotated_at"]); err != nil {
				t.Fatalf("rotated_at = %q: %v", props["rotated_at"], err)
			}
		})
	}
}

func TestResolvePrefersConfiguredKey(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)
	key, err := store.Resolve(context.Background(), ProviderGemini, " env-key ")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if key != "env-key" || exec.queried {
		t.Fatalf("key = %q queried = %v, want env-key without a query", key, exec.queried)
	}

	key, err = store.Resolve(context.Background(), ProviderGemini, "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if key != "stored" {
		t.Fatalf("key = %q, want stored", key)
	}

	var nilStore *Store
	if key, _ := nilStore.Resolve(context.Background(), ProviderGemini, ""); key != "" {
		t.Fatalf("nil store key = %q", key)
	}
}
