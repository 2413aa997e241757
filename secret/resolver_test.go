package secret

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("AUTHCACHE_TEST_VAR", "value")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain value", "no vars here", "no vars here", false},
		{"braced var", "prefix-${AUTHCACHE_TEST_VAR}", "prefix-value", false},
		{"escaped dollar", "cost: $$5", "cost: $5", false},
		{"missing var", "${AUTHCACHE_DEFINITELY_UNSET}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for missing variable")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandEnvStrict failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in           string
		provider, ok string
	}{
		{"secretref:env:EDGE_TOKEN", "env", "yes"},
		{"secretref:file:/run/secrets/key", "file", "yes"},
		{"plain value", "", "no"},
		{"secretref:env:", "", "no"},
		{"secretref::ref", "", "no"},
	}
	for _, tt := range tests {
		provider, _, ok := ParseSecretRef(tt.in)
		if ok != (tt.ok == "yes") {
			t.Errorf("ParseSecretRef(%q) ok = %v", tt.in, ok)
			continue
		}
		if ok && provider != tt.provider {
			t.Errorf("ParseSecretRef(%q) provider = %q, want %q", tt.in, provider, tt.provider)
		}
	}
}

func TestResolver_EnvProvider(t *testing.T) {
	t.Setenv("AUTHCACHE_TEST_TOKEN", "tok-123")

	r := NewResolver()
	got, err := r.ResolveValue(context.Background(), "secretref:env:AUTHCACHE_TEST_TOKEN")
	if err != nil {
		t.Fatalf("ResolveValue failed: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("got %q, want tok-123", got)
	}

	if _, err := r.ResolveValue(context.Background(), "secretref:env:AUTHCACHE_DEFINITELY_UNSET"); err == nil {
		t.Error("unset variable should error")
	}
}

func TestResolver_FileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing-key")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}

	r := NewResolver()
	got, err := r.ResolveValue(context.Background(), "secretref:file:"+path)
	if err != nil {
		t.Fatalf("ResolveValue failed: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q, want trimmed secret", got)
	}
}

func TestResolver_PassthroughAndErrors(t *testing.T) {
	r := NewResolver()
	ctx := context.Background()

	got, err := r.ResolveValue(ctx, "plain-token")
	if err != nil || got != "plain-token" {
		t.Errorf("plain value: got %q, %v", got, err)
	}

	got, err = r.ResolveValue(ctx, "")
	if err != nil || got != "" {
		t.Errorf("empty value: got %q, %v", got, err)
	}

	if _, err := r.ResolveValue(ctx, "secretref:vault:path/to/key"); err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Errorf("unknown provider error = %v", err)
	}
}
