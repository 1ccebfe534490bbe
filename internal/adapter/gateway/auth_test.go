package gateway

import (
	"errors"
	"testing"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

func TestStaticTokenAuthValid(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "secret-123", Name: "renderer"}})

	info, err := auth.Authenticate("secret-123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.Name != "renderer" {
		t.Errorf("Name = %q", info.Name)
	}
}

func TestStaticTokenAuthReturnsFreshInfo(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "secret-123", Name: "renderer"}})

	a, _ := auth.Authenticate("secret-123")
	a.ContentID = "window-a"
	b, _ := auth.Authenticate("secret-123")
	if b.ContentID != "" {
		t.Errorf("ContentID leaked between connections: %q", b.ContentID)
	}
}

func TestStaticTokenAuthInvalid(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "secret-123", Name: "renderer"}})

	_, err := auth.Authenticate("wrong-token")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrGatewayAuthFailed) {
		t.Errorf("err = %v, want ErrGatewayAuthFailed", err)
	}
}

func TestStaticTokenAuthEmpty(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "", Name: "blank"}})

	if _, err := auth.Authenticate(""); err == nil {
		t.Fatal("expected error for empty token list")
	}
}
