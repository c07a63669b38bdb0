package agent

import (
	"errors"
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry("swap-agent",
		Descriptor{ID: "swap-agent", Name: "Swap Agent", Endpoint: "http://127.0.0.1:8080/", RequiresConnectedWallet: true},
		Descriptor{ID: "functional-data-agent", Endpoint: "http://127.0.0.1:8081"},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := testRegistry(t)

	d, err := r.Get("swap-agent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Endpoint != "http://127.0.0.1:8080" {
		t.Fatalf("expected trailing slash to be trimmed, got %s", d.Endpoint)
	}
	if !d.RequiresConnectedWallet {
		t.Fatal("expected swap agent to require a wallet")
	}

	data, _ := r.Get("functional-data-agent")
	if data.Name != "functional-data-agent" {
		t.Fatalf("expected name to default to id, got %s", data.Name)
	}

	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegistryOrderAndNext(t *testing.T) {
	r := testRegistry(t)

	list := r.List()
	if len(list) != 2 || list[0].ID != "functional-data-agent" {
		t.Fatalf("unexpected order %+v", list)
	}
	if r.Default().ID != "swap-agent" {
		t.Fatalf("unexpected default %s", r.Default().ID)
	}
	if r.Next("swap-agent").ID != "functional-data-agent" {
		t.Fatal("expected next to wrap around")
	}
}

func TestRegistryValidation(t *testing.T) {
	if _, err := NewRegistry(""); err == nil {
		t.Fatal("expected error for empty registry")
	}
	if _, err := NewRegistry("", Descriptor{ID: "a"}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewRegistry("b", Descriptor{ID: "a", Endpoint: "http://x"}); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected unknown default error, got %v", err)
	}
	if _, err := NewRegistry("", Descriptor{ID: "a", Endpoint: "http://x"}, Descriptor{ID: "a", Endpoint: "http://y"}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
