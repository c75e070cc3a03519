package cache

import (
	"context"
	"testing"
)

func TestInMemoryGetSetRoundTrip(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "sess1", "SYSADMIN", "database:DB1", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := c.Get(ctx, "sess1", "SYSADMIN", "database:DB1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !ok || v != "value" {
		t.Fatalf("Get = (%v, %v), want (value, true)", v, ok)
	}
}

func TestInMemoryInvalidateRoleScopesToSessionAndRole(t *testing.T) {
	c := NewInMemory()
	ctx := context.Background()

	_ = c.Set(ctx, "sess1", "SYSADMIN", "database:DB1", "a")
	_ = c.Set(ctx, "sess1", "ACCOUNTADMIN", "database:DB1", "b")
	_ = c.Set(ctx, "sess2", "SYSADMIN", "database:DB1", "c")

	if err := c.InvalidateRole(ctx, "sess1", "SYSADMIN"); err != nil {
		t.Fatalf("InvalidateRole: %v", err)
	}

	if _, ok, _ := c.Get(ctx, "sess1", "SYSADMIN", "database:DB1"); ok {
		t.Error("expected sess1/SYSADMIN entry to be invalidated")
	}

	if _, ok, _ := c.Get(ctx, "sess1", "ACCOUNTADMIN", "database:DB1"); !ok {
		t.Error("sess1/ACCOUNTADMIN entry should survive invalidating SYSADMIN")
	}

	if _, ok, _ := c.Get(ctx, "sess2", "SYSADMIN", "database:DB1"); !ok {
		t.Error("sess2/SYSADMIN entry should survive invalidating sess1's SYSADMIN")
	}
}

func TestInMemoryGetMiss(t *testing.T) {
	c := NewInMemory()

	_, ok, err := c.Get(context.Background(), "sess1", "SYSADMIN", "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if ok {
		t.Error("expected miss for unset key")
	}
}
