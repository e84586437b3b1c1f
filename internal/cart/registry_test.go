package cart_test

import (
	"context"
	"testing"
	"time"

	"omnishop/internal/cart"
	"omnishop/internal/localstore"
)

func TestRegistryReusesStorePerSession(t *testing.T) {
	gw := newFakeGateway()
	locals := map[string]*localstore.Memory{}
	reg := cart.NewRegistry(gw, func(sid string) cart.LocalStorage {
		locals[sid] = localstore.NewMemory()
		return locals[sid]
	}, 0)
	ctx := context.Background()

	a := reg.Open(ctx, "sid-a", "")
	a.AddItem(shirtM)
	if reg.Open(ctx, "sid-a", "") != a {
		t.Fatal("same session must get the same store")
	}
	b := reg.Open(ctx, "sid-b", "")
	if b == a || b.ItemCount() != 0 {
		t.Fatal("sessions must not share carts")
	}
	if reg.Len() != 2 {
		t.Fatalf("want 2 sessions, got %d", reg.Len())
	}
	reg.Close()
}

func TestRegistryMergesOnLogin(t *testing.T) {
	gw := newFakeGateway()
	local := localstore.NewMemory()
	reg := cart.NewRegistry(gw, func(string) cart.LocalStorage { return local }, 0)
	ctx := context.Background()

	reg.Open(ctx, "sid-a", "").AddItem(mugStd)
	st := reg.Open(ctx, "sid-a", "u-1")

	if st.UserID() != "u-1" || st.ItemCount() != 1 {
		t.Fatalf("want merged user cart, got %q %+v", st.UserID(), st.Items())
	}
	if len(gw.carts["u-1"]) != 1 {
		t.Fatalf("remote cart not populated: %+v", gw.carts["u-1"])
	}
	reg.Close()
}

func TestRegistryFreshStoreForUserMergesLeftovers(t *testing.T) {
	gw := newFakeGateway()
	local := localstore.NewMemory()
	seedLocal(t, local, line(shirtM, 2))
	reg := cart.NewRegistry(gw, func(string) cart.LocalStorage { return local }, 0)

	st := reg.Open(context.Background(), "sid-a", "u-1")

	if st.ItemCount() != 2 || gw.count("add:") != 1 {
		t.Fatalf("leftover local items must merge, got %+v calls=%v", st.Items(), gw.Calls())
	}
	reg.Close()
}

func TestRegistryRetriesFailedMergeOnNextOpen(t *testing.T) {
	gw := newFakeGateway()
	gw.failAdd = 2
	local := localstore.NewMemory()
	reg := cart.NewRegistry(gw, func(string) cart.LocalStorage { return local }, 0)
	ctx := context.Background()

	anon := reg.Open(ctx, "sid-a", "")
	anon.AddItem(shirtM)
	anon.AddItem(mugStd)

	if st := reg.Open(ctx, "sid-a", "u-1"); st.Status() != cart.StatusFailed {
		t.Fatalf("want failed merge, got %s", st.Status())
	}
	st := reg.Open(ctx, "sid-a", "u-1")

	if st.UserID() != "u-1" || st.Status() != cart.StatusIdle {
		t.Fatalf("want merged user store, got %q %s", st.UserID(), st.Status())
	}
	for _, it := range gw.carts["u-1"] {
		if it.Variant.ID == shirtM.Variant.ID && it.Quantity != 2 {
			t.Fatalf("shirt quantity %d after retried merge, anonymous cart had 2", it.Quantity)
		}
	}
	if st.ItemCount() != 3 {
		t.Fatalf("want 3 items, got %+v", st.Items())
	}
	reg.Close()
}

func TestRegistryCloseDrainsAndDropsStores(t *testing.T) {
	gw := newFakeGateway()
	reg := cart.NewRegistry(gw, func(string) cart.LocalStorage { return localstore.NewMemory() }, time.Hour)
	ctx := context.Background()

	st := reg.Open(ctx, "sid-a", "u-1")
	gw.block = make(chan struct{})
	st.AddItem(mugStd)
	go close(gw.block)

	reg.Close()

	if gw.count("add:") != 1 {
		t.Fatalf("close must wait for the pending add, got %v", gw.Calls())
	}
	if reg.Len() != 0 {
		t.Fatalf("want no sessions after close, got %d", reg.Len())
	}
}
