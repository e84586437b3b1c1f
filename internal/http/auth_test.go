package handlers_test

import (
	"net/http"
	"testing"

	"omnishop/internal/config"
)

const aliceForm = "email=alice@omnishop.test&password=Passw0rd!"

type loginResp struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Cart cartView `json:"cart"`
}

func TestLoginMergesAnonymousCart(t *testing.T) {
	ta := newTestApp(t, nil)
	cl := ta.client(t)

	wantStatus(t, cl.json(http.MethodPost, "/api/v1/cart/items", `{"productId":"tee-001","variantId":"tee-001-s","qty":2}`), http.StatusCreated)
	wantStatus(t, cl.json(http.MethodPost, "/api/v1/cart/items", `{"productId":"cap-001","variantId":"cap-001-one"}`), http.StatusCreated)

	resp := cl.form("/login", aliceForm)
	wantStatus(t, resp, http.StatusOK)
	lr := decode[loginResp](t, resp)
	if lr.User.ID != "u-alice" {
		t.Fatalf("user = %+v", lr.User)
	}
	if lr.Cart.ItemCount != 3 || len(lr.Cart.Items) != 2 {
		t.Fatalf("merged cart: %+v", lr.Cart)
	}

	var rows int
	if err := ta.db.Get(&rows, `SELECT COUNT(*) FROM cart_items ci JOIN carts c ON c.id = ci.cart_id WHERE c.user_id = 'u-alice'`); err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Fatalf("remote lines = %d, want 2", rows)
	}
	var local int
	if err := ta.db.Get(&local, `SELECT COUNT(*) FROM local_storage WHERE session_id = ?`, cl.sid); err != nil {
		t.Fatal(err)
	}
	if local != 0 {
		t.Fatal("local cart not drained after merge")
	}

	// a fresh device logging in sees the same cart
	other := ta.client(t)
	lr = decode[loginResp](t, other.form("/login", aliceForm))
	if lr.Cart.ItemCount != 3 {
		t.Fatalf("second device itemCount = %d, want 3", lr.Cart.ItemCount)
	}
}

func TestAuthenticatedMutationsReachRemoteCart(t *testing.T) {
	ta := newTestApp(t, nil)
	cl := ta.client(t)
	wantStatus(t, cl.form("/login", aliceForm), http.StatusOK)

	wantStatus(t, cl.json(http.MethodPost, "/api/v1/cart/items", `{"productId":"mug-001","variantId":"mug-001-2pk","qty":4}`), http.StatusCreated)
	ta.deps.Carts.Wait()

	var qty int
	if err := ta.db.Get(&qty, `SELECT quantity FROM cart_items WHERE variant_id = 'mug-001-2pk'`); err != nil {
		t.Fatalf("remote line: %v", err)
	}
	if qty != 4 {
		t.Fatalf("remote qty = %d, want 4", qty)
	}

	wantStatus(t, cl.json(http.MethodDelete, "/api/v1/cart", ""), http.StatusOK)
	ta.deps.Carts.Wait()
	var rows int
	if err := ta.db.Get(&rows, `SELECT COUNT(*) FROM cart_items`); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Fatalf("remote lines after clear = %d", rows)
	}
}

func TestLogoutSwitchesToAnonymousCart(t *testing.T) {
	ta := newTestApp(t, nil)
	cl := ta.client(t)
	wantStatus(t, cl.json(http.MethodPost, "/api/v1/cart/items", `{"productId":"cap-001","variantId":"cap-001-one"}`), http.StatusCreated)
	wantStatus(t, cl.form("/login", aliceForm), http.StatusOK)

	resp := cl.form("/logout", "")
	wantStatus(t, resp, http.StatusOK)
	v := decode[struct {
		Cart cartView `json:"cart"`
	}](t, resp).Cart
	if len(v.Items) != 0 {
		t.Fatalf("anonymous cart after logout: %+v", v)
	}

	// the user's cart is still there on the next login
	lr := decode[loginResp](t, cl.form("/login", aliceForm))
	if lr.Cart.ItemCount != 1 {
		t.Fatalf("itemCount after re-login = %d, want 1", lr.Cart.ItemCount)
	}
}

func TestLoginFailures(t *testing.T) {
	ta := newTestApp(t, nil)
	cl := ta.client(t)

	wantStatus(t, cl.form("/login", "email=alice@omnishop.test&password=Wr0ngpass!"), http.StatusUnauthorized)
	wantStatus(t, cl.form("/login", "email=not-an-email&password=Passw0rd!"), http.StatusUnauthorized)
	wantStatus(t, cl.form("/login", "email=alice@omnishop.test&password=short"), http.StatusUnauthorized)

	// still anonymous: adds stay out of the remote cart
	wantStatus(t, cl.json(http.MethodPost, "/api/v1/cart/items", `{"productId":"cap-001","variantId":"cap-001-one"}`), http.StatusCreated)
	var rows int
	if err := ta.db.Get(&rows, `SELECT COUNT(*) FROM cart_items`); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Fatalf("failed login reached the remote cart: %d rows", rows)
	}
}

func TestLoginThrottle(t *testing.T) {
	ta := newTestApp(t, func(cfg *config.Config) { cfg.LoginRateMax = 2 })
	cl := ta.client(t)

	wantStatus(t, cl.form("/login", "email=alice@omnishop.test&password=Wr0ngpass!"), http.StatusUnauthorized)
	wantStatus(t, cl.form("/login", aliceForm), http.StatusOK)
	wantStatus(t, cl.form("/login", aliceForm), http.StatusTooManyRequests)
}
