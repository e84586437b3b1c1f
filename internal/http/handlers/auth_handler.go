package handlers

import (
	"errors"

	"omnishop/internal/log"
	"omnishop/internal/services"
	"omnishop/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth *services.AuthService
	Cart *services.CartService
}

func loginFailed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
}

// Login binds the session to the user and merges the session's anonymous cart
// into the user's remote cart.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := ensureSID(c)
	email := c.FormValue("email")
	pass := c.FormValue("password")
	if _, ok := validate.Email(email); !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_format"})
		return loginFailed(c)
	}
	if !validate.Password(pass) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return loginFailed(c)
	}

	u, err := h.Auth.Login(c.UserContext(), sid, email, pass)
	if errors.Is(err, services.ErrBadCreds) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return loginFailed(c)
	}
	if err != nil {
		return err
	}
	c.Locals("user", u)

	view := h.Cart.View(c.UserContext(), sid, u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": email, "cart_items": view.ItemCount})
	return c.JSON(fiber.Map{"user": u, "cart": view})
}

// Logout unbinds the user; the session keeps going with an anonymous cart.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c)
	if err := h.Auth.Logout(c.UserContext(), sid); err != nil {
		return err
	}
	c.Locals("user", nil)
	view := h.Cart.View(c.UserContext(), sid, "")
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.JSON(fiber.Map{"cart": view})
}
