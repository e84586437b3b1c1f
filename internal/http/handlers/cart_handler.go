package handlers

import (
	"errors"

	"omnishop/internal/log"
	"omnishop/internal/services"
	"omnishop/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

type addItemBody struct {
	ProductID string `json:"productId" form:"productId"`
	VariantID string `json:"variantId" form:"variantId"`
	Qty       int    `json:"qty" form:"qty"`
}

type setQtyBody struct {
	Qty *int `json:"qty" form:"qty"`
}

func badRequest(c *fiber.Ctx, field string) error {
	log.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + field})
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	sid := ensureSID(c)
	return c.JSON(h.Cart.View(c.UserContext(), sid, currentUserID(c)))
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	sid := ensureSID(c)
	var body addItemBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "body")
	}
	productID, ok := validate.ID(body.ProductID)
	if !ok {
		return badRequest(c, "productId")
	}
	variantID, ok := validate.ID(body.VariantID)
	if !ok {
		return badRequest(c, "variantId")
	}

	view, err := h.Cart.Add(c.UserContext(), sid, currentUserID(c), productID, variantID, validate.Qty(body.Qty))
	if errors.Is(err, services.ErrUnknownVariant) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "This item is no longer available"})
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	sid := ensureSID(c)
	itemID, ok := validate.ItemID(c.Params("id"))
	if !ok {
		return badRequest(c, "id")
	}
	var body setQtyBody
	if err := c.BodyParser(&body); err != nil || body.Qty == nil {
		return badRequest(c, "qty")
	}
	return c.JSON(h.Cart.Update(c.UserContext(), sid, currentUserID(c), itemID, validate.SetQty(*body.Qty)))
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	sid := ensureSID(c)
	itemID, ok := validate.ItemID(c.Params("id"))
	if !ok {
		return badRequest(c, "id")
	}
	return c.JSON(h.Cart.Remove(c.UserContext(), sid, currentUserID(c), itemID))
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	sid := ensureSID(c)
	return c.JSON(h.Cart.Clear(c.UserContext(), sid, currentUserID(c)))
}

func (h *CartHandler) Contains(c *fiber.Ctx) error {
	sid := ensureSID(c)
	productID, ok := validate.ID(c.Query("productId"))
	if !ok {
		return badRequest(c, "productId")
	}
	variantID, ok := validate.ID(c.Query("variantId"))
	if !ok {
		return badRequest(c, "variantId")
	}
	return c.JSON(fiber.Map{"inCart": h.Cart.Contains(c.UserContext(), sid, currentUserID(c), productID, variantID)})
}
