package handlers

import (
	"omnishop/internal/cart"
	"omnishop/internal/config"
	"omnishop/internal/localstore"
	"omnishop/internal/repos"
	"omnishop/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth  *services.AuthService
	Carts *cart.Registry

	AuthHandler    *AuthHandler
	CartHandler    *CartHandler
	ProductHandler *ProductHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	prodRepo := repos.NewProductRepo(db)
	cartRepo := repos.NewCartRepo(db)
	locals := localstore.NewSQL(db)

	carts := cart.NewRegistry(cartRepo, func(sid string) cart.LocalStorage {
		return locals.For(sid)
	}, cfg.SessionIdle, cart.WithSyncTimeout(cfg.SyncTimeout))

	authSvc := &services.AuthService{Users: repos.NewUserRepo(db)}
	cartSvc := services.NewCartService(carts, prodRepo)

	return &Deps{
		Auth:           authSvc,
		Carts:          carts,
		AuthHandler:    &AuthHandler{Auth: authSvc, Cart: cartSvc},
		CartHandler:    &CartHandler{Cart: cartSvc},
		ProductHandler: &ProductHandler{Products: prodRepo},
	}
}

// Close waits for in-flight cart syncs and drops the session stores.
func (d *Deps) Close() { d.Carts.Close() }
