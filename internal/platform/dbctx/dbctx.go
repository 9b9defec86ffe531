package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context and, when the caller is inside a transaction, the
// transaction handle repositories must use instead of their own connection.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func Background() Context { return Context{Ctx: context.Background()} }

func With(ctx context.Context) Context { return Context{Ctx: ctx} }

// DB returns the transaction when set, else base, bound to the context.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = base
	}
	if c.Ctx == nil {
		return db
	}
	return db.WithContext(c.Ctx)
}
