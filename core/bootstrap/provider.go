package bootstrap

import (
	"context"
	"errors"
)

// Storage is the infrastructure handed to providers; Run supplies a *sqlx.DB.
type Storage interface{}

// TypedServiceProvider builds an application service graph.
type TypedServiceProvider[T any] interface {
	ProvideTyped(ctx context.Context, cfg interface{}, storage Storage) (T, error)
}

// TypedServiceProviderFunc adapts a plain function to TypedServiceProvider.
type TypedServiceProviderFunc[T any] func(ctx context.Context, cfg interface{}, storage Storage) (T, error)

// ProvideTyped calls f.
func (f TypedServiceProviderFunc[T]) ProvideTyped(ctx context.Context, cfg interface{}, storage Storage) (T, error) {
	return f(ctx, cfg, storage)
}

// Provide runs p against the storage opened by Run.
func Provide[T any](ctx context.Context, p TypedServiceProvider[T], cfg interface{}, res *Result) (T, error) {
	var zero T
	switch {
	case p == nil:
		return zero, errors.New("bootstrap: nil service provider")
	case res == nil:
		return zero, errors.New("bootstrap: nil bootstrap result")
	}
	return p.ProvideTyped(ctx, cfg, res.DB)
}
