package application

import (
	"context"

	"homechat/internal/domain"
)

// Dispatcher carries out one action and describes the outcome in a single
// user-facing line. Implementations never fail: errors become the line.
type Dispatcher interface {
	Dispatch(ctx context.Context, action domain.Action) string
	Mode() string
}
