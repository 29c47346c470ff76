package application

import (
	"context"

	"homechat/internal/domain"
)

type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt string, turns []domain.Turn) (string, error)
}
