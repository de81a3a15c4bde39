package sheets

import (
	"context"

	"dailyfocus/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionAppender interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)
