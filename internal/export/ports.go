// Package export defines the outbound mirroring port: implementations copy
// committed transactions into an external system for reporting.
package export

import (
	"context"

	"pace/internal/core"
)

// TransactionExporter appends one committed transaction to an external sink
// and returns an implementation-specific reference.
type TransactionExporter interface {
	Append(ctx context.Context, t core.Transaction) (string, error)
}
