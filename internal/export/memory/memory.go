// Package memory is an in-process exporter used in tests and as a stand-in
// when no spreadsheet is configured.
package memory

import (
	"context"
	"strconv"
	"sync"

	"pace/internal/core"
	"pace/internal/export"
)

type Exporter struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ export.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Append(ctx context.Context, t core.Transaction) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, t)
	return strconv.Itoa(len(e.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (e *Exporter) Rows() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Transaction, len(e.rows))
	copy(out, e.rows)
	return out
}
