// Package rowloader resolves events back to their source rows, batching
// concurrent lookups into one request per table.
package rowloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/streamgate/internal/domain"
	"github.com/rpattn/streamgate/internal/source"

	"github.com/graph-gophers/dataloader"
)

// ErrRowNotFound is returned when the source no longer has the row.
var ErrRowNotFound = errors.New("source row not found")

// RowFetcher reads rows by id.
type RowFetcher interface {
	FetchByIDs(ctx context.Context, table domain.SourceTable, ids []string) ([]source.Row, error)
}

// TableResolver maps a table name to its configuration.
type TableResolver func(name string) (domain.SourceTable, bool)

// RowLoader batches lookups keyed by composite key (`table:rowId`).
type RowLoader struct {
	Loader *dataloader.Loader
}

// NewRowLoader builds a loader that waits up to wait for more keys before fetching.
func NewRowLoader(fetcher RowFetcher, resolve TableResolver, wait time.Duration) *RowLoader {
	if wait <= 0 {
		wait = 5 * time.Millisecond
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		// Group keys by table, remembering each key's position
		type pending struct {
			index int
			rowID string
		}
		byTable := make(map[string][]pending)
		var tableOrder []string
		for i, k := range keys {
			table, rowID, ok := domain.SplitCompositeKey(k.String())
			if !ok {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid row key %q", k.String())}
				continue
			}
			if _, seen := byTable[table]; !seen {
				tableOrder = append(tableOrder, table)
			}
			byTable[table] = append(byTable[table], pending{index: i, rowID: rowID})
		}

		for _, name := range tableOrder {
			items := byTable[name]
			table, ok := resolve(name)
			if !ok {
				for _, item := range items {
					results[item.index] = &dataloader.Result{Error: fmt.Errorf("unknown source table %q", name)}
				}
				continue
			}

			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.rowID)
			}
			rows, err := fetcher.FetchByIDs(ctx, table, ids)
			if err != nil {
				for _, item := range items {
					results[item.index] = &dataloader.Result{Error: err}
				}
				continue
			}

			// Map row id -> row for ordering
			rowMap := make(map[string]source.Row, len(rows))
			for _, row := range rows {
				if id, ok := source.RowID(table, row); ok {
					rowMap[id] = row
				}
			}
			for _, item := range items {
				if row, ok := rowMap[item.rowID]; ok {
					results[item.index] = &dataloader.Result{Data: row}
				} else {
					results[item.index] = &dataloader.Result{Error: ErrRowNotFound}
				}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(wait))
	return &RowLoader{Loader: loader}
}

// Load resolves a single composite key.
func (l *RowLoader) Load(ctx context.Context, key string) (source.Row, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(key))()
	if err != nil {
		return nil, err
	}
	row, ok := data.(source.Row)
	if !ok {
		return nil, ErrRowNotFound
	}
	return row, nil
}

// LoadMany resolves several keys in one batch. Rows and errors are index-aligned with keys.
func (l *RowLoader) LoadMany(ctx context.Context, keys []string) ([]source.Row, []error) {
	thunks := make([]dataloader.Thunk, len(keys))
	for i, key := range keys {
		thunks[i] = l.Loader.Load(ctx, dataloader.StringKey(key))
	}

	rows := make([]source.Row, len(keys))
	errs := make([]error, len(keys))
	for i, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			errs[i] = err
			continue
		}
		row, ok := data.(source.Row)
		if !ok {
			errs[i] = ErrRowNotFound
			continue
		}
		rows[i] = row
	}
	return rows, errs
}
