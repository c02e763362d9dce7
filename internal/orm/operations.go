package orm

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/nerrad567/recordstore/internal/infrastructure/database"
)

// CreateTable creates T's table if it does not exist.
func CreateTable[T Record](ctx context.Context, m *Manager) error {
	desc, err := DescribeOf[T]()
	if err != nil {
		return err
	}
	m.warnUnusedEnumKeys(desc)

	start := time.Now()
	err = m.db.Run(ctx, CreateTableSQL(desc.Table, desc.Columns))
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrTableCreationFailed, desc.Table, err)
	}
	m.observe(desc.Table, OpCreate, 0, start, err)
	return err
}

// InsertOrUpdate writes rec, replacing any row with the same primary key.
// When clear is true every existing row is deleted first, in the same
// transaction.
func InsertOrUpdate[T Record](ctx context.Context, m *Manager, rec T, clear bool) error {
	return InsertOrUpdateAll(ctx, m, []T{rec}, clear)
}

// InsertOrUpdateAll writes recs in one transaction. Either every record
// is stored or, on any failure, none is. When clear is true the table is
// emptied first within the same transaction.
//
// Records are encoded before any SQL runs; an encoding failure returns
// ErrEncodingFailed and leaves the table untouched.
func InsertOrUpdateAll[T Record](ctx context.Context, m *Manager, recs []T, clear bool) error {
	desc, err := DescribeOf[T]()
	if err != nil {
		return err
	}
	if len(recs) == 0 && !clear {
		return nil
	}

	stmts := make([]database.Statement, 0, len(recs)+1)
	if clear {
		stmts = append(stmts, database.Statement{SQL: DeleteAllSQL(desc.Table)})
	}

	insert := InsertOrReplaceSQL(desc.Table, desc.Names())
	for i, rec := range recs {
		rv, err := recordValue(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		args, err := bindValues(desc, m.codec, rv)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		stmts = append(stmts, database.Statement{SQL: insert, Args: args})
	}

	start := time.Now()
	err = m.db.RunBatch(ctx, stmts)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrInsertionFailed, desc.Table, err)
	}
	m.observe(desc.Table, OpUpsert, len(recs), start, err)
	if err != nil {
		return err
	}

	m.notify(desc.Table, OpUpsert, len(recs))
	return nil
}

// Query returns every row of T's table matching where, decoded as T.
// An empty where selects all rows.
//
// where is inserted into the statement verbatim. It must never carry
// untrusted input.
func Query[T Record](ctx context.Context, m *Manager, where string) ([]T, error) {
	desc, err := DescribeOf[T]()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := m.db.QueryRows(ctx, SelectSQL(desc.Table, where))
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrQueryFailed, desc.Table, err)
		m.observe(desc.Table, OpQuery, 0, start, err)
		return nil, err
	}

	pointers := reflect.TypeFor[T]().Kind() == reflect.Pointer
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		dst := reflect.New(desc.Type)
		if err := decodeRow(desc, m.codec, row, dst.Elem()); err != nil {
			err = fmt.Errorf("row %d of %s: %w", i, desc.Table, err)
			m.observe(desc.Table, OpQuery, 0, start, err)
			return nil, err
		}
		if pointers {
			out = append(out, dst.Interface().(T))
		} else {
			out = append(out, dst.Elem().Interface().(T))
		}
	}

	m.observe(desc.Table, OpQuery, len(out), start, nil)
	return out, nil
}
