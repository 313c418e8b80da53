// Package store persists quality conditions (parameter bags) in the
// quality_conditions and parameter_values tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/qamatrix/internal/core/db"
	"github.com/solatis/qamatrix/internal/types"
)

// ErrNotFound indicates no quality condition has the requested name.
var ErrNotFound = errors.New("quality condition not found")

// Store reads and writes quality conditions.
type Store struct {
	q *db.Queries
}

// New creates a store backed by q.
func New(q *db.Queries) *Store {
	return &Store{q: q}
}

type conditionRow struct {
	ID             string `db:"qc_id"`
	Name           string `db:"name"`
	TestDescriptor string `db:"test_descriptor"`
}

type valueRow struct {
	Name   string  `db:"parameter_name"`
	Kind   string  `db:"value_kind"`
	Data   string  `db:"dataset_name"`
	Filter string  `db:"filter_expression"`
	Text   string  `db:"text_value"`
	Number float64 `db:"number_value"`
	Bool   bool    `db:"bool_value"`
}

// Save stores qc, replacing any stored condition of the same name.
func (s *Store) Save(ctx context.Context, qc *types.QualityCondition) error {
	if err := qc.Validate(); err != nil {
		return err
	}
	if qc.ID == "" {
		qc.ID = types.NewQualityConditionID()
	}

	existing, err := s.header(ctx, qc.Name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	var createdAt any = time.Now().UTC()
	if s.q.DB().DriverName() == "sqlite3" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	return s.q.InTx(ctx, func(tx *db.Tx) error {
		if existing != nil {
			if err := deleteRows(ctx, tx, existing.ID); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, "insert-quality-condition", string(qc.ID), qc.Name, qc.TestDescriptor, createdAt); err != nil {
			return fmt.Errorf("failed to insert quality condition %s: %w", qc.Name, err)
		}
		for i, v := range qc.Values {
			if _, err := tx.Exec(ctx, "insert-parameter-value",
				string(qc.ID), i, v.Name, string(v.Kind), v.Dataset, v.Filter, v.Text, v.Number, v.Bool,
			); err != nil {
				return fmt.Errorf("failed to insert parameter %d of %s: %w", i, qc.Name, err)
			}
		}
		return nil
	})
}

// Load returns the quality condition named name.
func (s *Store) Load(ctx context.Context, name string) (*types.QualityCondition, error) {
	h, err := s.header(ctx, name)
	if err != nil {
		return nil, err
	}

	var rows []valueRow
	if err := s.q.Select(ctx, "list-parameter-values", &rows, h.ID); err != nil {
		return nil, fmt.Errorf("failed to load parameters of %s: %w", name, err)
	}

	id, err := types.ParseQualityConditionID(h.ID)
	if err != nil {
		return nil, fmt.Errorf("quality condition %s has invalid id: %w", name, err)
	}
	qc := &types.QualityCondition{ID: id, Name: h.Name, TestDescriptor: h.TestDescriptor}
	for _, r := range rows {
		qc.Add(types.ParameterValue{
			Name:    r.Name,
			Kind:    types.ValueKind(r.Kind),
			Dataset: r.Data,
			Filter:  r.Filter,
			Text:    r.Text,
			Number:  r.Number,
			Bool:    r.Bool,
		})
	}

	if err := qc.Validate(); err != nil {
		return nil, err
	}
	return qc, nil
}

// List returns the names of all stored quality conditions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var rows []conditionRow
	if err := s.q.Select(ctx, "list-quality-conditions", &rows); err != nil {
		return nil, fmt.Errorf("failed to list quality conditions: %w", err)
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}

// Delete removes the quality condition named name.
func (s *Store) Delete(ctx context.Context, name string) error {
	h, err := s.header(ctx, name)
	if err != nil {
		return err
	}
	return s.q.InTx(ctx, func(tx *db.Tx) error {
		return deleteRows(ctx, tx, h.ID)
	})
}

func (s *Store) header(ctx context.Context, name string) (*conditionRow, error) {
	var h conditionRow
	err := s.q.Get(ctx, "get-quality-condition-by-name", &h, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query quality condition %s: %w", name, err)
	}
	return &h, nil
}

func deleteRows(ctx context.Context, tx *db.Tx, id string) error {
	if _, err := tx.Exec(ctx, "delete-parameter-values", id); err != nil {
		return fmt.Errorf("failed to delete parameters of %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "delete-quality-condition", id); err != nil {
		return fmt.Errorf("failed to delete quality condition %s: %w", id, err)
	}
	return nil
}
