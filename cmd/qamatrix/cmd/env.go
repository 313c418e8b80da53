package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/qamatrix/internal/attribute"
	"github.com/solatis/qamatrix/internal/core/catalog"
	"github.com/solatis/qamatrix/internal/core/db"
	"github.com/solatis/qamatrix/internal/core/document"
	"github.com/solatis/qamatrix/internal/core/store"
	"github.com/solatis/qamatrix/internal/types"
)

// session holds the lazily opened database of one command run.
type session struct {
	db      *sqlx.DB
	queries *db.Queries
}

func (s *session) open(ctx context.Context) (*db.Queries, error) {
	if s.queries != nil {
		return s.queries, nil
	}

	dbURL, err := cfg.ResolvedDatabaseURL()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	s.db, s.queries = database, queries
	return queries, nil
}

func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// catalog returns the YAML catalog when configured, else the SQL catalog.
func (s *session) catalog(ctx context.Context) (types.Catalog, error) {
	if cfg.CatalogFile != "" {
		f, err := os.Open(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()
		return catalog.LoadYAML(f)
	}

	q, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.NewSQL(q), nil
}

func (s *session) store(ctx context.Context) (*store.Store, error) {
	q, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return store.New(q), nil
}

// loadCondition reads a quality condition from a YAML document when path is
// set, else from the store by name.
func (s *session) loadCondition(ctx context.Context, name, path string) (*types.QualityCondition, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return document.Decode(f)
	}
	if name == "" {
		return nil, fmt.Errorf("quality condition name or --in document required")
	}
	st, err := s.store(ctx)
	if err != nil {
		return nil, err
	}
	return st.Load(ctx, name)
}

// emitCondition writes qc as YAML to out (stdout when empty) and saves it
// when save is set.
func (s *session) emitCondition(ctx context.Context, qc *types.QualityCondition, out string, save bool) error {
	if save {
		st, err := s.store(ctx)
		if err != nil {
			return err
		}
		if err := st.Save(ctx, qc); err != nil {
			return fmt.Errorf("failed to save quality condition: %w", err)
		}
		logger.Info().Str("name", qc.Name).Str("id", string(qc.ID)).Int("parameters", len(qc.Values)).Msg("saved quality condition")
	}
	return writeOutput(out, func(w io.Writer) error {
		return document.Encode(w, qc)
	})
}

func writeOutput(path string, write func(w io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// attributeOptions maps the configured sentinel names onto compiler options.
func attributeOptions() attribute.Options {
	return attribute.Options{
		GeneralColumnName:      cfg.GeneralColumn,
		NonApplicableValueName: cfg.NonApplicableValue,
		UnknownValueName:       cfg.UnknownValue,
		Synonyms:               cfg.Synonyms,
		Logger:                 logger,
	}
}
