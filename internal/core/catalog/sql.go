package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/solatis/qamatrix/internal/core/db"
	"github.com/solatis/qamatrix/internal/types"
)

// SQL reads dataset metadata from the catalog_* tables.
type SQL struct {
	q *db.Queries
}

// NewSQL creates a catalog backed by q.
func NewSQL(q *db.Queries) *SQL {
	return &SQL{q: q}
}

type datasetRow struct {
	Name         string `db:"dataset_name"`
	Geometry     string `db:"geometry_type"`
	SubtypeField string `db:"subtype_field"`
}

type fieldRow struct {
	Name   string         `db:"field_name"`
	Type   string         `db:"field_type"`
	Domain sql.NullString `db:"domain_name"`
}

type codeRow struct {
	Name  string `db:"code_name"`
	Value string `db:"code_value"`
}

type subtypeRow struct {
	Name string `db:"subtype_name"`
	Code int    `db:"subtype_code"`
}

// Dataset loads the dataset matching name. Name resolution follows Static.
func (c *SQL) Dataset(ctx context.Context, name string) (*types.Dataset, error) {
	var rows []datasetRow
	if err := c.q.Select(ctx, "list-datasets", &rows); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	headers := make([]*types.Dataset, len(rows))
	for i, r := range rows {
		headers[i] = &types.Dataset{
			Name:         r.Name,
			Geometry:     types.GeometryType(r.Geometry),
			SubtypeField: r.SubtypeField,
		}
	}

	d, err := resolve(headers, name)
	if err != nil {
		return nil, err
	}
	if err := c.load(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", d.Name, err)
	}
	return d, nil
}

func (c *SQL) load(ctx context.Context, d *types.Dataset) error {
	var fields []fieldRow
	if err := c.q.Select(ctx, "list-fields", &fields, d.Name); err != nil {
		return err
	}

	domains := make(map[string]*types.CodedDomain)
	for _, f := range fields {
		field := types.Field{Name: f.Name, Type: types.FieldType(f.Type)}
		if f.Domain.Valid && f.Domain.String != "" {
			domain, ok := domains[f.Domain.String]
			if !ok {
				var codes []codeRow
				if err := c.q.Select(ctx, "list-domain-codes", &codes, f.Domain.String); err != nil {
					return err
				}
				domain = &types.CodedDomain{Name: f.Domain.String}
				for _, cr := range codes {
					v, err := loadedValue(field.Type, cr.Value)
					if err != nil {
						return fmt.Errorf("domain %s, code %s: %w", f.Domain.String, cr.Name, err)
					}
					domain.Codes = append(domain.Codes, types.CodedValue{Name: cr.Name, Value: v})
				}
				domains[f.Domain.String] = domain
			}
			field.Domain = domain
		}
		d.Fields = append(d.Fields, field)
	}

	var subtypes []subtypeRow
	if err := c.q.Select(ctx, "list-subtypes", &subtypes, d.Name); err != nil {
		return err
	}
	for _, s := range subtypes {
		d.Subtypes = append(d.Subtypes, types.Subtype{Name: s.Name, Code: s.Code})
	}
	return nil
}

// Put replaces the definition of d, including the domains its fields use.
func (c *SQL) Put(ctx context.Context, d *types.Dataset) error {
	if err := Validate(d); err != nil {
		return err
	}

	return c.q.InTx(ctx, func(tx *db.Tx) error {
		for _, stmt := range []string{"delete-dataset-fields", "delete-dataset-subtypes", "delete-dataset"} {
			if _, err := tx.Exec(ctx, stmt, d.Name); err != nil {
				return fmt.Errorf("failed to clear dataset %s: %w", d.Name, err)
			}
		}

		if _, err := tx.Exec(ctx, "insert-dataset", d.Name, string(d.Geometry), d.SubtypeField); err != nil {
			return fmt.Errorf("failed to insert dataset %s: %w", d.Name, err)
		}

		written := make(map[string]bool)
		for i, f := range d.Fields {
			var domain sql.NullString
			if f.Domain != nil {
				domain = sql.NullString{String: f.Domain.Name, Valid: true}
			}
			if _, err := tx.Exec(ctx, "insert-field", d.Name, f.Name, string(f.Type), domain, i); err != nil {
				return fmt.Errorf("failed to insert field %s.%s: %w", d.Name, f.Name, err)
			}
			if f.Domain == nil || written[f.Domain.Name] {
				continue
			}
			written[f.Domain.Name] = true
			if err := putDomain(ctx, tx, f.Domain); err != nil {
				return err
			}
		}

		for _, s := range d.Subtypes {
			if _, err := tx.Exec(ctx, "insert-subtype", d.Name, s.Code, s.Name); err != nil {
				return fmt.Errorf("failed to insert subtype %s of %s: %w", s.Name, d.Name, err)
			}
		}
		return nil
	})
}

func putDomain(ctx context.Context, tx *db.Tx, domain *types.CodedDomain) error {
	if _, err := tx.Exec(ctx, "delete-domain-codes", domain.Name); err != nil {
		return fmt.Errorf("failed to clear domain %s: %w", domain.Name, err)
	}
	for i, cv := range domain.Codes {
		if _, err := tx.Exec(ctx, "insert-domain-code", domain.Name, i, cv.Name, storedValue(cv.Value)); err != nil {
			return fmt.Errorf("failed to insert code %s of domain %s: %w", cv.Name, domain.Name, err)
		}
	}
	return nil
}

// storedValue renders a code value for the TEXT code_value column; readers
// convert it back using the field type.
func storedValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", x)
	}
}

// loadedValue converts a stored code value back to the Go type of ft.
func loadedValue(ft types.FieldType, s string) (any, error) {
	switch ft {
	case types.FieldInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer code value %q", types.ErrFormat, s)
		}
		return n, nil
	case types.FieldDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid double code value %q", types.ErrFormat, s)
		}
		return f, nil
	case types.FieldDate:
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date code value %q", types.ErrFormat, s)
		}
		return t, nil
	default:
		return s, nil
	}
}
