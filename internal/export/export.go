// Package export builds the workload table: one row per resource, one column
// per flattened metadata key seen in any record.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/google/btree"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

// Sentinel fills a metadata cell whose key is absent from the row's record.
const Sentinel = "N/A"

// IdentityColumns lead every table, in this order.
var IdentityColumns = []string{"Name", "Resource ID", "Location", "Type", "Tags"}

// Universe is the ordered set of metadata columns.
type Universe struct {
	keys *btree.BTreeG[string]
}

// NewUniverse returns an empty universe.
func NewUniverse() *Universe {
	return &Universe{keys: btree.NewOrderedG[string](32)}
}

// Add inserts every key of row.
func (u *Universe) Add(row metadata.FlatRow) {
	for k := range row {
		u.keys.ReplaceOrInsert(k)
	}
}

// Len returns the number of columns.
func (u *Universe) Len() int {
	return u.keys.Len()
}

// Columns returns the keys in ascending order.
func (u *Universe) Columns() []string {
	out := make([]string, 0, u.keys.Len())
	u.keys.Ascend(func(k string) bool {
		out = append(out, k)
		return true
	})
	return out
}

// Table is a header plus rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Build flattens records and lays them out against the union of their keys.
// resources and records are index-aligned; a nil record still yields a row
// whose metadata cells are all Sentinel.
func Build(resources []resource.Resource, records []metadata.Node) (*Table, error) {
	if len(resources) != len(records) {
		return nil, fmt.Errorf("align records: %d resources but %d records", len(resources), len(records))
	}

	identity := make(map[string]struct{}, len(IdentityColumns))
	for _, c := range IdentityColumns {
		identity[c] = struct{}{}
	}

	universe := NewUniverse()
	flat := make([]metadata.FlatRow, len(records))
	for i, rec := range records {
		if rec == nil {
			continue
		}
		row, err := metadata.Flatten(rec, "")
		if err != nil {
			return nil, fmt.Errorf("flatten %s: %w", resources[i].ID, err)
		}
		for k := range row {
			if _, clash := identity[k]; clash {
				log.Debug().Str("key", k).Str("resource", resources[i].Name).Msg("Metadata key shadowed by identity column")
				delete(row, k)
			}
		}
		flat[i] = row
		universe.Add(row)
	}

	columns := universe.Columns()
	t := &Table{
		Header: append(append([]string(nil), IdentityColumns...), columns...),
		Rows:   make([][]string, len(resources)),
	}

	for i, r := range resources {
		cells := make([]string, 0, len(t.Header))
		tags, err := formatTags(r.Tags)
		if err != nil {
			return nil, fmt.Errorf("format tags of %s: %w", r.ID, err)
		}
		cells = append(cells, r.Name, r.ID, r.Location, r.Type, tags)

		for _, col := range columns {
			v, ok := flat[i][col]
			if !ok {
				cells = append(cells, Sentinel)
				continue
			}
			cells = append(cells, FormatValue(v))
		}
		t.Rows[i] = cells
	}

	log.Debug().Int("rows", len(t.Rows)).Int("columns", len(t.Header)).Msg("Built table")
	return t, nil
}

// formatTags renders tags as a JSON object. encoding/json sorts map keys.
func formatTags(tags map[string]string) (string, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatValue stringifies a flattened leaf. nil becomes the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
