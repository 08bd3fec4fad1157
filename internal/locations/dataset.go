// internal/locations/dataset.go
package locations

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// DefaultTheme is the theme a new room starts with.
const DefaultTheme = "default"

// ErrNoLocations is returned when a theme selection yields nothing to draw.
var ErrNoLocations = errors.New("no locations available for the selected themes")

//go:embed data/locations.json
var embeddedLocations []byte

// Dataset is the read-only location collection partitioned by theme. It is
// loaded once at process start and shared by every room.
type Dataset struct {
	byTheme map[string][]Location
}

// NewDataset partitions the given locations by category. Entries without a
// name or roles are skipped.
func NewDataset(all []Location) *Dataset {
	ds := &Dataset{byTheme: make(map[string][]Location)}
	for _, loc := range all {
		if loc.Name == "" || len(loc.Roles) == 0 {
			continue
		}
		if loc.Category == "" {
			loc.Category = DefaultTheme
		}
		ds.byTheme[loc.Category] = append(ds.byTheme[loc.Category], loc)
	}
	return ds
}

// LoadEmbedded parses the dataset compiled into the binary.
func LoadEmbedded() (*Dataset, error) {
	return Parse(embeddedLocations)
}

// Parse decodes a JSON array of {name, category, roles} records.
func Parse(data []byte) (*Dataset, error) {
	var all []Location
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing locations: %w", err)
	}
	ds := NewDataset(all)
	if len(ds.byTheme) == 0 {
		return nil, ErrNoLocations
	}
	return ds, nil
}

// Querier is the subset of pgxpool.Pool used by LoadPostgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres reads the dataset from a "locations" table with columns
// name text, category text, roles text[].
func LoadPostgres(ctx context.Context, db Querier) (*Dataset, error) {
	rows, err := db.Query(ctx, `SELECT name, category, roles FROM locations ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var all []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.Name, &loc.Category, &loc.Roles); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		all = append(all, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading locations: %w", err)
	}
	ds := NewDataset(all)
	if len(ds.byTheme) == 0 {
		return nil, ErrNoLocations
	}
	return ds, nil
}

// Themes returns the known theme ids in sorted order.
func (ds *Dataset) Themes() []string {
	themes := make([]string, 0, len(ds.byTheme))
	for t := range ds.byTheme {
		themes = append(themes, t)
	}
	sort.Strings(themes)
	return themes
}

// HasTheme reports whether the theme has at least one location.
func (ds *Dataset) HasTheme(theme string) bool {
	return len(ds.byTheme[theme]) > 0
}

// Count returns how many locations the theme holds.
func (ds *Dataset) Count(theme string) int {
	return len(ds.byTheme[theme])
}

// Pool returns every location of the given themes, duplicates by name removed.
func (ds *Dataset) Pool(themes []string) []Location {
	seen := make(map[string]bool)
	var pool []Location
	for _, t := range themes {
		for _, loc := range ds.byTheme[t] {
			if seen[loc.Name] {
				continue
			}
			seen[loc.Name] = true
			pool = append(pool, loc)
		}
	}
	return pool
}

// Find looks a location up by name across all themes.
func (ds *Dataset) Find(name string) (Location, bool) {
	for _, locs := range ds.byTheme {
		for _, loc := range locs {
			if SameName(loc.Name, name) {
				return loc, true
			}
		}
	}
	return Location{}, false
}
