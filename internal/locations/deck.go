// internal/locations/deck.go
package locations

import (
	"math/rand"
)

// BuildDeck returns a shuffled draw sequence covering only the given themes.
// With several themes each one contributes as many locations as the smallest
// non-empty selected theme holds; a single theme contributes its whole pool.
func BuildDeck(ds *Dataset, themes []string, rng *rand.Rand) []Location {
	var pools [][]Location
	seen := make(map[string]bool)
	for _, t := range themes {
		if seen[t] || !ds.HasTheme(t) {
			continue
		}
		seen[t] = true
		pool := make([]Location, len(ds.byTheme[t]))
		copy(pool, ds.byTheme[t])
		pools = append(pools, pool)
	}
	if len(pools) == 0 {
		return nil
	}

	per := len(pools[0])
	for _, p := range pools[1:] {
		if len(p) < per {
			per = len(p)
		}
	}

	deck := make([]Location, 0, per*len(pools))
	for _, p := range pools {
		rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		deck = append(deck, p[:per]...)
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

// Deck is a room's mutable draw pile. Draws consume from the end; an empty
// pile is rebuilt from the dataset on the next draw.
type Deck struct {
	ds     *Dataset
	themes []string
	cards  []Location
	rng    *rand.Rand
}

// NewDeck builds a fresh deck for the theme selection.
func NewDeck(ds *Dataset, themes []string, rng *rand.Rand) *Deck {
	d := &Deck{ds: ds, rng: rng}
	d.Reset(themes)
	return d
}

// Reset replaces the theme selection and rebuilds the pile.
func (d *Deck) Reset(themes []string) {
	d.themes = append([]string(nil), themes...)
	d.cards = BuildDeck(d.ds, d.themes, d.rng)
}

// Draw pops the last location, rebuilding the pile first when it is empty.
func (d *Deck) Draw() (Location, error) {
	if len(d.cards) == 0 {
		d.cards = BuildDeck(d.ds, d.themes, d.rng)
		if len(d.cards) == 0 {
			return Location{}, ErrNoLocations
		}
	}
	last := len(d.cards) - 1
	loc := d.cards[last]
	d.cards = d.cards[:last]
	return loc, nil
}

// Len is the number of draws left before a rebuild.
func (d *Deck) Len() int { return len(d.cards) }

// Themes returns the current theme selection.
func (d *Deck) Themes() []string { return append([]string(nil), d.themes...) }
