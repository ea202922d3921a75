package card

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// LoadSeed reads a JSON object mapping card id to payload. Every payload
// must validate; a bad entry rejects the whole file.
func LoadSeed(path string) (map[string]Payload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card seed: %w", err)
	}
	var cards map[string]Payload
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, fmt.Errorf("parse card seed %s: %w", path, err)
	}
	for id, p := range cards {
		if id == "" {
			return nil, fmt.Errorf("card seed %s: empty card id", path)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("card seed %s: card %q: %w", path, id, err)
		}
	}
	return cards, nil
}

// Seed upserts every card in the seed file into store and returns how many
// were written.
func Seed(ctx context.Context, store Store, path string) (int, error) {
	cards, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(cards))
	for id := range cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		if err := store.Put(ctx, id, cards[id]); err != nil {
			return i, fmt.Errorf("seed card %q: %w", id, err)
		}
	}
	return len(ids), nil
}
