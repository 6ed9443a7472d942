// Package cty loads the CTY prefix database (plist form) and answers the two
// questions the trainer asks of it: which CQ zone a caller is in, and whether
// two callsigns belong to the same DXCC entity.
package cty

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"howett.net/plist"
)

// PrefixInfo describes the metadata stored for each CTY entry.
type PrefixInfo struct {
	Country       string  `plist:"Country"`
	Prefix        string  `plist:"Prefix"`
	ADIF          int     `plist:"ADIF"`
	CQZone        int     `plist:"CQZone"`
	ITUZone       int     `plist:"ITUZone"`
	Continent     string  `plist:"Continent"`
	Latitude      float64 `plist:"Latitude"`
	Longitude     float64 `plist:"Longitude"`
	ExactCallsign bool    `plist:"ExactCallsign"`
}

// DB holds the decoded entries and a prefix trie for longest-prefix lookup.
// Lookups are memoized, including misses, because the caller pool asks about
// the same handful of callsigns over and over.
type DB struct {
	data map[string]PrefixInfo
	trie prefixTrie

	mu    sync.Mutex
	memo  map[string]*PrefixInfo
	limit int
}

const defaultMemoLimit = 4096

// prefixTrie is a read-only byte trie. Walking a callsign from the root, the
// last terminal node visited is its longest matching prefix.
type prefixTrie struct {
	nodes []trieNode
}

type trieNode struct {
	next map[byte]int
	key  string
}

func buildTrie(keys []string) prefixTrie {
	tr := prefixTrie{nodes: []trieNode{{next: make(map[byte]int)}}}
	for _, key := range keys {
		if key == "" {
			continue
		}
		state := 0
		for i := 0; i < len(key); i++ {
			if tr.nodes[state].next == nil {
				tr.nodes[state].next = make(map[byte]int)
			}
			child, ok := tr.nodes[state].next[key[i]]
			if !ok {
				child = len(tr.nodes)
				tr.nodes = append(tr.nodes, trieNode{})
				tr.nodes[state].next[key[i]] = child
			}
			state = child
		}
		tr.nodes[state].key = key
	}
	return tr
}

func (tr *prefixTrie) longest(call string) (string, bool) {
	state := 0
	best := ""
	for i := 0; i < len(call); i++ {
		child, ok := tr.nodes[state].next[call[i]]
		if !ok {
			break
		}
		state = child
		if tr.nodes[state].key != "" {
			best = tr.nodes[state].key
		}
	}
	return best, best != ""
}

// Load reads a cty.plist file.
func Load(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cty: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes CTY plist data. Keys are upper-cased; entries marked
// ExactCallsign only match the full callsign.
func LoadFromReader(r io.ReadSeeker) (*DB, error) {
	var raw map[string]PrefixInfo
	if err := plist.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("cty: decode plist: %w", err)
	}
	data := make(map[string]PrefixInfo, len(raw))
	prefixes := make([]string, 0, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		data[key] = v
		if !v.ExactCallsign {
			prefixes = append(prefixes, key)
		}
	}
	return &DB{
		data:  data,
		trie:  buildTrie(prefixes),
		memo:  make(map[string]*PrefixInfo),
		limit: defaultMemoLimit,
	}, nil
}

// Len reports the number of entries loaded.
func (db *DB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.data)
}

var portableSuffixes = []string{"/QRP", "/P", "/M", "/MM", "/AM"}

func stripSuffix(call string) string {
	call = strings.ToUpper(strings.TrimSpace(call))
	for _, suf := range portableSuffixes {
		if strings.HasSuffix(call, suf) {
			return strings.TrimSuffix(call, suf)
		}
	}
	return call
}

// Lookup returns the entry for the callsign: an exact-callsign entry first,
// then the longest matching prefix.
func (db *DB) Lookup(call string) (PrefixInfo, bool) {
	if db == nil {
		return PrefixInfo{}, false
	}
	call = stripSuffix(call)
	if call == "" {
		return PrefixInfo{}, false
	}

	db.mu.Lock()
	info, seen := db.memo[call]
	db.mu.Unlock()
	if !seen {
		info = db.resolve(call)
		db.mu.Lock()
		if len(db.memo) >= db.limit {
			clear(db.memo)
		}
		db.memo[call] = info
		db.mu.Unlock()
	}
	if info == nil {
		return PrefixInfo{}, false
	}
	return *info, true
}

func (db *DB) resolve(call string) *PrefixInfo {
	if info, ok := db.data[call]; ok {
		return &info
	}
	if key, ok := db.trie.longest(call); ok {
		info := db.data[key]
		return &info
	}
	return nil
}

// CQZone returns the CQ zone for the callsign.
func (db *DB) CQZone(call string) (int, bool) {
	info, ok := db.Lookup(call)
	if !ok || info.CQZone <= 0 {
		return 0, false
	}
	return info.CQZone, true
}

// SameCountry reports whether both callsigns resolve to the same entity.
// Unknown callsigns never match.
func (db *DB) SameCountry(a, b string) bool {
	ia, ok := db.Lookup(a)
	if !ok {
		return false
	}
	ib, ok := db.Lookup(b)
	if !ok {
		return false
	}
	if ia.ADIF != 0 && ib.ADIF != 0 {
		return ia.ADIF == ib.ADIF
	}
	return ia.Country == ib.Country
}
