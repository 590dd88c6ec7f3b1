package ring

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// entryJSON is the on-disk shape of a single ring member, matching
// dht.json's documented format: {"dht": [{"id","IP","port","hash"}, ...]}.
type entryJSON struct {
	ID   string `json:"id"`
	IP   string `json:"IP"`
	Port int    `json:"port"`
	Hash uint64 `json:"hash"`
}

type manifestJSON struct {
	DHT []entryJSON `json:"dht"`
}

// Manifest is the static, process-wide membership list of the ring. It is
// read once at startup from dht.json and never mutated: there is no
// runtime join/leave, so every process on the ring computes the same
// finger tables from the same manifest.
type Manifest struct {
	Nodes []Node
	Self  Node
}

// Load reads and validates a dht.json manifest file, returning the handle
// for the node named selfName bound on selfPort.
//
// Validation rules (spec-mandated, reported as CONFIG_INVALID by callers):
//   - the document must list at least one node;
//   - no two nodes may share a hash;
//   - each entry's declared hash must equal HashID("<id>:<port>") — the
//     manifest carries the hash explicitly, but it must be consistent with
//     the node-id hash domain, or routing silently disagrees across nodes;
//   - selfName+selfPort must name an entry present in the manifest.
func Load(path string, selfName string, selfPort int) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("ring: read manifest %s: %w", path, err)
	}

	var doc manifestJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Manifest{}, fmt.Errorf("ring: parse manifest %s: %w", path, err)
	}
	if len(doc.DHT) == 0 {
		return Manifest{}, fmt.Errorf("ring: manifest %s contains no nodes", path)
	}

	seen := make(map[ID]string, len(doc.DHT))
	nodes := make([]Node, 0, len(doc.DHT))
	var self Node
	var selfFound bool

	for _, e := range doc.DHT {
		if e.ID == "" {
			return Manifest{}, fmt.Errorf("ring: manifest entry with empty id")
		}
		if e.IP == "" || e.Port <= 0 {
			return Manifest{}, fmt.Errorf("ring: manifest entry %q has invalid IP:port", e.ID)
		}
		want := HashID(fmt.Sprintf("%s:%d", e.ID, e.Port))
		got := FromUint64(e.Hash)
		if got != want {
			return Manifest{}, fmt.Errorf("ring: manifest entry %q declares hash %d, computed %d",
				e.ID, e.Hash, want.ToUint64())
		}
		if prior, dup := seen[got]; dup {
			return Manifest{}, fmt.Errorf("ring: hash collision between %q and %q on %s", prior, e.ID, got.ToHexString())
		}
		seen[got] = e.ID

		n := Node{ID: got, Name: e.ID, Addr: e.IP, Port: e.Port}
		nodes = append(nodes, n)
		if e.ID == selfName && e.Port == selfPort {
			self = n
			selfFound = true
		}
	}
	if !selfFound {
		return Manifest{}, fmt.Errorf("ring: self node %q:%d not present in manifest %s", selfName, selfPort, path)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID.Cmp(nodes[j].ID) < 0 })

	return Manifest{Nodes: nodes, Self: self}, nil
}
