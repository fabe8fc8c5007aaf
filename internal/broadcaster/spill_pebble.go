// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcaster

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleSpiller is the durable Spiller backing production Broadcasters: one
// pebble instance holding every topic's spill, keyed so a per-topic prefix
// scan returns events in offset order.
type PebbleSpiller struct {
	db *pebble.DB
}

// OpenPebbleSpiller opens (creating if absent) a pebble database at dir.
func OpenPebbleSpiller(dir string) (*PebbleSpiller, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleSpiller{db: db}, nil
}

// Close releases the underlying pebble handle.
func (p *PebbleSpiller) Close() error {
	return p.db.Close()
}

func spillKey(topic string, offset int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(offset))
	return []byte(fmt.Sprintf("spill/%s/%s", topic, buf[:]))
}

func spillPrefix(topic string) []byte {
	return []byte(fmt.Sprintf("spill/%s/", topic))
}

// Append durably writes rec.
func (p *PebbleSpiller) Append(topic string, rec SpillRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.db.Set(spillKey(topic, rec.Offset), b, pebble.Sync)
}

// Since returns every record for topic with Offset > offset, in order.
func (p *PebbleSpiller) Since(topic string, offset int64) ([]SpillRecord, error) {
	prefix := spillPrefix(topic)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBoundSpill(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []SpillRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec SpillRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		if rec.Offset > offset {
			out = append(out, rec)
		}
	}
	return out, iter.Error()
}

// TrimBefore deletes every record for topic with Offset < beforeOffset.
func (p *PebbleSpiller) TrimBefore(topic string, beforeOffset int64) error {
	return p.db.DeleteRange(spillKey(topic, 0), spillKey(topic, beforeOffset), pebble.Sync)
}

func prefixUpperBoundSpill(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
