package waveform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

var envelopeBucket = []byte("envelopes")

// Cache persists computed envelopes so reopening a voice message does not
// rescan its PCM.
type Cache struct {
	db *bbolt.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open waveform cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(envelopeBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create envelope bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

func cacheKey(digest string, n int) []byte {
	return []byte(digest + ":" + strconv.Itoa(n))
}

// Get returns the envelope of n bars stored for digest, if any.
func (c *Cache) Get(digest string, n int) ([]float64, bool, error) {
	var out []float64
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(envelopeBucket).Get(cacheKey(digest, n))
		if v == nil {
			return nil
		}
		var levels []float32
		if err := json.Unmarshal(v, &levels); err != nil {
			return fmt.Errorf("decoding cached envelope: %w", err)
		}
		out = make([]float64, len(levels))
		for i, p := range levels {
			out[i] = float64(p)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (c *Cache) Put(digest string, samples []float64) error {
	levels := make([]float32, len(samples))
	for i, s := range samples {
		levels[i] = float32(s)
	}
	value, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(envelopeBucket).Put(cacheKey(digest, len(samples)), value)
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}
