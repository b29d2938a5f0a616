package pebblerepo

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
	"github.com/jrsteele09/go-chat-client/credentials"
	"github.com/pkg/errors"
)

var _ credentials.Repo = (*Repo)(nil)

const keyPrefix = "session/"

// Repo persists credentials in a PebbleDB directory. A credentials.Batch maps
// onto a single pebble batch committed with Sync.
type Repo struct {
	db *pebble.DB
}

func Open(dir string) (*Repo, error) {
	if dir == "" {
		return nil, errors.New("[pebblerepo.Open] directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[pebblerepo.Open] mkdir")
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "[pebblerepo.Open] open")
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Get(key string) (string, error) {
	value, closer, err := r.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", credentials.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "get %s", key)
	}
	defer closer.Close()
	return string(value), nil
}

func (r *Repo) Apply(batch credentials.Batch) error {
	b := r.db.NewBatch()
	defer b.Close()
	for k, v := range batch.Puts {
		if err := b.Set([]byte(keyPrefix+k), []byte(v), nil); err != nil {
			return errors.Wrapf(err, "set %s", k)
		}
	}
	for _, k := range batch.Deletes {
		if err := b.Delete([]byte(keyPrefix+k), nil); err != nil {
			return errors.Wrapf(err, "delete %s", k)
		}
	}
	return b.Commit(pebble.Sync)
}

func (r *Repo) Close() error {
	return r.db.Close()
}
