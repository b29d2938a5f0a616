package repofake

import (
	"sync"

	"github.com/jrsteele09/go-chat-client/credentials"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

type FakeCredentialsRepo struct {
	values map[string]string
	lock   sync.RWMutex
	// FailApply makes the next Apply call return this error without writing.
	FailApply error
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{
		values: make(map[string]string),
	}
}

func (r *FakeCredentialsRepo) Get(key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", credentials.ErrNotFound
	}
	return v, nil
}

func (r *FakeCredentialsRepo) Apply(batch credentials.Batch) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.FailApply != nil {
		err := r.FailApply
		r.FailApply = nil
		return err
	}
	for k, v := range batch.Puts {
		r.values[k] = v
	}
	for _, k := range batch.Deletes {
		delete(r.values, k)
	}
	return nil
}

// Put writes a single key, for seeding legacy layouts in tests.
func (r *FakeCredentialsRepo) Put(key, value string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
}

func (r *FakeCredentialsRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.values)
}

func (r *FakeCredentialsRepo) Close() error {
	return nil
}
