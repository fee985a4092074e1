package tokenizer

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/go-tokenizers/api"
)

// FromFile loads a tokenizer from a serialized configuration file.
func FromFile(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, api.WrapError(api.LoadError, errors.Wrapf(err, "reading tokenizer file"))
	}
	return FromBytes(data)
}

// Save writes the full configuration to path. The write goes through a
// sibling lock file and a temporary file renamed into place, so
// concurrent savers never leave a torn file behind.
func (t *Tokenizer) Save(path string, pretty bool) error {
	if err := t.guard(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if pretty {
		if data, err = prettyJSON(data); err != nil {
			return api.WrapError(api.SaveError, err)
		}
	}

	lockPath := path + ".lock"
	err = withFileLock(lockPath, func() error {
		tmpPath := path + ".tmp"
		if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
			return errors.Wrapf(err, "writing temporary file %q", tmpPath)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return errors.Wrapf(err, "moving %q to %q", tmpPath, path)
		}
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("removing lock file %q: %v", lockPath, err)
		}
		return nil
	})
	if err != nil {
		return api.WrapError(api.SaveError, err)
	}
	return nil
}

// SaveModelFiles writes the model's native vocabulary files (vocab.json,
// merges.txt, vocab.txt or unigram.json depending on the model) into
// dir, returning the written paths.
func (t *Tokenizer) SaveModelFiles(dir, prefix string, pretty bool) ([]string, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, api.WrapError(api.SaveError, errors.Wrapf(err, "creating %q", dir))
	}
	return t.model.Save(dir, prefix, pretty)
}

func prettyJSON(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

// withFileLock locks lockPath, creating it as needed, and runs fn while
// holding the lock. Contending savers poll with a jittered one to two
// second period.
func withFileLock(lockPath string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %q", lockPath)
	}
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			klog.Errorf("unlocking file %q: %v", lockPath, err)
		}
	}()
	return fn()
}
