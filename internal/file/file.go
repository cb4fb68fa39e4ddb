// Package file persists gob encoded values with atomic renames.
package file

import (
	"encoding/gob"
	"os"
	"path/filepath"
)

// Serialize gob encodes data into path. The data is written to a temporary
// file in the same directory first and renamed over path, so readers never
// see a partially written file.
func Serialize(path string, data interface{}) error {
	tf, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	// a no-op after the rename succeeded
	defer os.Remove(tf.Name())

	e := gob.NewEncoder(tf)
	err = e.Encode(data)
	if err != nil {
		_ = tf.Close()
		return err
	}

	err = tf.Sync()
	if err != nil {
		_ = tf.Close()
		return err
	}

	err = tf.Close()
	if err != nil {
		return err
	}

	return os.Rename(tf.Name(), path)
}

func Unserialize(path string, data interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := gob.NewDecoder(f)
	return d.Decode(data)
}

// Temporary reports whether name is a leftover of an interrupted Serialize.
func Temporary(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
