// Package storage holds uploaded PDFs until they are extracted.
package storage

import (
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/qextractor/internal/model"
)

// ErrInvalidKey is returned for empty keys and keys that escape the store.
var ErrInvalidKey = errors.New("storage: invalid key")

type BlobStore interface {
	Put(key string, r io.Reader) (int64, error)
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// Upload stores r under a fresh key and returns its handle.
func Upload(b BlobStore, name string, r io.Reader) (model.FileHandle, error) {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = ".pdf"
	}
	key := "uploads/" + uuid.NewString() + ext
	n, err := b.Put(key, r)
	if err != nil {
		return model.FileHandle{}, err
	}
	return model.FileHandle{Key: key, Name: path.Base(strings.ReplaceAll(name, `\`, "/")), Size: n}, nil
}

// cleanKey normalises a key to a relative slash path inside the store.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	k := path.Clean("/" + strings.ReplaceAll(key, `\`, "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", ErrInvalidKey
	}
	return k, nil
}
