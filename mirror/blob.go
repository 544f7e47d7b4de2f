// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mirror

import (
	"errors"
	"log/slog"

	"github.com/blinklabs-io/zkcircles/database/plugin"
	"github.com/blinklabs-io/zkcircles/database/plugin/blob"
	// Register the badger blob plugin
	_ "github.com/blinklabs-io/zkcircles/database/plugin/blob/badger"
)

const DefaultBlobPlugin = "badger"

// BlobStore keeps the mirror under StorageKey in a blob plugin
type BlobStore struct {
	blob blob.BlobStore
}

func NewBlobStore(b blob.BlobStore) *BlobStore {
	return &BlobStore{blob: b}
}

// OpenBlobStore starts the badger blob plugin. An empty dataDir keeps the
// mirror in memory
func OpenBlobStore(dataDir string, logger *slog.Logger) (*BlobStore, error) {
	if err := plugin.SetPluginOption(
		plugin.PluginTypeBlob,
		DefaultBlobPlugin,
		"data-dir",
		dataDir,
	); err != nil {
		return nil, err
	}
	b, err := blob.New(DefaultBlobPlugin, logger)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(b), nil
}

func (b *BlobStore) Load() ([]byte, error) {
	data, err := b.blob.Get([]byte(StorageKey))
	if err != nil {
		if errors.Is(err, blob.ErrBlobKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *BlobStore) Save(data []byte) error {
	return b.blob.Set([]byte(StorageKey), data)
}

func (b *BlobStore) Close() error {
	return b.blob.Close()
}
