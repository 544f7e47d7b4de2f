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

package fieldcodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	sopsapi "github.com/getsops/sops/v3"
	"github.com/getsops/sops/v3/aes"
	scommon "github.com/getsops/sops/v3/cmd/sops/common"
	"github.com/getsops/sops/v3/config"
	"github.com/getsops/sops/v3/decrypt"
	"github.com/getsops/sops/v3/gcpkms"
	skeys "github.com/getsops/sops/v3/keys"
	awskms "github.com/getsops/sops/v3/kms"
	jsonstore "github.com/getsops/sops/v3/stores/json"
	"github.com/getsops/sops/v3/version"
)

const (
	EnvGcpKmsResourceID = "ZKCIRCLES_GCP_KMS_RESOURCE_ID"
	EnvAwsKmsKeyArns    = "ZKCIRCLES_AWS_KMS_KEY_ARNS"
	EnvAwsKmsProfile    = "ZKCIRCLES_AWS_KMS_PROFILE"
)

var ErrAlreadySealed = errors.New("already sealed")

// Seal encrypts key material with SOPS using the KMS master keys configured
// in the environment. The result can be written to a key file.
func Seal(data []byte) ([]byte, error) {
	storeConfig := &config.JSONBinaryStoreConfig{}
	store := jsonstore.NewBinaryStore(storeConfig)

	branches, err := store.LoadPlainFile(data)
	if err != nil {
		return nil, fmt.Errorf("load key data: %w", err)
	}
	for _, branch := range branches {
		for _, item := range branch {
			if item.Key == "sops" {
				return nil, ErrAlreadySealed
			}
		}
	}

	keyGroups, err := masterKeyGroupsFromEnv()
	if err != nil {
		return nil, err
	}
	tree := sopsapi.Tree{
		Branches: branches,
		Metadata: sopsapi.Metadata{
			KeyGroups: keyGroups,
			Version:   version.Version,
		},
	}
	dataKey, errs := tree.GenerateDataKey()
	if len(errs) > 0 {
		return nil, fmt.Errorf("generate data key: %v", errs)
	}
	if err := scommon.EncryptTree(scommon.EncryptTreeOpts{
		DataKey: dataKey,
		Tree:    &tree,
		Cipher:  aes.NewCipher(),
	}); err != nil {
		return nil, fmt.Errorf("encrypt key data: %w", err)
	}
	sealed, err := store.EmitEncryptedFile(tree)
	if err != nil {
		return nil, fmt.Errorf("emit sealed key: %w", err)
	}
	return sealed, nil
}

// Unseal decrypts a SOPS-sealed key file
func Unseal(data []byte) ([]byte, error) {
	return decrypt.Data(data, "binary")
}

// isSealed reports whether data looks like a SOPS binary store document
func isSealed(data []byte) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, ok := doc["sops"]
	return ok
}

func masterKeyGroupsFromEnv() ([]sopsapi.KeyGroup, error) {
	keyGroups := []sopsapi.KeyGroup{}

	if rid := os.Getenv(EnvGcpKmsResourceID); rid != "" {
		keys := []skeys.MasterKey{}
		for _, k := range gcpkms.MasterKeysFromResourceIDString(rid) {
			keys = append(keys, k)
		}
		if len(keys) > 0 {
			keyGroups = append(keyGroups, keys)
		}
	}

	if arns := os.Getenv(EnvAwsKmsKeyArns); arns != "" {
		keys := []skeys.MasterKey{}
		profile := os.Getenv(EnvAwsKmsProfile)
		for _, k := range awskms.MasterKeysFromArnString(arns, nil, profile) {
			keys = append(keys, k)
		}
		if len(keys) > 0 {
			keyGroups = append(keyGroups, keys)
		}
	}

	if len(keyGroups) == 0 {
		return nil, fmt.Errorf(
			"sealing requires at least one master key: set %s and/or %s",
			EnvGcpKmsResourceID,
			EnvAwsKmsKeyArns,
		)
	}
	return keyGroups, nil
}
