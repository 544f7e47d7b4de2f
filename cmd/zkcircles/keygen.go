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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/blinklabs-io/zkcircles/fieldcodec"
	"github.com/spf13/cobra"
)

func keygenCommand() *cobra.Command {
	var output string
	var seal bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a field encryption key",
		Long: "Generate a random field encryption key. With --output the key is " +
			"written to a file readable only by the owner, optionally sealed " +
			"with SOPS using the KMS keys configured in the environment.",
		// Skip config loading
		PersistentPreRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := fieldcodec.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			if output == "" {
				if seal {
					return errors.New("--seal requires --output")
				}
				fmt.Println(key)
				return nil
			}
			data := []byte(key + "\n")
			if seal {
				data, err = fieldcodec.Seal(data)
				if err != nil {
					return fmt.Errorf("seal key: %w", err)
				}
			}
			// #nosec G306
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "wrote key to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the key to this file")
	cmd.Flags().BoolVar(&seal, "seal", false, "seal the key file with SOPS")
	return cmd
}
