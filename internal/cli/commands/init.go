// Copyright 2025 The dofs Authors
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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benallfree/dofs/internal/engine"
	"github.com/benallfree/dofs/internal/store"
)

var (
	initChunkSize  int64
	initDeviceSize int64
)

var initCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Create a new instance store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Create(args[0], engine.RootAttr(), store.Options{
			ChunkSize:  initChunkSize,
			DeviceSize: initDeviceSize,
		})
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Printf("Created %s (chunk size %d)\n", st.Path(), st.ChunkSize())
		return nil
	},
}

func init() {
	initCmd.Flags().Int64Var(&initChunkSize, "chunk-size", 0, "block granularity in bytes (default 4096, immutable once set)")
	initCmd.Flags().Int64Var(&initDeviceSize, "device-size", 0, "capacity ceiling in bytes (default 1 GiB)")
	rootCmd.AddCommand(initCmd)
}
