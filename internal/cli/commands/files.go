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
	"os"

	"github.com/spf13/cobra"

	"github.com/benallfree/dofs/internal/engine"
	"github.com/benallfree/dofs/internal/store"
)

// withEngine opens the instance store at path and runs fn over its
// engine.
func withEngine(path string, fn func(fs *engine.Engine) error) error {
	st, err := store.Open(path, store.Options{})
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(engine.New(st, engine.Options{}))
}

var lsRecursive bool

var lsCmd = &cobra.Command{
	Use:   "ls <file> <path>",
	Short: "List a directory inside an instance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(args[0], func(fs *engine.Engine) error {
			names, err := fs.ListDir(args[1], engine.ListDirOptions{Recursive: lsRecursive})
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <file> <path>",
	Short: "Print a file's content to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(args[0], func(fs *engine.Engine) error {
			data, err := fs.ReadFile(args[1])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <file> <path>",
	Short: "Write stdin into a file inside an instance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(args[0], func(fs *engine.Engine) error {
			written, err := fs.WriteFileFrom(args[1], os.Stdin)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d bytes written\n", written)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show device accounting for an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(args[0], func(fs *engine.Engine) error {
			stats, err := fs.DeviceStats()
			if err != nil {
				return err
			}
			fmt.Printf("device size:     %d\n", stats.DeviceSize)
			fmt.Printf("space used:      %d\n", stats.SpaceUsed)
			fmt.Printf("space available: %d\n", stats.SpaceAvailable)
			fmt.Printf("chunk size:      %d\n", stats.ChunkSize)
			return nil
		})
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "list the whole subtree")
	rootCmd.AddCommand(lsCmd, getCmd, putCmd, statsCmd)
}
