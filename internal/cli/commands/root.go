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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version info for the --version flag.
func SetVersion(v, c string) {
	version = v
	commit = c
	rootCmd.Version = version + " (" + commit + ")"
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "dofs",
	Short: "POSIX-shaped filesystem over an embedded SQL store",
	Long:  `dofs stores a filesystem tree inside a single-writer SQLite instance and serves it in-process, over HTTP, and over WebSocket.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error, warn, info, debug, trace)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
