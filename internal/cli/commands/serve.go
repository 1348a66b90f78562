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
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/benallfree/dofs/internal/actor"
	"github.com/benallfree/dofs/internal/config"
	"github.com/benallfree/dofs/internal/httpd"
)

var (
	serveListen  string
	serveConfig  string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve instances over HTTP and WebSocket",
	Long: `Serve a single instance store over HTTP and WebSocket, or — with
--data-dir (or data_dir in the config) — serve every instance under a
data directory, selected per request by the "instance" query parameter.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfig)
		if err != nil {
			return err
		}
		if serveListen != "" {
			cfg.Listen = serveListen
		}
		if serveDataDir != "" {
			cfg.DataDir = serveDataDir
		}
		if logLevel == "" && cfg.LogLevel() != "" && cfg.LogLevel() != "none" {
			if level, err := log.ParseLevel(cfg.LogLevel()); err == nil {
				log.SetLevel(level)
			}
		}

		opts := actor.Options{
			ChunkSize:  cfg.ChunkSize,
			DeviceSize: cfg.DeviceSize,
			Umask:      cfg.Umask,
		}

		var srv *httpd.Server
		switch {
		case cfg.DataDir != "" && len(args) > 0:
			return fmt.Errorf("pass either an instance file or --data-dir, not both")
		case cfg.DataDir != "":
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return err
			}
			sys := actor.NewSystem(cfg.DataDir, opts)
			defer sys.Close()
			srv = httpd.NewSystemServer(sys)
			log.Infof("serving instances from %s on %s", cfg.DataDir, cfg.Listen)
		case len(args) == 1:
			a, err := actor.Open(args[0], args[0], opts)
			if err != nil {
				return err
			}
			defer a.Close()
			srv = httpd.NewServer(a)
			log.Infof("serving %s on %s", args[0], cfg.Listen)
		default:
			return fmt.Errorf("an instance file or --data-dir is required")
		}

		return http.ListenAndServe(cfg.Listen, srv.Handler())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveConfig, "config", "dofs.yaml", "config file path")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "serve all instances under this directory, keyed by ID")
	rootCmd.AddCommand(serveCmd)
}
