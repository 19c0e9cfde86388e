// SPDX-License-Identifier: AGPL-3.0-or-later

// The queryserver binary: `queryserver <port> <data_dir>` loads every
// accounts JSON file under data_dir and serves the query API on the
// given port. Invoked with fewer arguments it runs the built-in smoke
// suite instead and reports tests/OK or tests/FAIL.
package main

import (
	"fmt"
	"os"

	"codeberg.org/gruf/go-kv"

	"github.com/loveindex/queryserver/internal/api"
	"github.com/loveindex/queryserver/internal/engine"
	"github.com/loveindex/queryserver/internal/loader"
	"github.com/loveindex/queryserver/internal/log"
)

func main() {
	if len(os.Args) < 3 {
		if err := selftest(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			fmt.Println("tests/FAIL")
			os.Exit(1)
		}
		fmt.Println("tests/OK")
		return
	}

	port, dataDir := os.Args[1], os.Args[2]

	now := loader.ReadNow(dataDir)
	eng := engine.New(now, 0)
	if err := eng.Start(); err != nil {
		log.Panicf("starting engine: %v", err)
	}
	if err := loader.LoadDir(dataDir, eng); err != nil {
		log.Panicf("loading %s: %v", dataDir, err)
	}

	srv := api.New(eng, api.DefaultMaxInFlight)
	log.Info("listening", kv.Field{K: "port", V: port})
	if err := srv.Serve(":" + port); err != nil {
		log.Panicf("serving: %v", err)
	}
}
