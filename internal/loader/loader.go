// SPDX-License-Identifier: AGPL-3.0-or-later

// Package loader bulk-ingests the startup dataset: every *.json file
// under the data directory holds {"accounts":[...]}, and an optional
// options.txt holds the single NOW scalar hasPremiumNow is derived
// against. Nothing is ever written back to disk.
package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/gruf/go-kv"

	"github.com/loveindex/queryserver/internal/engine"
	"github.com/loveindex/queryserver/internal/log"
	"github.com/loveindex/queryserver/internal/mutate"
	"github.com/loveindex/queryserver/internal/qserror"
)

type accountsFile struct {
	Accounts []mutate.AccountPayload `json:"accounts"`
}

// ReadNow reads the NOW scalar from dir/options.txt, falling back to
// the wall clock when the file is absent.
func ReadNow(dir string) int32 {
	raw, err := os.ReadFile(filepath.Join(dir, "options.txt"))
	if err != nil {
		return int32(time.Now().Unix())
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	now, err := strconv.ParseInt(strings.TrimSpace(line), 10, 32)
	if err != nil {
		log.Warn("unparseable options.txt, using wall clock", kv.Field{K: "err", V: err})
		return int32(time.Now().Unix())
	}
	return int32(now)
}

// LoadDir ingests every accounts file in dir into e, then runs one
// full index rebuild so lookups work before the first request.
func LoadDir(dir string, e *engine.Engine) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return qserror.Wrap(err)
	}

	var files, accounts int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		n, err := loadFile(filepath.Join(dir, entry.Name()), e)
		if err != nil {
			return err
		}
		files++
		accounts += n
	}

	e.RebuildNow()
	log.Info("dataset loaded",
		kv.Field{K: "files", V: files},
		kv.Field{K: "accounts", V: accounts})
	return nil
}

func loadFile(path string, e *engine.Engine) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, qserror.Wrap(err)
	}
	defer f.Close()

	var parsed accountsFile
	if err := json.NewDecoder(f).Decode(&parsed); err != nil {
		return 0, qserror.Newf("loader: decoding %s: %w", path, err)
	}

	for i := range parsed.Accounts {
		if err := e.Create(&parsed.Accounts[i]); err != nil {
			return 0, qserror.Newf("loader: ingesting %s: %w", path, err)
		}
	}
	return len(parsed.Accounts), nil
}
