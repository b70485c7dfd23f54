/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bulkimage/internal/domain"
)

// BackupsDirName holds crash backups under the workspace root and database
// backups under the cache dir.
const BackupsDirName = "backups"

const crashPrefix = "crash-"

// WriteFileAtomic writes data to a temp file in the same directory and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AutosaveCrashSnapshot writes the project as timestamped JSON into
// <root>/backups and returns the file path.
func AutosaveCrashSnapshot(root string, p *domain.Project, phase domain.Phase) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("workspace root is required")
	}
	if p == nil {
		return "", errors.New("no project to save")
	}
	data, err := json.MarshalIndent(crashBackup{Phase: phase, Project: p}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal project: %w", err)
	}
	name := fmt.Sprintf("%s%s.json", crashPrefix, time.Now().UTC().Format("20060102-150405.000000000"))
	path := filepath.Join(root, BackupsDirName, name)
	if err := WriteFileAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

type crashBackup struct {
	Phase   domain.Phase    `json:"phase"`
	Project *domain.Project `json:"project"`
}

// LatestCrashSnapshot reads the newest crash backup under <root>/backups.
func LatestCrashSnapshot(root string) (*domain.Project, domain.Phase, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, domain.PhaseInput, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, crashPrefix) && strings.HasSuffix(name, ".json") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, domain.PhaseInput, ErrNotFound
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, domain.PhaseInput, fmt.Errorf("read latest backup: %w", err)
	}
	var cb crashBackup
	if err := json.Unmarshal(b, &cb); err != nil {
		return nil, domain.PhaseInput, fmt.Errorf("parse latest backup: %w", err)
	}
	if cb.Project == nil {
		return nil, domain.PhaseInput, errors.New("backup has no project")
	}
	return cb.Project, cb.Phase, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
