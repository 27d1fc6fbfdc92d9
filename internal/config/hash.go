package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// checksumFile sits next to the config and pins its BLAKE3 hash. `config
// lock` writes it; `config check` and Load-time verification read it.
const checksumFile = ".checksums"

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}
	return nil
}

// Lock writes the checksum file for configPath, authorizing its current
// contents.
func Lock(configPath string) error {
	hash, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("%s  %s\n", hash, filepath.Base(configPath))
	path := filepath.Join(filepath.Dir(configPath), checksumFile)
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		return fmt.Errorf("write checksum file: %w", err)
	}
	return nil
}

// Check verifies configPath against its checksum file. A missing checksum
// file is not an error: integrity checking is opt-in via `config lock`.
func Check(configPath string) error {
	path := filepath.Join(filepath.Dir(configPath), checksumFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checksum file: %w", err)
	}

	base := filepath.Base(configPath)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[1] != base {
			continue
		}
		return VerifyFileHash(configPath, fields[0])
	}
	return fmt.Errorf("no checksum entry for %s\nHint: run 'tsukumo config lock' to authorize the current config", base)
}
