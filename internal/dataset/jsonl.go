package dataset

import (
	"bufio"
	"fmt"
	"os"
)

// Some ReposVul entries carry whole files in their detail blocks, so
// the default bufio.Scanner limit is far too small.
const maxLineBytes = 64 * 1024 * 1024

// ForEachLine streams a JSONL file, calling fn for every non-empty
// line with its 1-based line number. fn returning an error stops the
// scan.
func ForEachLine(path string, fn func(line int, raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if err := fn(line, raw); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}
