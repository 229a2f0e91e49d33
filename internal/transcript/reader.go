package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ReadSince returns the bytes appended to path after offset. A missing file,
// or one that has not grown past offset, yields nil with a nil error.
func ReadSince(path string, offset int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read transcript: %s is a directory", path)
	}
	size := info.Size()
	if size <= offset {
		return nil, nil
	}

	buf := make([]byte, size-offset)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}

// ParseResult is the outcome of parsing one chunk of a transcript.
type ParseResult struct {
	Entries []Entry
	// Consumed is the number of bytes that never need to be read again.
	Consumed int64
	// SkippedLeading is set when the first line of a resumed chunk was an
	// unparseable leftover from an earlier read boundary.
	SkippedLeading bool
	// Malformed counts complete lines that failed to parse and were skipped.
	Malformed int
	// Pending is the size of an unterminated trailing line left for a later read.
	Pending int
}

// ParseLines splits chunk on line feeds and decodes every complete record.
// A trailing fragment that does not parse is treated as a write in progress
// and is left unconsumed. resumed marks a chunk read from a mid-file offset,
// whose first line may be the tail of a line an earlier reader already passed.
func ParseLines(chunk []byte, resumed bool) ParseResult {
	var res ParseResult
	lines := bytes.Split(chunk, []byte{'\n'})
	last := len(lines) - 1

	for i, line := range lines {
		final := i == last
		size := int64(len(line))
		if !final {
			size++
		}

		if len(bytes.TrimSpace(line)) == 0 {
			if final {
				// Split artifact, or whitespace that may still grow into a record.
				res.Pending = len(line)
				continue
			}
			res.Consumed += size
			continue
		}

		entry, keep, err := decodeLine(line)
		if err == nil {
			if keep {
				res.Entries = append(res.Entries, entry)
			}
			res.Consumed += size
			continue
		}

		if final {
			res.Pending = len(line)
			break
		}

		if i == 0 && resumed {
			res.SkippedLeading = true
		} else {
			res.Malformed++
		}
		res.Consumed += size
	}

	return res
}
