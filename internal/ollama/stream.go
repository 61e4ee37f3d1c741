// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// =============================================================================
// PULL STREAM READER
// =============================================================================

// PullReader handles line-by-line JSON parsing of the /api/pull stream.
type PullReader struct {
	reader *bufio.Reader
	last   PullProgress
}

// NewPullReader creates a new pull reader from an io.Reader.
func NewPullReader(r io.Reader) *PullReader {
	return &PullReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls fn for each progress line.
// Blocks until the stream reports "success", ends, or the context is
// cancelled. An error line in the stream is returned as a ClientError.
func (p *PullReader) Process(ctx context.Context, fn func(PullProgress)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := p.readLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return &ClientError{Type: ErrTypeConnection, Message: "pull stream interrupted", Cause: err}
		}
		if line == nil {
			continue
		}

		if line.Error != "" {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: line.Error}
		}
		p.last = *line
		if fn != nil {
			fn(*line)
		}
		if line.Status == "success" {
			return nil
		}
	}
}

// Last returns the most recent progress line seen.
func (p *PullReader) Last() PullProgress {
	return p.last
}

// readLine reads and parses a single line. Blank and malformed lines yield
// (nil, nil).
func (p *PullReader) readLine() (*PullProgress, error) {
	raw, err := p.reader.ReadBytes('\n')
	if err != nil {
		// Try to process the last line even on EOF
		if len(raw) == 0 {
			return nil, err
		}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var progress PullProgress
	if jsonErr := json.Unmarshal(raw, &progress); jsonErr != nil {
		// Skip malformed lines
		return nil, nil
	}
	return &progress, nil
}
