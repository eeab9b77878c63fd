// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package rehearse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ParseOutput parses a step output file into key-value pairs
//
// Each line is either `key=value` or the start of a multiline value in the
// form `key<<DELIMITER`, terminated by a line containing only DELIMITER.
func ParseOutput(r io.Reader) (map[string]string, error) {
	if rs, ok := r.(io.Seeker); ok {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}

	out := map[string]string{}

	scanner := bufio.NewScanner(r)
	// output values can get large, eg. a base64 encoded blob
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if key, delim, ok := strings.Cut(line, "<<"); ok && !strings.Contains(key, "=") {
			if delim == "" {
				return nil, errors.New("invalid syntax: missing delimiter after '<<'")
			}

			var lines []string
			terminated := false
			for scanner.Scan() {
				next := scanner.Text()
				if next == delim {
					terminated = true
					break
				}
				lines = append(lines, next)
			}
			if !terminated {
				return nil, errors.New("invalid syntax: multiline value not terminated")
			}

			out[strings.TrimSpace(key)] = strings.Join(lines, "\n")
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.New("invalid syntax: non-delimited multiline value")
		}

		out[strings.TrimSpace(key)] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
