package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseJSONLines parses newline-delimited JSON. Blank lines are skipped.
func ParseJSONLines[T any](data []byte) ([]T, error) {
	var results []T
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		results = append(results, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSON lines: %w", err)
	}
	return results, nil
}

// ParseJSON parses a single JSON document. A surrounding markdown code
// fence is removed first, since models often add one even when asked for
// raw JSON.
func ParseJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal([]byte(StripCodeFence(string(data))), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &result, nil
}
