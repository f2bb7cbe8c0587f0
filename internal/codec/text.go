package codec

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// Text stores one record per line.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) Save(path string, lines []string) error {
	var buf bytes.Buffer
	for _, line := range lines {
		if strings.ContainsAny(line, "\r\n") {
			return errors.Errorf("record %q spans lines", line)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return writeAtomic(path, buf.Bytes())
}

// Load returns every non-blank line, trimmed.
func (Text) Load(path string) ([]string, error) {
	data, err := readFile(path)
	if err != nil || data == nil {
		return []string{}, err
	}

	lines := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s", path)
	}
	return lines, nil
}
