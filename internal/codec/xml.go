package codec

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/dreamware/shardsort/internal/record"
	"github.com/pkg/errors"
)

// XML stores a shard as a <shard> document with one <record> element per
// entry. The kind attribute is informational; Load returns element text.
type XML struct{}

type xmlShard struct {
	XMLName xml.Name    `xml:"shard"`
	Records []xmlRecord `xml:"record"`
}

type xmlRecord struct {
	Kind string `xml:"kind,attr,omitempty"`
	Text string `xml:",chardata"`
}

func (XML) Name() string { return "xml" }

func (XML) Save(path string, lines []string) error {
	doc := xmlShard{Records: make([]xmlRecord, len(lines))}
	for i, line := range lines {
		doc.Records[i] = xmlRecord{Kind: kindOf(line), Text: line}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	buf.WriteByte('\n')
	return writeAtomic(path, buf.Bytes())
}

func (XML) Load(path string) ([]string, error) {
	data, err := readFile(path)
	if err != nil || data == nil {
		return []string{}, err
	}

	var doc xmlShard
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	lines := make([]string, 0, len(doc.Records))
	for _, r := range doc.Records {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	return lines, nil
}

func kindOf(line string) string {
	switch {
	case strings.HasPrefix(line, record.PhonePrefix):
		return string(record.KindPhone)
	case strings.HasPrefix(line, record.ManufacturerPrefix):
		return string(record.KindManufacturer)
	}
	return ""
}
