package record

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// SortLast is the key given to lines that carry no recognisable id.
const SortLast = math.MaxInt

// ManufacturerOffset keeps manufacturer keys clear of phone keys.
const ManufacturerOffset = 1000

// SortKey extracts the numeric ordering key from a record's text.
//
// Phone lines key on the first digit run of the Model= field, manufacturer
// lines on the first digit run of the Name= field plus ManufacturerOffset.
// Anything else yields SortLast.
//
// TODO: replace digit scanning with a key field persisted alongside the
// text once shard files carry typed records.
func SortKey(line string) int {
	switch {
	case strings.HasPrefix(line, PhonePrefix):
		if id, ok := fieldDigits(line[len(PhonePrefix):], "Model="); ok {
			return id
		}
	case strings.HasPrefix(line, ManufacturerPrefix):
		if id, ok := fieldDigits(line[len(ManufacturerPrefix):], "Name="); ok {
			return id + ManufacturerOffset
		}
	}
	return SortLast
}

// fieldDigits finds the comma-separated field containing label and parses
// the first run of digits after it.
func fieldDigits(body, label string) (int, bool) {
	for _, part := range strings.Split(body, ",") {
		idx := strings.Index(part, label)
		if idx < 0 {
			continue
		}
		value := part[idx+len(label):]
		start := strings.IndexFunc(value, isDigit)
		if start < 0 {
			return 0, false
		}
		end := start
		for end < len(value) && isDigit(rune(value[end])) {
			end++
		}
		id, err := strconv.Atoi(value[start:end])
		if err != nil || id > math.MaxInt-ManufacturerOffset {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Compare orders record texts by SortKey, then lexicographically.
func Compare(a, b string) int {
	ka, kb := SortKey(a), SortKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return strings.Compare(a, b)
}

// Sort orders lines in place using Compare.
func Sort(lines []string) {
	slices.SortFunc(lines, Compare)
}

// IsSorted reports whether lines are non-decreasing under Compare.
func IsSorted(lines []string) bool {
	return slices.IsSortedFunc(lines, Compare)
}
