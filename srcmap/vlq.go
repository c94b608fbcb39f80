package srcmap

import (
	"errors"
	"fmt"
	"strings"
)

const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift
	vlqBaseMask        = vlqBase - 1
	vlqContinuationBit = vlqBase
	vlqAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
)

var vlqDecodeTable = func() (t [256]int8) {
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(vlqAlphabet); i++ {
		t[vlqAlphabet[i]] = int8(i)
	}
	return t
}()

var errVLQ = errors.New("invalid base64 VLQ")

// Segment is a single decoded mapping with absolute values. Fields is 1
// (generated column only), 4 (with source position) or 5 (with name).
type Segment struct {
	GenColumn int
	Source    int
	Line      int
	Column    int
	Name      int
	Fields    int
}

// Lines holds decoded mappings, one slice of segments per generated line.
type Lines [][]Segment

func appendVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & vlqBaseMask
		u >>= vlqBaseShift
		if u > 0 {
			digit |= vlqContinuationBit
		}
		sb.WriteByte(vlqAlphabet[digit])
		if u == 0 {
			return
		}
	}
}

func readVLQ(s string, pos int) (int, int, error) {
	var (
		result, shift int
	)
	for {
		if pos >= len(s) {
			return 0, pos, errVLQ
		}
		digit := int(vlqDecodeTable[s[pos]])
		if digit < 0 {
			return 0, pos, errVLQ
		}
		pos++
		result += (digit & vlqBaseMask) << shift
		if digit&vlqContinuationBit == 0 {
			break
		}
		shift += vlqBaseShift
		if shift > 60 {
			return 0, pos, errVLQ
		}
	}
	if result&1 != 0 {
		return -(result >> 1), pos, nil
	}
	return result >> 1, pos, nil
}

// DecodeMappings decodes "mappings" field into absolute segments.
func DecodeMappings(mappings string) (Lines, error) {
	var (
		lines                      = Lines{nil}
		source, line, column, name int
		genColumn                  int
	)
	for pos := 0; pos < len(mappings); {
		switch mappings[pos] {
		case ';':
			lines = append(lines, nil)
			genColumn = 0
			pos++
			continue
		case ',':
			pos++
			continue
		}

		var (
			fields [5]int
			n      int
			err    error
		)
		for pos < len(mappings) && mappings[pos] != ',' && mappings[pos] != ';' {
			if n == len(fields) {
				return nil, fmt.Errorf("mappings offset %d: segment has too many fields", pos)
			}
			if fields[n], pos, err = readVLQ(mappings, pos); err != nil {
				return nil, fmt.Errorf("mappings offset %d: %w", pos, err)
			}
			n++
		}
		if n != 1 && n != 4 && n != 5 {
			return nil, fmt.Errorf("mappings offset %d: segment has %d fields", pos, n)
		}

		genColumn += fields[0]
		seg := Segment{GenColumn: genColumn, Fields: n}
		if n >= 4 {
			source += fields[1]
			line += fields[2]
			column += fields[3]
			seg.Source, seg.Line, seg.Column = source, line, column
		}
		if n == 5 {
			name += fields[4]
			seg.Name = name
		}
		cur := len(lines) - 1
		lines[cur] = append(lines[cur], seg)
	}
	return lines, nil
}

// EncodeMappings is the reverse of DecodeMappings. Segments on every line
// must be ordered by generated column.
func EncodeMappings(lines Lines) string {
	var (
		sb                         strings.Builder
		source, line, column, name int
	)
	for i, segs := range lines {
		if i > 0 {
			sb.WriteByte(';')
		}
		genColumn := 0
		for j, seg := range segs {
			if j > 0 {
				sb.WriteByte(',')
			}
			appendVLQ(&sb, seg.GenColumn-genColumn)
			genColumn = seg.GenColumn
			if seg.Fields < 4 {
				continue
			}
			appendVLQ(&sb, seg.Source-source)
			appendVLQ(&sb, seg.Line-line)
			appendVLQ(&sb, seg.Column-column)
			source, line, column = seg.Source, seg.Line, seg.Column
			if seg.Fields == 5 {
				appendVLQ(&sb, seg.Name-name)
				name = seg.Name
			}
		}
	}
	return sb.String()
}
