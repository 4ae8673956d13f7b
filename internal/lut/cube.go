package lut

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// prealloc bounds the edge length the table is sized for up front.
const prealloc = 33

// ParseCube reads a .cube file.
//
// Recognized keywords are TITLE, LUT_3D_SIZE (required), DOMAIN_MIN and
// DOMAIN_MAX; lines starting with # are comments and other keywords are
// ignored. Data lines hold three floats. Malformed data lines are skipped with
// a warning on the context logger. When any value is above 1 the whole table
// is taken to be in 0..255 and scaled down.
func ParseCube(ctx context.Context, r io.Reader) (*LUT, error) {
	var (
		size  int
		meta  Metadata
		table []float32
		peak  float32
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "TITLE":
			meta.Title = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "TITLE")), `"`)
			continue
		case "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: malformed size line: %w", lineNo, ErrMissingSize)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: failed to parse LUT_3D_SIZE: %w", lineNo, err)
			}
			if n < MinSize || n > MaxSize {
				return nil, fmt.Errorf("line %d: %w: %d", lineNo, ErrUnsupportedSize, n)
			}
			size = n
			if table == nil {
				// Larger tables grow as rows arrive.
				c := min(n, prealloc)
				table = make([]float32, 0, c*c*c*3)
			}
			continue
		case "DOMAIN_MIN", "DOMAIN_MAX":
			v, err := parseTriple(fields[1:])
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Int("line", lineNo).Msg("skipping malformed domain line")
				continue
			}
			if fields[0] == "DOMAIN_MIN" {
				meta.DomainMin = v
			} else {
				meta.DomainMax = v
			}
			continue
		}

		if !isNumeric(fields[0]) {
			log.Ctx(ctx).Debug().Str("keyword", fields[0]).Int("line", lineNo).Msg("ignoring unknown cube keyword")
			continue
		}
		v, err := parseTriple(fields)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("line", lineNo).Msg("skipping malformed LUT data line")
			continue
		}
		for _, c := range v {
			f := float32(c)
			if f > peak {
				peak = f
			}
			table = append(table, f)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cube data: %w", err)
	}
	if size == 0 {
		return nil, ErrMissingSize
	}

	if peak > 1 {
		for i := range table {
			table[i] /= 255
		}
	}

	return New(size, table, meta)
}

// ParseCubeBytes is ParseCube over an in-memory file.
func ParseCubeBytes(ctx context.Context, data []byte) (*LUT, error) {
	return ParseCube(ctx, bytes.NewReader(data))
}

func parseTriple(fields []string) ([3]float64, error) {
	var v [3]float64
	if len(fields) != 3 {
		return v, fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, fmt.Errorf("failed to parse value %q: %w", f, err)
		}
		v[i] = x
	}
	return v, nil
}

// isNumeric reports whether s looks like the start of a data line rather
// than a keyword.
func isNumeric(s string) bool {
	c := s[0]
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}
