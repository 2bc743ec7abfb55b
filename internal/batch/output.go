package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"newsmatch/internal/storage"
)

// PartLocation returns where partition id writes its output. A single
// partition writes to loc itself.
func PartLocation(loc storage.Location, id, total int) storage.Location {
	if total <= 1 {
		return loc
	}
	return loc.WithSuffix(fmt.Sprintf("_part%d", id))
}

// Stats counts matched rows by copy ratio band.
type Stats struct {
	Matched int
	Mid     int
	High    int
}

// ComputeStats reads the ratio column of t. Rows whose ratio does not parse
// are ignored.
func ComputeStats(t *Table) Stats {
	col := t.Column(RatioColumn)
	if col < 0 {
		col = t.Column(KoreanRatioColumn)
	}
	var s Stats
	if col < 0 {
		return s
	}
	for i := range t.Rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(t.Cell(i, col)), 64)
		if err != nil || v <= 0 {
			continue
		}
		s.Matched++
		switch {
		case v >= 0.8:
			s.High++
		case v >= 0.3:
			s.Mid++
		}
	}
	return s
}

// AppendStats adds three summary rows to t: matched, 0.3 to 0.8, and 0.8 or
// above. Labels go in the first column and counts in the second.
func AppendStats(t *Table, s Stats) {
	labels := [3]string{"matched", "0.3 or above", "0.8 or above"}
	unit := ""
	if t.Korean() {
		labels = [3]string{"매칭건수", "0.3 이상", "0.8 이상"}
		unit = "건"
	}
	width := max(len(t.Header), 2)
	for i, n := range []int{s.Matched, s.Mid, s.High} {
		row := make([]string, width)
		row[0] = labels[i]
		row[1] = strconv.Itoa(n) + unit
		t.Rows = append(t.Rows, row)
	}
}

// Concat joins partition tables in order. Every table must share the header
// of the first non-empty one.
func Concat(parts []*Table) (*Table, error) {
	out := &Table{}
	for i, p := range parts {
		if p == nil || len(p.Header) == 0 {
			continue
		}
		if out.Header == nil {
			out.Header = p.Header
		} else if !equalHeaders(out.Header, p.Header) {
			return nil, fmt.Errorf("partition %d: header differs from partition files before it", i)
		}
		out.Rows = append(out.Rows, p.Rows...)
	}
	return out, nil
}

func equalHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if headerKey(a[i]) != headerKey(b[i]) {
			return false
		}
	}
	return true
}

// Read loads and decodes the table at loc.
func Read(ctx context.Context, blobs *storage.Blobs, loc storage.Location) (*Table, error) {
	data, err := blobs.ReadAll(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	t, err := Decode(data, loc.Ext())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", loc, err)
	}
	return t, nil
}

// Write encodes t in the format of loc and stores it.
func Write(ctx context.Context, blobs *storage.Blobs, loc storage.Location, t *Table) error {
	data, err := Encode(t, loc.Ext())
	if err != nil {
		return fmt.Errorf("encode %s: %w", loc, err)
	}
	if err := blobs.WriteAll(ctx, loc, data); err != nil {
		return fmt.Errorf("write %s: %w", loc, err)
	}
	return nil
}

// Merge concatenates the total partition files of output into output,
// optionally appending statistics rows. Missing partition files fail the merge.
func Merge(ctx context.Context, blobs *storage.Blobs, output storage.Location, total int, withStats bool) (Stats, error) {
	if total <= 0 {
		return Stats{}, fmt.Errorf("total partitions must be > 0 (got %d)", total)
	}
	parts := make([]*Table, 0, total)
	var errs []error
	for id := 0; id < total; id++ {
		t, err := Read(ctx, blobs, PartLocation(output, id, total))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parts = append(parts, t)
	}
	if err := errors.Join(errs...); err != nil {
		return Stats{}, err
	}
	merged, err := Concat(parts)
	if err != nil {
		return Stats{}, err
	}
	stats := ComputeStats(merged)
	if withStats {
		AppendStats(merged, stats)
	}
	return stats, Write(ctx, blobs, output, merged)
}
