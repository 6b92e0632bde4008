// Package planner derives the registration numbers to query for a batch.
//
// A registration number such as 22104134010 is made of a prefix (22104134)
// whose first two digits are the cohort year, and a three digit roll suffix
// (010). Regular students are numbered 001-060; lateral entry students join
// one cohort year later and are numbered 901-925.
package planner

import (
	"errors"
	"fmt"
	"strconv"
)

// Block boundaries and sub-batch size.
const (
	BatchSize = 5

	RegularFirst = 1
	RegularLast  = 60

	LateralFirst = 901
	LateralLast  = 925

	maxSuffix = 999
)

var (
	// ErrInvalidRegNo is returned when a registration number has no numeric suffix.
	ErrInvalidRegNo = errors.New("invalid registration number")

	// ErrInvalidSuffix is returned when the suffix is outside both the regular
	// and the lateral entry block.
	ErrInvalidSuffix = errors.New("invalid last 3 digits of registration number")

	// ErrCohortOutOfRange is returned when shifting the cohort year would leave
	// the two digit range.
	ErrCohortOutOfRange = errors.New("cohort year out of range")
)

// Track is the admission track inferred from the roll suffix.
type Track string

const (
	TrackRegular Track = "regular"
	TrackLateral Track = "lateral"
)

// RegNo is a parsed registration number.
type RegNo struct {
	Prefix string
	Suffix int
}

// Parse splits regNo into prefix and numeric suffix.
func Parse(regNo string) (RegNo, error) {
	if len(regNo) < 4 {
		return RegNo{}, fmt.Errorf("%w: %q is too short", ErrInvalidRegNo, regNo)
	}

	tail := regNo[len(regNo)-3:]
	suffix, err := strconv.Atoi(tail)
	if err != nil || suffix < 0 {
		return RegNo{}, fmt.Errorf("%w: suffix %q is not numeric", ErrInvalidRegNo, tail)
	}

	return RegNo{Prefix: regNo[:len(regNo)-3], Suffix: suffix}, nil
}

// String formats the registration number with a zero padded suffix.
func (r RegNo) String() string {
	return Format(r.Prefix, r.Suffix)
}

// Track classifies the suffix into the regular or lateral entry block.
func (r RegNo) Track() (Track, error) {
	switch {
	case r.Suffix >= RegularFirst && r.Suffix <= RegularLast:
		return TrackRegular, nil
	case r.Suffix >= LateralFirst && r.Suffix <= LateralLast:
		return TrackLateral, nil
	default:
		return "", ErrInvalidSuffix
	}
}

// Format joins prefix and suffix, padding the suffix to three digits.
func Format(prefix string, suffix int) string {
	return fmt.Sprintf("%s%03d", prefix, suffix)
}

// SubBatch is a contiguous run of at most BatchSize registration numbers
// sharing a prefix.
type SubBatch struct {
	Prefix string
	Start  int
	Size   int
}

// First returns the registration number the sub-batch starts at.
func (b SubBatch) First() string {
	return Format(b.Prefix, b.Start)
}

// Numbers expands the sub-batch into registration numbers.
// Suffixes past 999 do not exist and are dropped.
func (b SubBatch) Numbers() []string {
	out := make([]string, 0, b.Size)
	for i := b.Start; i < b.Start+b.Size && i <= maxSuffix; i++ {
		out = append(out, Format(b.Prefix, i))
	}
	return out
}

// Core plans the single sub-batch starting at regNo itself.
func Core(regNo string) (SubBatch, error) {
	r, err := Parse(regNo)
	if err != nil {
		return SubBatch{}, err
	}
	return SubBatch{Prefix: r.Prefix, Start: r.Suffix, Size: BatchSize}, nil
}

// Extended plans the full roster around regNo: its own block plus the
// adjacent block of the other admission track.
//
// A regular number adds the lateral entry block of the next cohort year;
// a lateral entry number adds the regular block of the previous one.
func Extended(regNo string) ([]SubBatch, error) {
	r, err := Parse(regNo)
	if err != nil {
		return nil, err
	}

	track, err := r.Track()
	if err != nil {
		return nil, err
	}

	var batches []SubBatch
	switch track {
	case TrackRegular:
		lateralPrefix, err := ShiftCohort(r.Prefix, 1)
		if err != nil {
			return nil, err
		}
		batches = append(batches, Chunk(r.Prefix, RegularFirst, RegularLast, BatchSize)...)
		batches = append(batches, Chunk(lateralPrefix, LateralFirst, LateralLast, BatchSize)...)
	case TrackLateral:
		regularPrefix, err := ShiftCohort(r.Prefix, -1)
		if err != nil {
			return nil, err
		}
		batches = append(batches, Chunk(r.Prefix, LateralFirst, LateralLast, BatchSize)...)
		batches = append(batches, Chunk(regularPrefix, RegularFirst, RegularLast, BatchSize)...)
	}

	return batches, nil
}

// Chunk splits the inclusive suffix range [first, last] into sub-batches of
// size, clipping the final one at last.
func Chunk(prefix string, first, last, size int) []SubBatch {
	if size <= 0 || last < first {
		return nil
	}

	out := make([]SubBatch, 0, (last-first)/size+1)
	for start := first; start <= last; start += size {
		n := size
		if start+n-1 > last {
			n = last - start + 1
		}
		out = append(out, SubBatch{Prefix: prefix, Start: start, Size: n})
	}
	return out
}

// ShiftCohort adds delta to the two digit cohort year leading prefix.
func ShiftCohort(prefix string, delta int) (string, error) {
	if len(prefix) < 2 {
		return "", fmt.Errorf("%w: prefix %q has no cohort year", ErrCohortOutOfRange, prefix)
	}

	year, err := strconv.Atoi(prefix[:2])
	if err != nil || year < 0 {
		return "", fmt.Errorf("%w: cohort %q is not numeric", ErrCohortOutOfRange, prefix[:2])
	}

	shifted := year + delta
	if shifted < 0 || shifted > 99 {
		return "", fmt.Errorf("%w: %02d%+d", ErrCohortOutOfRange, year, delta)
	}

	return fmt.Sprintf("%02d%s", shifted, prefix[2:]), nil
}

// Flatten expands sub-batches into registration numbers in order.
func Flatten(batches []SubBatch) []string {
	var out []string
	for _, b := range batches {
		out = append(out, b.Numbers()...)
	}
	return out
}
