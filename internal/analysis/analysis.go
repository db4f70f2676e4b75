// Package analysis turns the model's delimited risk response into structured
// risk records.
//
// The response protocol is informal: records are separated by "###" and the
// fields of one record by "|", in the order title, severity, explanation and
// an optional recommended fix. The model does not always follow the format,
// so the parser keeps every well-formed record and drops the rest without
// reporting an error.
package analysis

import (
	"strings"

	"github.com/sprite-ai/lexisafe/internal/model"
)

const (
	// SegmentDelimiter separates records in the model response.
	SegmentDelimiter = "###"
	// FieldDelimiter separates the fields of one record.
	FieldDelimiter = "|"

	minFields = 3
)

// Stats describes what happened to each segment of a response.
type Stats struct {
	Segments     int // segments after splitting on SegmentDelimiter
	Accepted     int // segments that became records
	NoDelimiter  int // segments without a field delimiter (preamble, chatter)
	TooFewFields int // segments with fewer than three fields
	EmptyTitle   int // segments whose title was blank after trimming
	Unclassified int // accepted records whose severity matched no known label
}

// Dropped returns the number of segments that did not become records.
func (s Stats) Dropped() int {
	return s.Segments - s.Accepted
}

// Parse converts a raw model response into a RiskCollection. It never fails:
// an empty or malformed response yields an empty collection.
func Parse(raw string) model.RiskCollection {
	c, _ := ParseWithStats(raw)
	return c
}

// ParseWithStats is Parse plus per-segment bookkeeping.
func ParseWithStats(raw string) (model.RiskCollection, Stats) {
	var (
		c     model.RiskCollection
		stats Stats
	)

	for _, segment := range strings.Split(raw, SegmentDelimiter) {
		stats.Segments++

		if !strings.Contains(segment, FieldDelimiter) {
			stats.NoDelimiter++
			continue
		}

		rec, reason := parseSegment(segment)
		switch reason {
		case dropTooFewFields:
			stats.TooFewFields++
			continue
		case dropEmptyTitle:
			stats.EmptyTitle++
			continue
		}

		if !hasSeverityLabel(rec.rawSeverity) {
			stats.Unclassified++
		}
		c.Add(rec.RiskRecord)
		stats.Accepted++
	}

	return c, stats
}

type dropReason int

const (
	keep dropReason = iota
	dropTooFewFields
	dropEmptyTitle
)

type parsedSegment struct {
	model.RiskRecord
	rawSeverity string
}

func parseSegment(segment string) (parsedSegment, dropReason) {
	fields := strings.Split(segment, FieldDelimiter)
	if len(fields) < minFields {
		return parsedSegment{}, dropTooFewFields
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	title := fields[0]
	if title == "" {
		return parsedSegment{}, dropEmptyTitle
	}

	var fix string
	if len(fields) > minFields {
		fix = fields[3]
	}

	return parsedSegment{
		RiskRecord: model.RiskRecord{
			Title:          title,
			Severity:       ClassifySeverity(fields[1]),
			Explanation:    fields[2],
			RecommendedFix: fix,
		},
		rawSeverity: fields[1],
	}, keep
}

// ClassifySeverity maps a raw severity field to a Severity by case-sensitive
// substring match. "High" wins over "Medium"; anything else is Low.
func ClassifySeverity(raw string) model.Severity {
	switch {
	case strings.Contains(raw, "High"):
		return model.SeverityHigh
	case strings.Contains(raw, "Medium"):
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func hasSeverityLabel(raw string) bool {
	return strings.Contains(raw, "High") ||
		strings.Contains(raw, "Medium") ||
		strings.Contains(raw, "Low")
}
