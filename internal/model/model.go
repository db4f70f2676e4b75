// Package model defines the core data types shared across lexisafe.
package model

import (
	"fmt"
	"strings"
)

// Severity categorizes the risk of a contract clause.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// Severities lists every severity in display order, highest first.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	default:
		return "unknown"
	}
}

// Label is the heading used for a severity bucket in reports and the dashboard.
func (s Severity) Label() string {
	switch s {
	case SeverityHigh:
		return "Critical Risks"
	case SeverityMedium:
		return "Warnings"
	default:
		return "Safe Clauses"
	}
}

// MarshalText encodes the severity by name so JSON output reads "High" rather than 2.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText, case-insensitively.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "high":
		*s = SeverityHigh
	case "medium":
		*s = SeverityMedium
	case "low":
		*s = SeverityLow
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// RiskRecord is one identified contract issue. Records are produced by the
// analysis parser and never edited afterwards.
type RiskRecord struct {
	Title          string   `json:"title"`
	Severity       Severity `json:"severity"`
	Explanation    string   `json:"explanation"`
	RecommendedFix string   `json:"recommended_fix"`
}

// RiskCollection groups risk records by severity. Each bucket keeps the order
// in which records were encountered in the model response.
type RiskCollection struct {
	High   []RiskRecord `json:"high"`
	Medium []RiskRecord `json:"medium"`
	Low    []RiskRecord `json:"low"`
}

// Add appends r to the bucket matching its severity.
func (c *RiskCollection) Add(r RiskRecord) {
	switch r.Severity {
	case SeverityHigh:
		c.High = append(c.High, r)
	case SeverityMedium:
		c.Medium = append(c.Medium, r)
	default:
		c.Low = append(c.Low, r)
	}
}

// Bucket returns the records for one severity.
func (c RiskCollection) Bucket(s Severity) []RiskRecord {
	switch s {
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	default:
		return c.Low
	}
}

// Counts returns the bucket sizes in High, Medium, Low order.
func (c RiskCollection) Counts() (high, medium, low int) {
	return len(c.High), len(c.Medium), len(c.Low)
}

// Total returns the number of records across all buckets.
func (c RiskCollection) Total() int {
	return len(c.High) + len(c.Medium) + len(c.Low)
}

// IsEmpty reports whether no records were parsed.
func (c RiskCollection) IsEmpty() bool {
	return c.Total() == 0
}

// All returns every record, High bucket first.
func (c RiskCollection) All() []RiskRecord {
	all := make([]RiskRecord, 0, c.Total())
	for _, s := range Severities {
		all = append(all, c.Bucket(s)...)
	}
	return all
}

// MaxSeverity returns the highest severity present. ok is false for an empty collection.
func (c RiskCollection) MaxSeverity() (s Severity, ok bool) {
	for _, s := range Severities {
		if len(c.Bucket(s)) > 0 {
			return s, true
		}
	}
	return SeverityLow, false
}

// Summary returns a one-line summary of the collection.
func (c RiskCollection) Summary() string {
	if c.IsEmpty() {
		return "No risks found"
	}
	h, m, l := c.Counts()
	return fmt.Sprintf("%d Critical Risks, %d Warnings, %d Safe Clauses", h, m, l)
}

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModalKind identifies which add-on panel is open over the dashboard.
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalChat
	ModalEmail
)

func (k ModalKind) String() string {
	switch k {
	case ModalNone:
		return "none"
	case ModalChat:
		return "chat"
	case ModalEmail:
		return "email"
	default:
		return "unknown"
	}
}

// ParseModalKind maps a modal name back to its kind.
func ParseModalKind(name string) (ModalKind, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return ModalNone, nil
	case "chat":
		return ModalChat, nil
	case "email":
		return ModalEmail, nil
	default:
		return ModalNone, fmt.Errorf("unknown modal %q", name)
	}
}
