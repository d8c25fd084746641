package domain

import (
	"fmt"
	"strings"
)

// CitationEdge is a directed relation meaning CitingID cites CitedID.
type CitationEdge struct {
	CitingID string `json:"citing_id"`
	CitedID  string `json:"cited_id"`
}

// IsSelfCitation reports whether the edge points back at its origin.
func (e CitationEdge) IsSelfCitation() bool {
	return e.CitingID == e.CitedID
}

// SelfCitationPolicy decides what happens to an edge whose citing and cited
// ids are equal.
type SelfCitationPolicy string

const (
	// SelfCitationAllow stores self edges like any other edge.
	SelfCitationAllow SelfCitationPolicy = "allow"
	// SelfCitationReject refuses self edges at ingestion with ErrSelfCitation.
	SelfCitationReject SelfCitationPolicy = "reject"
)

// ParseSelfCitationPolicy parses a policy name. The empty string maps to allow.
func ParseSelfCitationPolicy(s string) (SelfCitationPolicy, error) {
	switch SelfCitationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SelfCitationAllow:
		return SelfCitationAllow, nil
	case SelfCitationReject:
		return SelfCitationReject, nil
	default:
		return "", NewConfigurationError("citation.self_citation", fmt.Sprintf("unknown policy %q", s))
	}
}

// Check validates an edge against the policy.
func (p SelfCitationPolicy) Check(e CitationEdge) error {
	if strings.TrimSpace(e.CitingID) == "" {
		return NewValidationError("citing_id", "citing id is required")
	}
	if strings.TrimSpace(e.CitedID) == "" {
		return NewValidationError("cited_id", "cited id is required")
	}
	if p == SelfCitationReject && e.IsSelfCitation() {
		return fmt.Errorf("%w: %s", ErrSelfCitation, e.CitingID)
	}
	return nil
}
