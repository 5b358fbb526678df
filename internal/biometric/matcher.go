package biometric

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Candidate is an enrolled (username, vector) pair offered to the matcher.
type Candidate struct {
	Username string
	Vector   FeatureVector
	Method   Method
}

// CandidatesFrom keeps directory order, which is what makes ties deterministic.
func CandidatesFrom(users []domain.EnrolledUser) []Candidate {
	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, Candidate{
			Username: u.Username,
			Vector:   u.FaceVector,
			Method:   Method(u.FaceMethod),
		})
	}
	return candidates
}

// Matcher finds the nearest enrolled vector under a profile's metric and
// accepts it when the distance is below the profile's threshold.
type Matcher struct {
	profile Profile
}

// NewMatcher validates the profile once and binds it to the matcher.
func NewMatcher(profile Profile) (*Matcher, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{profile: profile}, nil
}

// Profile returns the profile the matcher was built with.
func (m *Matcher) Profile() Profile {
	return m.profile
}

// Match compares query against every usable candidate. Candidates with a
// missing, malformed or foreign-method vector are skipped. The minimum
// distance wins and the first candidate keeps a tie. Match has no side
// effects.
func (m *Matcher) Match(query FeatureVector, candidates []Candidate) (domain.MatchResult, error) {
	if err := m.profile.Conforms(query); err != nil {
		return domain.MatchResult{}, fmt.Errorf("match query: %w", err)
	}

	var (
		best         *string
		bestDistance = math.Inf(1)
	)

	for i := range candidates {
		c := &candidates[i]
		if !m.usable(c) {
			continue
		}

		d, err := m.profile.Distance(query, c.Vector)
		if err != nil {
			continue
		}

		if d < bestDistance {
			bestDistance = d
			name := c.Username
			best = &name
		}
	}

	if best == nil {
		return domain.MatchResult{Distance: math.Inf(1)}, nil
	}

	return domain.MatchResult{
		CandidateUsername: best,
		Distance:          bestDistance,
		Confidence:        Confidence(bestDistance),
		Accepted:          bestDistance < m.profile.Threshold,
	}, nil
}

func (m *Matcher) usable(c *Candidate) bool {
	if len(c.Vector) != m.profile.Dimension || !c.Vector.Finite() {
		return false
	}
	return c.Method == "" || c.Method == m.profile.Method
}

// Confidence maps a distance to a display score in [0,100]. It is not a
// probability; it falls monotonically with distance and is 0 from 1 on.
func Confidence(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	c := (1 - math.Min(distance, 1)) * 100
	return math.Max(0, math.Min(100, c))
}
