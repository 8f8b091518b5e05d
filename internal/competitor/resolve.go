// Package competitor reduces a raw local-pack result list to the comparable
// competitor set kept on a business profile.
package competitor

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/pkg/places"
)

// maxCompetitors bounds the competitor list kept on a profile.
const maxCompetitors = 5

// Subject identifies the business being scored, for self-exclusion and
// comparison tagging.
type Subject struct {
	Domain      string
	Name        string
	Rating      *float64
	ReviewCount int
}

// Resolve filters the subject business out of a ranked local-pack list and
// reduces the remainder to at most five CompetitorSummary records, keeping
// the provider's original ranking order. Candidates are excluded when their
// normalized domain or normalized name equals, contains, or is contained by
// the subject's; the two tests are independent and both applied.
func Resolve(subject Subject, raw []places.RawBusiness) []model.CompetitorSummary {
	subjDomain := NormalizeDomain(subject.Domain)
	subjName := normalizeName(subject.Name)

	var out []model.CompetitorSummary
	for _, cand := range raw {
		if len(out) >= maxCompetitors {
			break
		}

		candDomain := NormalizeDomain(cand.Website)
		if fuzzyMatch(subjDomain, candDomain) {
			continue
		}
		if fuzzyMatch(subjName, normalizeName(cand.Name)) {
			continue
		}

		summary := model.CompetitorSummary{
			Name:   cand.Name,
			Domain: candDomain,
		}
		if cand.Rating != nil {
			summary.Rating = *cand.Rating
		}
		if cand.ReviewCount != nil {
			summary.ReviewCount = *cand.ReviewCount
		}
		summary.Comparison = compare(subject, summary)

		out = append(out, summary)
	}
	return out
}

// compare tags a competitor against the subject. The tag is
// order-insensitive: a candidate that wins on one axis and loses on the
// other is mixed, and mixed or tied results default to equal.
func compare(subject Subject, c model.CompetitorSummary) model.Comparison {
	subjRating := 0.0
	if subject.Rating != nil {
		subjRating = *subject.Rating
	}

	exceeds := c.Rating > subjRating || c.ReviewCount > subject.ReviewCount
	trails := c.Rating < subjRating || c.ReviewCount < subject.ReviewCount

	switch {
	case exceeds && !trails:
		return model.ComparisonBetter
	case trails && !exceeds:
		return model.ComparisonWorse
	default:
		return model.ComparisonEqual
	}
}

// fuzzyMatch reports whether two normalized identifiers are equal or one
// contains the other. Empty identifiers never match.
func fuzzyMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// NormalizeDomain strips scheme, a leading www prefix, any path, and
// lower-cases the remainder.
func NormalizeDomain(rawURL string) string {
	d := strings.TrimSpace(strings.ToLower(rawURL))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return d
}

// normalizeName folds a business name to a canonical comparison form:
// NFKC-normalized, lower-cased, inner whitespace collapsed.
func normalizeName(name string) string {
	folded := strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
	return strings.Join(strings.Fields(folded), " ")
}
