package investigation

import (
	"strings"

	"frameworks/almanac/pkg/search"
)

// reliableDomains are matched as substrings of the lower-cased URL.
var reliableDomains = []string{
	".gov",
	".edu",
	"europa.eu",
	"who.int",
	"un.org",
	"oecd.org",
	"imf.org",
	"worldbank.org",
	"bis.org",
	"iso.org",
	"ietf.org",
	"w3.org",
	"ifrs.org",
	"fasb.org",
	"iasb.org",
	"aicpa.org",
	"ieee.org",
	"wikipedia.org",
	"britannica.com",
}

// reliableHostLabels must appear as whole labels in the URL host, so
// "nato.int" and "army.mil.nz" match but "intel.com" does not.
var reliableHostLabels = []string{
	".int",
	".mil",
}

// ReliableDomains returns a copy of the allow-list.
func ReliableDomains() []string {
	out := append([]string(nil), reliableDomains...)
	return append(out, reliableHostLabels...)
}

func IsReliable(url string) bool {
	lowered := strings.ToLower(url)
	for _, domain := range reliableDomains {
		if strings.Contains(lowered, domain) {
			return true
		}
	}
	host := search.Result{URL: url}.Host()
	for _, label := range reliableHostLabels {
		if strings.HasSuffix(host, label) || strings.Contains(host, label+".") {
			return true
		}
	}
	return false
}

// ValidateSources partitions results by the allow-list. Every input lands in
// exactly one of the two slices and input order is kept.
func ValidateSources(results []search.Result) (reliable, questionable []search.Result) {
	for _, r := range results {
		if IsReliable(r.URL) {
			reliable = append(reliable, r)
		} else {
			questionable = append(questionable, r)
		}
	}
	return reliable, questionable
}

// dedupeByURL keeps the first result for each URL.
func dedupeByURL(results []search.Result) []search.Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		key := strings.TrimSpace(r.URL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
