// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refcheck scores the trustworthiness of a draft's references
// section. References are classified by domain against an academic
// allow-list and a low-trust deny-list; the validity gate is soft, it
// tolerates noise but rejects lists dominated by banned sources.
package refcheck

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinReferences is the smallest acceptable reference count.
	MinReferences = 5

	// MaxBanned is the largest tolerated number of deny-listed entries.
	MaxBanned = 5

	// minSectionChars guards against a heading with no real content under it.
	minSectionChars = 30
)

// academicDomains marks trusted academic, government, and standards sources.
var academicDomains = []string{
	".edu", ".gov", ".ac.uk", "scielo", "arxiv.org", "doi.org",
	"ieee.org", "acm.org", "nature.com", "science.org", "springer",
	"sciencedirect", "pubmed", "nih.gov", "who.int", "jstor.org",
	"wiley.com", "academic.oup.com", "periodicos.capes.gov.br",
}

// bannedDomains marks low-trust consumer sites that must not dominate a
// reference list. The Brazilian homework-help sites are here because the
// models trained on them cite them constantly.
var bannedDomains = []string{
	"brainly", "passeidireto", "todamateria", "mundoeducacao",
	"brasilescola", "wikihow", "answers.com", "quora.com", "reddit.com",
	"facebook.com", "instagram.com", "tiktok.com", "pinterest",
	"buzzfeed", "slideshare",
}

// Result is the outcome of scoring one references section.
type Result struct {
	// Valid is true when the section exists, has enough entries, and
	// banned entries stay within MaxBanned.
	Valid bool

	// Errors lists the failed checks.
	Errors []string

	// TotalCount is the number of numbered reference entries found.
	TotalCount int

	// AcademicCount is how many entries matched the allow-list.
	AcademicCount int

	// BannedCount is how many entries matched the deny-list.
	BannedCount int

	// AcademicPercentage is AcademicCount/TotalCount*100. Reported even
	// on passing results so the pipeline can log reference quality.
	AcademicPercentage float64
}

// headingPattern matches the references section heading, in English or
// Portuguese, with optional bold markers.
var headingPattern = regexp.MustCompile(`(?i)^#{1,3}\s*\**\s*(references?|referências?|bibliografia)\s*:?\s*\**\s*$`)

// entryPattern matches one numbered reference line: "1. ...", "2) ...",
// or "[3] ...".
var entryPattern = regexp.MustCompile(`^\s*(?:\d+[.)]|\[\d+\])\s+(.+)$`)

// Check locates the references section in a draft and scores it.
func Check(draft string) Result {
	var res Result

	section, ok := referencesSection(draft)
	if !ok || len(strings.TrimSpace(section)) < minSectionChars {
		res.Errors = append(res.Errors, "no references section")
		return res
	}

	entries := Entries(section)
	res.TotalCount = len(entries)
	if res.TotalCount < MinReferences {
		res.Errors = append(res.Errors,
			fmt.Sprintf("too few references: %d (minimum %d)", res.TotalCount, MinReferences))
		return res
	}

	for _, entry := range entries {
		lower := strings.ToLower(entry)
		if matchesAny(lower, academicDomains) {
			res.AcademicCount++
		}
		if matchesAny(lower, bannedDomains) {
			res.BannedCount++
		}
	}
	res.AcademicPercentage = float64(res.AcademicCount) / float64(res.TotalCount) * 100

	if res.BannedCount > MaxBanned {
		res.Errors = append(res.Errors,
			fmt.Sprintf("%d banned sources exceed the limit of %d", res.BannedCount, MaxBanned))
		return res
	}

	res.Valid = true
	return res
}

// referencesSection returns the text between the references heading and
// the next heading (or end of draft).
func referencesSection(draft string) (string, bool) {
	lines := strings.Split(draft, "\n")
	start := -1
	for i, line := range lines {
		if headingPattern.MatchString(strings.TrimSpace(line)) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "#") {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n"), true
}

// Entries extracts the numbered reference lines from a references section.
func Entries(section string) []string {
	var entries []string
	for _, line := range strings.Split(section, "\n") {
		if m := entryPattern.FindStringSubmatch(line); m != nil {
			entries = append(entries, strings.TrimSpace(m[1]))
		}
	}
	return entries
}

func matchesAny(s string, domains []string) bool {
	for _, d := range domains {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}
