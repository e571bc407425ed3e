// Package directory recognizes mail from companies the user already applied to.
package directory

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/service/extract"
	"github.com/sanskarm7/JobCATGmail/core/service/prefilter"
)

type MatchType string

const (
	MatchEmailDomain MatchType = "email_domain"
	MatchCompanyName MatchType = "company_name"
)

const (
	DomainMatchConfidence = 0.9
	NameMatchConfidence   = 0.7

	minVariantLength = 3
)

// Match is a hit against a known company.
type Match struct {
	Company    string
	Type       MatchType
	Confidence float64
	Signal     string
}

var legalSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "llc": {}, "ltd": {}, "limited": {}, "corp": {},
	"corporation": {}, "co": {}, "company": {}, "plc": {}, "gmbh": {}, "ag": {},
	"sa": {}, "lp": {}, "llp": {}, "group": {}, "holdings": {},
}

// Shared mailbox providers never identify a company.
var freeMailDomains = map[string]struct{}{
	"gmail.com": {}, "googlemail.com": {}, "outlook.com": {}, "hotmail.com": {},
	"live.com": {}, "yahoo.com": {}, "icloud.com": {}, "me.com": {}, "aol.com": {},
	"proton.me": {}, "protonmail.com": {}, "gmx.com": {}, "mail.com": {},
}

// Entry is what the directory knows about one company.
type Entry struct {
	Name       string
	Normalized string
	Variants   []string
	Domains    []string
}

type variantRef struct {
	variant string
	company string
}

type domainRef struct {
	domain  string
	company string
}

// Directory is built once per sync run and read concurrently afterwards.
type Directory struct {
	entries  []Entry
	domains  []domainRef
	variants []variantRef
}

// Build indexes the companies of the given applications. Applications whose
// company is empty or Unknown are ignored. ats may be nil.
func Build(apps []*domain.Application, ats *prefilter.Filter) *Directory {
	byName := make(map[string]*Entry)
	var order []string

	for _, app := range apps {
		norm := NormalizeName(app.Company)
		if norm == "" || norm == strings.ToLower(domain.UnknownValue) {
			continue
		}
		e, ok := byName[norm]
		if !ok {
			e = &Entry{Name: app.Company, Normalized: norm}
			e.Variants = nameVariants(norm)
			e.Domains = heuristicDomains(norm)
			byName[norm] = e
			order = append(order, norm)
		}
		for _, from := range []string{app.From, app.LastEmailFrom} {
			d := extract.SenderDomain(from)
			if d == "" || isSharedDomain(d, ats) {
				continue
			}
			e.Domains = appendUnique(e.Domains, d)
		}
	}

	sort.Strings(order)
	dir := &Directory{}
	for _, norm := range order {
		e := byName[norm]
		dir.entries = append(dir.entries, *e)
		for _, d := range e.Domains {
			dir.domains = append(dir.domains, domainRef{domain: d, company: e.Name})
		}
		for _, v := range e.Variants {
			dir.variants = append(dir.variants, variantRef{variant: v, company: e.Name})
		}
	}

	// Most specific first: longer domains and variants win, ties by company name.
	sort.SliceStable(dir.domains, func(i, j int) bool {
		if len(dir.domains[i].domain) != len(dir.domains[j].domain) {
			return len(dir.domains[i].domain) > len(dir.domains[j].domain)
		}
		return dir.domains[i].company < dir.domains[j].company
	})
	sort.SliceStable(dir.variants, func(i, j int) bool {
		if len(dir.variants[i].variant) != len(dir.variants[j].variant) {
			return len(dir.variants[i].variant) > len(dir.variants[j].variant)
		}
		return dir.variants[i].company < dir.variants[j].company
	})
	return dir
}

func (d *Directory) Len() int { return len(d.entries) }

func (d *Directory) Entries() []Entry { return d.entries }

// Match tests the sender domain first and falls back to a name scan of subject and body.
func (d *Directory) Match(fromDomain, subject, body string) (Match, bool) {
	fromDomain = strings.ToLower(strings.TrimSpace(fromDomain))
	if fromDomain != "" {
		for _, ref := range d.domains {
			if prefilter.MatchesDomain(fromDomain, ref.domain) {
				return Match{Company: ref.company, Type: MatchEmailDomain, Confidence: DomainMatchConfidence, Signal: ref.domain}, true
			}
		}
	}

	text := " " + NormalizeName(subject+" "+body) + " "
	for _, ref := range d.variants {
		if strings.Contains(text, " "+ref.variant+" ") {
			return Match{Company: ref.company, Type: MatchCompanyName, Confidence: NameMatchConfidence, Signal: ref.variant}, true
		}
	}
	return Match{}, false
}

// NormalizeName lowercases, drops punctuation and collapses whitespace.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '&':
			// AT&T -> att
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func nameVariants(norm string) []string {
	words := strings.Fields(norm)
	core := trimSuffixes(words)

	var out []string
	add := func(v string) {
		if len([]rune(v)) >= minVariantLength {
			out = appendUnique(out, v)
		}
	}
	add(norm)
	if len(core) > 0 {
		add(strings.Join(core, " "))
		if len(core) > 1 {
			add(strings.Join(core, ""))
		}
	}
	return out
}

func heuristicDomains(norm string) []string {
	core := trimSuffixes(strings.Fields(norm))
	if len(core) == 0 {
		return nil
	}
	var out []string
	out = appendUnique(out, asciiOnly(strings.Join(core, ""))+".com")
	if len(core) > 1 {
		out = appendUnique(out, asciiOnly(strings.Join(core, "-"))+".com")
		out = appendUnique(out, asciiOnly(core[0])+".com")
	}
	clean := out[:0]
	for _, d := range out {
		if len(d) > len(".com")+1 {
			clean = append(clean, d)
		}
	}
	return clean
}

func trimSuffixes(words []string) []string {
	end := len(words)
	for end > 1 {
		if _, ok := legalSuffixes[words[end-1]]; !ok {
			break
		}
		end--
	}
	return words[:end]
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSharedDomain(d string, ats *prefilter.Filter) bool {
	if _, ok := freeMailDomains[d]; ok {
		return true
	}
	return ats != nil && ats.IsATSDomain(d)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
