// Package prefilter decides cheaply whether a message is worth an AI call.
package prefilter

import (
	"regexp"
	"sort"
	"strings"
)

// Rule names the check that admitted a message.
type Rule string

const (
	RuleNone          Rule = ""
	RuleStrictPhrase  Rule = "strict_phrase"
	RuleATSDomain     Rule = "ats_domain"
	RuleCareersDomain Rule = "careers_domain"
	RuleKeyword       Rule = "status_keyword"
)

// Decision is the outcome of Evaluate. Signal holds the phrase or domain that matched.
type Decision struct {
	Relevant bool
	Rule     Rule
	Signal   string
}

// DefaultStrictPhrases only appear in mail about an application already submitted.
var DefaultStrictPhrases = []string{
	"thank you for applying",
	"thanks for applying",
	"thank you for your application",
	"application received",
	"we received your application",
	"we have received your application",
	"your application has been",
	"your application for",
	"application status",
	"application submitted",
	"application under review",
	"interview scheduled",
	"interview invitation",
	"invitation to interview",
	"schedule an interview",
	"schedule your interview",
	"next steps in the hiring process",
	"moving forward with other candidates",
	"decided not to move forward",
	"regret to inform you",
	"job offer",
	"offer letter",
	"your candidacy",
}

// DefaultATSDomains are applicant tracking vendors that send on behalf of employers.
var DefaultATSDomains = []string{
	"greenhouse.io",
	"greenhouse-mail.io",
	"lever.co",
	"myworkday.com",
	"myworkdayjobs.com",
	"workday.com",
	"icims.com",
	"smartrecruiters.com",
	"jobvite.com",
	"taleo.net",
	"successfactors.com",
	"ashbyhq.com",
	"bamboohr.com",
	"workablemail.com",
	"workable.com",
	"breezy.hr",
	"recruitee.com",
	"jazzhr.com",
	"applytojob.com",
	"ultipro.com",
	"paylocity.com",
	"teamtailor.com",
	"pinpointhq.com",
	"eightfold.ai",
	"avature.net",
}

// DefaultCareersPrefixes are host labels employers use for hiring mail.
var DefaultCareersPrefixes = []string{"careers", "jobs", "recruiting", "talent"}

// DefaultKeywords are status words matched on word boundaries.
var DefaultKeywords = []string{
	"interview",
	"interviewing",
	"recruiter",
	"hiring manager",
	"hiring team",
	"candidate",
	"applicant",
	"assessment",
	"coding challenge",
	"take-home",
	"onsite",
	"phone screen",
	"offer",
	"unfortunately",
	"not moving forward",
	"not selected",
	"position",
	"application",
}

// Options extends the default tables.
type Options struct {
	ExtraStrictPhrases []string
	ExtraATSDomains    []string
	ExtraKeywords      []string
}

// Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	phrases    []string
	atsDomains []string
	prefixes   []string
	keywords   *regexp.Regexp
}

func New(opts Options) *Filter {
	f := &Filter{
		phrases:    lowerAll(append(append([]string(nil), DefaultStrictPhrases...), opts.ExtraStrictPhrases...)),
		atsDomains: lowerAll(append(append([]string(nil), DefaultATSDomains...), opts.ExtraATSDomains...)),
		prefixes:   DefaultCareersPrefixes,
	}

	keywords := lowerAll(append(append([]string(nil), DefaultKeywords...), opts.ExtraKeywords...))
	// longest first so alternation prefers "hiring manager" over shorter overlaps
	sort.SliceStable(keywords, func(i, j int) bool { return len(keywords[i]) > len(keywords[j]) })
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	f.keywords = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	return f
}

// Evaluate applies the rules in order and stops at the first match.
func (f *Filter) Evaluate(subject, body, fromDomain string) Decision {
	text := strings.ToLower(subject + "\n" + body)
	fromDomain = strings.ToLower(strings.TrimSpace(fromDomain))

	for _, p := range f.phrases {
		if strings.Contains(text, p) {
			return Decision{Relevant: true, Rule: RuleStrictPhrase, Signal: p}
		}
	}

	if fromDomain != "" {
		if d, ok := f.atsDomain(fromDomain); ok {
			return Decision{Relevant: true, Rule: RuleATSDomain, Signal: d}
		}
		if p, ok := f.careersHost(fromDomain); ok {
			return Decision{Relevant: true, Rule: RuleCareersDomain, Signal: p}
		}
	}

	if m := f.keywords.FindString(text); m != "" {
		return Decision{Relevant: true, Rule: RuleKeyword, Signal: m}
	}
	return Decision{}
}

// IsATSDomain reports whether the domain belongs to an applicant tracking vendor.
func (f *Filter) IsATSDomain(domain string) bool {
	_, ok := f.atsDomain(strings.ToLower(domain))
	return ok
}

func (f *Filter) atsDomain(domain string) (string, bool) {
	for _, d := range f.atsDomains {
		if MatchesDomain(domain, d) {
			return d, true
		}
	}
	return "", false
}

func (f *Filter) careersHost(domain string) (string, bool) {
	labels := strings.Split(domain, ".")
	if len(labels) < 3 {
		return "", false
	}
	for _, p := range f.prefixes {
		if labels[0] == p {
			return p + ".", true
		}
	}
	return "", false
}

// MatchesDomain is true when domain equals base or is a subdomain of it.
func MatchesDomain(domain, base string) bool {
	return domain == base || strings.HasSuffix(domain, "."+base)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
