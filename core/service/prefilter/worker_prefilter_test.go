package prefilter

import "testing"

func TestEvaluateRuleOrder(t *testing.T) {
	f := New(Options{})

	tests := []struct {
		name     string
		subject  string
		body     string
		domain   string
		wantRule Rule
		signal   string
	}{
		{
			name:     "strict phrase wins over ats domain",
			subject:  "Application Received - Backend Engineer",
			domain:   "acme.greenhouse.io",
			wantRule: RuleStrictPhrase,
			signal:   "application received",
		},
		{
			name:     "ats subdomain",
			subject:  "Update from Acme",
			body:     "Hello there",
			domain:   "hire.lever.co",
			wantRule: RuleATSDomain,
			signal:   "lever.co",
		},
		{
			name:     "careers host",
			subject:  "A note from our team",
			domain:   "careers.wellsfargo.com",
			wantRule: RuleCareersDomain,
			signal:   "careers.",
		},
		{
			name:     "status keyword on word boundary",
			subject:  "Quick question",
			body:     "Could you share your availability for an interview next week?",
			domain:   "acme.com",
			wantRule: RuleKeyword,
			signal:   "interview",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Evaluate(tt.subject, tt.body, tt.domain)
			if !d.Relevant {
				t.Fatalf("expected relevant, got %+v", d)
			}
			if d.Rule != tt.wantRule || d.Signal != tt.signal {
				t.Errorf("got rule=%s signal=%q, want rule=%s signal=%q", d.Rule, d.Signal, tt.wantRule, tt.signal)
			}
		})
	}
}

func TestEvaluateRejectsIrrelevantMail(t *testing.T) {
	f := New(Options{})

	cases := []struct{ subject, body, domain string }{
		{"Your order has shipped", "Track your package", "amazon.com"},
		{"Weekly digest", "Top stories this week", "news.example.com"},
		{"Offers", "officers of the club met today", "club.org"},
		{"Lunch?", "See you at noon", "greenhouse-fan.com"},
	}
	for _, c := range cases {
		if d := f.Evaluate(c.subject, c.body, c.domain); d.Relevant {
			t.Errorf("Evaluate(%q) should be irrelevant, got %+v", c.subject, d)
		}
	}
}

func TestOptionsExtendTables(t *testing.T) {
	f := New(Options{ExtraATSDomains: []string{"Hirebridge.com"}, ExtraStrictPhrases: []string{"Talent Pool Confirmation"}})

	if d := f.Evaluate("hi", "", "mail.hirebridge.com"); d.Rule != RuleATSDomain {
		t.Errorf("extra ats domain not honoured: %+v", d)
	}
	if d := f.Evaluate("Talent pool confirmation", "", ""); d.Rule != RuleStrictPhrase {
		t.Errorf("extra phrase not honoured: %+v", d)
	}
}

func TestMatchesDomain(t *testing.T) {
	if !MatchesDomain("acme.greenhouse.io", "greenhouse.io") {
		t.Error("subdomain should match")
	}
	if !MatchesDomain("greenhouse.io", "greenhouse.io") {
		t.Error("exact domain should match")
	}
	if MatchesDomain("notgreenhouse.io", "greenhouse.io") {
		t.Error("suffix without dot must not match")
	}
}
