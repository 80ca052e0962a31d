// Package qna recovers question/answer records from free-form generated text.
//
// Parsing is two-phase: the normalised text is first split into marker and
// text segments, then the segments are paired. Malformed input never fails;
// the worst case is an empty Result carrying warnings.
package qna

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrNoPairs is reported by Result.Err when no record was recognised.
var ErrNoPairs = errors.New("qna: no question/answer pairs recognized")

// Record is one question and its answer.
type Record struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// WarningKind classifies a non-fatal parse condition.
type WarningKind string

const (
	WarnNoPairs          WarningKind = "no_pairs"
	WarnUnpairedQuestion WarningKind = "unpaired_question"
	WarnOrphanAnswer     WarningKind = "orphan_answer"
	WarnEmptyField       WarningKind = "empty_field"
)

// Warning describes input the extractor skipped or could not pair.
type Warning struct {
	Kind WarningKind `json:"kind"`
	Text string      `json:"text,omitempty"`
}

// Result is the outcome of one Extract call.
type Result struct {
	Records  []Record  `json:"records"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Err returns ErrNoPairs when the result holds no records.
func (r Result) Err() error {
	if len(r.Records) == 0 {
		return ErrNoPairs
	}
	return nil
}

// HasWarning reports whether a warning of kind k was raised.
func (r Result) HasWarning(k WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}

// Markers are the labels that introduce questions and answers.
type Markers struct {
	Question []string
	Answer   []string
}

// DefaultMarkers recognises German and English labels.
func DefaultMarkers() Markers {
	return Markers{
		Question: []string{"Frage", "Question"},
		Answer:   []string{"Antwort", "Answer"},
	}
}

// Extractor parses generated text. It holds only compiled patterns and is
// safe for concurrent use.
type Extractor struct {
	marker *regexp.Regexp
}

// New compiles an Extractor for markers. An empty label list falls back to
// the corresponding DefaultMarkers list.
func New(m Markers) *Extractor {
	def := DefaultMarkers()
	q, a := alternation(m.Question), alternation(m.Answer)
	if q == "" {
		q = alternation(def.Question)
	}
	if a == "" {
		a = alternation(def.Answer)
	}
	pattern := `(?i)(?:^|\s)(?:(?P<q>` + q + `)|(?P<a>` + a + `))(?:[ \t]*\d+)?[ \t]*:`
	return &Extractor{marker: regexp.MustCompile(pattern)}
}

var defaultExtractor = New(DefaultMarkers())

// Extract parses text with the default markers.
func Extract(text string) Result {
	return defaultExtractor.Extract(text)
}

// Extract returns the records found in text, in source order.
func (e *Extractor) Extract(text string) Result {
	if records, ok := parseJSON(text); ok {
		return finish(records, nil)
	}
	segs := e.tokenize(Normalize(text))
	records, warnings := pair(segs)
	return finish(records, warnings)
}

func finish(records []Record, warnings []Warning) Result {
	var kept []Record
	for _, r := range records {
		r.Question = strings.TrimSpace(r.Question)
		r.Answer = strings.TrimSpace(r.Answer)
		if r.Question == "" || r.Answer == "" {
			warnings = append(warnings, Warning{Kind: WarnEmptyField, Text: truncate(r.Question+r.Answer, 80)})
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		warnings = append(warnings, Warning{Kind: WarnNoPairs})
	}
	return Result{Records: kept, Warnings: warnings}
}

var (
	ruleLineRe  = regexp.MustCompile(`^[-_=]{3,}$`)
	bulletRe    = regexp.MustCompile(`^(?:(?:[-+•·–—>]|#+|\d+[.)])[ \t]+)+`)
	codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

// Normalize removes emphasis asterisks, horizontal rules, list bullets
// (numbered items included), heading hashes and blank lines. Remaining
// lines are trimmed and joined with single newlines.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || ruleLineRe.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

type segmentKind int

const (
	segQuestion segmentKind = iota
	segAnswer
)

// segment is a marker and the text that follows it up to the next marker.
type segment struct {
	kind   segmentKind
	marker string
	text   string
}

func (e *Extractor) tokenize(text string) []segment {
	matches := e.marker.FindAllStringSubmatchIndex(text, -1)
	qGroup := 2 * e.marker.SubexpIndex("q")

	segs := make([]segment, 0, len(matches))
	for i, m := range matches {
		kind := segAnswer
		if m[qGroup] >= 0 {
			kind = segQuestion
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		segs = append(segs, segment{
			kind:   kind,
			marker: strings.TrimSpace(text[m[0]:m[1]]),
			text:   strings.TrimSpace(text[m[1]:end]),
		})
	}
	return segs
}

// pending is a record under construction.
type pending struct {
	question  string
	answer    string
	hasAnswer bool
}

func pair(segs []segment) ([]Record, []Warning) {
	var (
		records  []Record
		warnings []Warning
		cur      *pending
	)
	flush := func() {
		if cur == nil {
			return
		}
		if cur.hasAnswer {
			records = append(records, Record{Question: cur.question, Answer: cur.answer})
		} else {
			warnings = append(warnings, Warning{Kind: WarnUnpairedQuestion, Text: truncate(cur.question, 80)})
		}
		cur = nil
	}

	for _, s := range segs {
		switch s.kind {
		case segQuestion:
			if cur != nil && !cur.hasAnswer && cur.question == "" {
				// Doubled marker such as "Frage 1:" followed by "Frage:".
				cur.question = s.text
				continue
			}
			flush()
			cur = &pending{question: s.text}
		case segAnswer:
			switch {
			case cur == nil:
				warnings = append(warnings, Warning{Kind: WarnOrphanAnswer, Text: truncate(s.text, 80)})
			case !cur.hasAnswer:
				cur.answer = s.text
				cur.hasAnswer = true
			case cur.answer == "":
				cur.answer = s.text
			default:
				cur.answer += "\n" + s.marker + " " + s.text
			}
		}
	}
	flush()
	return records, warnings
}

// parseJSON accepts a JSON array of {"question","answer"} objects, optionally
// wrapped in a code fence.
func parseJSON(text string) ([]Record, bool) {
	s := strings.TrimSpace(text)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var records []Record
	if err := json.Unmarshal([]byte(s), &records); err != nil {
		return nil, false
	}
	return records, true
}

// alternation builds a regexp alternation of quoted labels, longest first so
// a label that prefixes another does not shadow it.
func alternation(labels []string) string {
	quoted := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			quoted = append(quoted, regexp.QuoteMeta(l))
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return strings.Join(quoted, "|")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
