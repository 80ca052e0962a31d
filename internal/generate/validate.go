package generate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/flashgest/internal/qna"
)

const (
	minQuestionLen = 3
	maxQuestionLen = 500
	maxAnswerLen   = 2000
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions|ignoriere\s+(alle|vorherige)|systemprompt)`,
)

var spaceRun = regexp.MustCompile(`[ \t]+`)

// ValidateRecord checks a generated record and tidies its whitespace.
// Returns false for records that are too short, too long, or that carry
// instruction-like text aimed at a downstream model.
func ValidateRecord(r *qna.Record) bool {
	if r == nil {
		return false
	}
	r.Question = strings.TrimSpace(spaceRun.ReplaceAllString(r.Question, " "))
	r.Answer = strings.TrimSpace(spaceRun.ReplaceAllString(r.Answer, " "))

	qLen := utf8.RuneCountInString(r.Question)
	if qLen < minQuestionLen || qLen > maxQuestionLen {
		return false
	}
	aLen := utf8.RuneCountInString(r.Answer)
	if aLen == 0 || aLen > maxAnswerLen {
		return false
	}
	if injectionPattern.MatchString(r.Question) || injectionPattern.MatchString(r.Answer) {
		return false
	}
	return true
}

// FilterRecords keeps the records that pass ValidateRecord, in order, and
// reports how many were dropped.
func FilterRecords(records []qna.Record) ([]qna.Record, int) {
	kept := make([]qna.Record, 0, len(records))
	for i := range records {
		r := records[i]
		if ValidateRecord(&r) {
			kept = append(kept, r)
		}
	}
	return kept, len(records) - len(kept)
}
