package extractor

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"personasim/internal/errors"
	"personasim/internal/types"
)

var (
	questionLabel = regexp.MustCompile(`(?i)^(?:q|question|interviewer)\s*\d*\s*:\s*`)
	answerLabel   = regexp.MustCompile(`(?i)^(?:a|answer|interviewee|respondent)\s*\d*\s*:\s*`)
)

// ParseTranscript reads a real interview as either a JSON array of
// {question, answer} or Q:/A: labelled text. Lines without a label continue
// the field above them.
func ParseTranscript(data []byte) (types.ResponseSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewInputError(errors.ErrCodeInvalidFormat, "transcript is empty", nil)
	}

	if trimmed[0] == '[' {
		var rs types.ResponseSet
		if err := json.Unmarshal(trimmed, &rs); err != nil {
			return nil, errors.NewInputError(errors.ErrCodeInvalidFormat,
				"transcript is not a JSON array of {question, answer}", err)
		}
		return rs, nil
	}

	var (
		rs  types.ResponseSet
		cur *types.Response
		// 'q' or 'a': the field continuation lines extend
		field byte
	)
	flush := func() {
		if cur != nil {
			cur.Question = strings.TrimSpace(cur.Question)
			cur.Answer = strings.TrimSpace(cur.Answer)
			rs = append(rs, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(string(trimmed), "\r\n", "\n"), "\n") {
		text := strings.TrimSpace(line)
		switch {
		case questionLabel.MatchString(text):
			flush()
			cur = &types.Response{Question: questionLabel.ReplaceAllString(text, "")}
			field = 'q'
		case answerLabel.MatchString(text) && cur != nil:
			cur.Answer = answerLabel.ReplaceAllString(text, "")
			field = 'a'
		case cur != nil && text != "":
			if field == 'q' {
				cur.Question += " " + text
			} else {
				cur.Answer += "\n" + text
			}
		}
	}
	flush()

	if len(rs) == 0 {
		return nil, errors.NewInputError(errors.ErrCodeInvalidFormat,
			`no "Q:" lines found in transcript`, nil)
	}
	return rs, nil
}
