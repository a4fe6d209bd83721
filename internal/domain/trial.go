// Package domain contains core domain types for the labeling experiment.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sentiment is a participant's label for a meme.
type Sentiment string

const (
	SentimentNone     Sentiment = ""
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
	SentimentUnsure   Sentiment = "unsure"
)

// ParseSentiment validates a sentiment label.
func ParseSentiment(s string) (Sentiment, error) {
	switch v := Sentiment(strings.ToLower(strings.TrimSpace(s))); v {
	case SentimentNegative, SentimentNeutral, SentimentPositive, SentimentUnsure:
		return v, nil
	default:
		return SentimentNone, fmt.Errorf("unknown sentiment %q", s)
	}
}

// Condition is the experimental arm.
type Condition string

const (
	ConditionBaseline Condition = "baseline"
	ConditionWithAI   Condition = "withAI"
)

// ParseCondition maps any case of "with-ai" or "withai" to ConditionWithAI.
// Everything else, including the empty string, is the baseline arm.
func ParseCondition(raw string) Condition {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "with-ai", "withai":
		return ConditionWithAI
	default:
		return ConditionBaseline
	}
}

// WithAI reports whether the AI suggestion is available in this arm.
func (c Condition) WithAI() bool {
	return c == ConditionWithAI
}

// TrialID identifies a trial. Study files use numeric ids, so both JSON
// numbers and strings are accepted.
type TrialID string

// UnmarshalJSON accepts a string or a number.
func (id *TrialID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TrialID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("trial id: %w", err)
	}
	*id = TrialID(n.String())
	return nil
}

// maxNumericIDDigits keeps numeric ids within the range a JavaScript number
// holds exactly.
const maxNumericIDDigits = 15

// MarshalJSON writes integer ids as JSON numbers, the way study files and
// the browser carry them, and anything else as a string. An empty id is null.
func (id TrialID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if id.isInteger() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// isInteger reports whether id is a canonical decimal integer: no sign
// other than a leading minus, no leading zeros, no exponent.
func (id TrialID) isInteger() bool {
	digits := strings.TrimPrefix(string(id), "-")
	if digits == "" || len(digits) > maxNumericIDDigits {
		return false
	}
	if len(digits) > 1 && digits[0] == '0' {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return id != "-0"
}

// Trial is one meme shown to the participant. The AI columns are optional
// and are null when the study file does not provide them.
type Trial struct {
	ID            TrialID  `json:"id"`
	ImgURL        string   `json:"img_url"`
	MemeText      string   `json:"meme_text"`
	GoldSentiment *string  `json:"gold_sentiment"`
	MMTop1        *string  `json:"mm_top1"`
	MMP1          *float64 `json:"mm_p1"`
	MMTop2        *string  `json:"mm_top2"`
	MMP2          *float64 `json:"mm_p2"`
	MMTop3        *string  `json:"mm_top3"`
	MMP3          *float64 `json:"mm_p3"`
	MMPNeg        *float64 `json:"mm_p_neg"`
	MMPNeu        *float64 `json:"mm_p_neu"`
	MMPPos        *float64 `json:"mm_p_pos"`
	TextRationale *string  `json:"text_rationale"`
	NeighborID1   *string  `json:"neighbor_id_1"`
	NeighborID2   *string  `json:"neighbor_id_2"`
}

// Score is one row of the model's probability distribution.
type Score struct {
	Label string  `json:"label"`
	P     float64 `json:"p"`
}

// Percent renders the probability the way the suggestion panel shows it.
func (s Score) Percent() string {
	return strconv.FormatFloat(s.P*100, 'f', 1, 64) + "%"
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func (t *Trial) hasRanked() bool {
	return nonEmpty(t.MMTop1) && t.MMP1 != nil
}

func (t *Trial) hasThreeWay() bool {
	return t.MMPNeg != nil && t.MMPNeu != nil && t.MMPPos != nil
}

func (t *Trial) rankedScores() []Score {
	scores := []Score{{Label: *t.MMTop1, P: *t.MMP1}}
	if nonEmpty(t.MMTop2) {
		scores = append(scores, Score{Label: *t.MMTop2, P: orZero(t.MMP2)})
	}
	if nonEmpty(t.MMTop3) {
		scores = append(scores, Score{Label: *t.MMTop3, P: orZero(t.MMP3)})
	}
	return scores
}

func (t *Trial) threeWayScores() []Score {
	return []Score{
		{Label: string(SentimentNegative), P: *t.MMPNeg},
		{Label: string(SentimentNeutral), P: *t.MMPNeu},
		{Label: string(SentimentPositive), P: *t.MMPPos},
	}
}

// TopK returns the distribution shown to the participant. Ranked top1..3
// columns win; otherwise the three-way probabilities are sorted descending.
// Returns nil when the trial carries no scores.
func (t *Trial) TopK() []Score {
	switch {
	case t.hasRanked():
		return t.rankedScores()
	case t.hasThreeWay():
		scores := t.threeWayScores()
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].P > scores[j].P })
		return scores
	default:
		return nil
	}
}

// TopKLog serializes the distribution for the response log, e.g.
// "positive:0.700|neutral:0.200". Three-way probabilities keep their
// negative/neutral/positive order.
func (t *Trial) TopKLog() string {
	var scores []Score
	switch {
	case t.hasRanked():
		scores = t.rankedScores()
	case t.hasThreeWay():
		scores = t.threeWayScores()
	}
	parts := make([]string, 0, len(scores))
	for _, s := range scores {
		parts = append(parts, s.Label+":"+strconv.FormatFloat(s.P, 'f', 3, 64))
	}
	return strings.Join(parts, "|")
}

// Rationale returns the model's text rationale, or "" when absent.
func (t *Trial) Rationale() string {
	if t.TextRationale == nil {
		return ""
	}
	return *t.TextRationale
}
