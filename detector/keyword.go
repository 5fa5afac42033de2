package detector

import (
	"context"
	"strings"

	"github.com/nvr-ai/go-nutrition/common"
)

// KeywordConfidence is the confidence of every keyword match.
const KeywordConfidence = 0.8

// keywordCategory maps one food name to its trigger words.
type keywordCategory struct {
	name     string
	keywords []string
}

// keywordTable covers English and Sinhala/Tamil romanizations of common
// Sri Lankan dishes. Order is the emission order.
var keywordTable = []keywordCategory{
	{name: "rice", keywords: []string{"rice", "basmati", "samba"}},
	{name: "curry", keywords: []string{"curry", "kari", "spicy"}},
	{name: "kottu", keywords: []string{"kottu", "roti"}},
	{name: "dal", keywords: []string{"dal", "dhal", "parippu", "lentil"}},
	{name: "chicken", keywords: []string{"chicken", "kukul"}},
	{name: "fish", keywords: []string{"fish", "malu"}},
	{name: "hoppers", keywords: []string{"hopper", "appa"}},
	{name: "string_hoppers", keywords: []string{"string hopper", "idiyappa"}},
	{name: "sambol", keywords: []string{"sambol", "sambal"}},
	{name: "vegetables", keywords: []string{"vegetable", "salad"}},
}

// Keyword detects foods named in the free-text description.
type Keyword struct{}

// NewKeyword creates the text keyword detector.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Name implements Detector.
func (k *Keyword) Name() common.Method { return common.MethodTextKeyword }

// Weight implements Detector.
func (k *Keyword) Weight() float64 { return WeightKeyword }

// Detect matches the lower-cased text against the keyword table. Each category
// fires at most once.
func (k *Keyword) Detect(ctx context.Context, in Input) ([]common.Candidate, error) {
	text := strings.ToLower(strings.TrimSpace(in.Text))
	if text == "" {
		return nil, ErrSkipped
	}

	var out []common.Candidate
	for _, cat := range keywordTable {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				out = append(out, common.Candidate{
					Name:       cat.name,
					Confidence: KeywordConfidence,
					Method:     common.MethodTextKeyword,
				})
				break
			}
		}
	}
	return out, nil
}
