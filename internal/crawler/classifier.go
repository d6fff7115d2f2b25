package crawler

import (
	"bytes"
	"net/http"
)

// DefaultBlockPhrases are body fragments that mark a consent or verification
// wall. Matching is case-insensitive. Sites vary, so deployments usually
// extend this list through configuration.
var DefaultBlockPhrases = []string{
	"captcha",
	"verify you are human",
	"verifying you are human",
	"are you a robot",
	"checking your browser",
	"unusual traffic",
	"access denied",
	"enable javascript and cookies to continue",
	"before you continue",
}

// Classifier derives a Classification from a FetchResult. The same result
// always yields the same classification.
type Classifier struct {
	phrases [][]byte
}

// NewClassifier builds a classifier scanning for the given block phrases.
// An empty list falls back to DefaultBlockPhrases.
func NewClassifier(phrases []string) *Classifier {
	if len(phrases) == 0 {
		phrases = DefaultBlockPhrases
	}
	lowered := make([][]byte, 0, len(phrases))
	for _, p := range phrases {
		if p == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(p)))
	}
	return &Classifier{phrases: lowered}
}

// Classify applies the rules in order: transport errors first, then the
// hard-block status codes, then other HTTP failures, then a body scan for
// soft-block phrases.
func (c *Classifier) Classify(res FetchResult) Classification {
	if res.Err != nil {
		return ClassTransportError
	}
	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return ClassHardBlock
	}
	if res.StatusCode >= 400 {
		return ClassTransportError
	}
	if c.matchesBlockPhrase(res.Body) {
		return ClassSoftBlock
	}
	return ClassOK
}

func (c *Classifier) matchesBlockPhrase(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	lowered := bytes.ToLower(body)
	for _, phrase := range c.phrases {
		if bytes.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
