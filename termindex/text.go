package termindex

import "strings"

// Stop words dropped from queries and index terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "were": true, "who": true, "what": true, "when": true,
	"where": true, "which": true, "how": true, "did": true, "his": true, "her": true,
}

const punctuation = ".,!?;:'\"-()[]{}“”‘’"

// words splits text on whitespace, lowercases, and trims punctuation.
// Stop words are kept.
func words(text string) []string {
	fields := strings.Fields(text)
	cleaned := make([]string, 0, len(fields))
	for _, field := range fields {
		if word := normalizeTerm(field); word != "" {
			cleaned = append(cleaned, word)
		}
	}
	return cleaned
}

// Tokenize splits text into words, lowercases, trims punctuation, and removes stop words.
func Tokenize(text string) []string {
	all := words(text)
	filtered := make([]string, 0, len(all))
	for _, word := range all {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// ContainsAllWords reports whether every filtered query word appears in document.
func ContainsAllWords(document, query string) bool {
	queryWords := Tokenize(query)
	if len(queryWords) == 0 {
		return false
	}

	docWords := Tokenize(document)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}

	return true
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(term), punctuation))
}

// ngrams returns the space-joined runs of n consecutive words.
func ngrams(all []string, n int) []string {
	if n < 2 || len(all) < n {
		return nil
	}
	grams := make([]string, 0, len(all)-n+1)
	for i := 0; i+n <= len(all); i++ {
		if stopWords[all[i]] || stopWords[all[i+n-1]] {
			continue
		}
		grams = append(grams, strings.Join(all[i:i+n], " "))
	}
	return grams
}
