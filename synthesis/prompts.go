package synthesis

import (
	"fmt"
	"strings"

	"github.com/poiesic/archivist/core"
)

const narrativePromptTemplate = `You are a historian writing from primary sources. Answer the question below
using ONLY the numbered passages that follow. Write continuous narrative prose, not a list.

Rules:
- Every factual statement must be supported by at least one passage. Cite passages inline as [n].
- Where passages disagree, say so and cite both.
- Preserve names as written in the sources; note when an entity appears under more than one name.
- If the passages do not answer the question, say what they do cover instead. Do not invent facts.
%s
Question: %s

Passages:
%s`

const mergePromptTemplate = `You are a historian combining %d partial accounts into one. Each partial account
was written from a different slice of the same source material, in order.

Rules:
- Produce a single coherent narrative answering the question.
- Keep every fact and citation from the partial accounts; remove only repetition.
- Keep chronological order where the accounts establish one.
- Do not add facts that are not in the partial accounts.

Question: %s

%s`

const contextNoteTemplate = `
Context: these passages are part %d of %d of the retrieved material. Cover only what these
passages say; all parts will be merged into one account afterwards, so do not write an
introduction or a conclusion for the whole.
`

// DefaultPromptBuilder formats a question and its passages into a narrative prompt.
func DefaultPromptBuilder(question string, batch []*core.ScoredPassage, contextNote string) string {
	return fmt.Sprintf(narrativePromptTemplate, contextNote, question, FormatPassages(batch))
}

// DefaultMergePromptBuilder asks for one narrative combining partials.
func DefaultMergePromptBuilder(question string, partials []string) string {
	var b strings.Builder
	for i, partial := range partials {
		fmt.Fprintf(&b, "Partial account %d:\n%s\n\n", i+1, strings.TrimSpace(partial))
	}
	return fmt.Sprintf(mergePromptTemplate, len(partials), question, strings.TrimSpace(b.String()))
}

// ContextNote describes slice index (1-based) of total.
func ContextNote(index, total int) string {
	return fmt.Sprintf(contextNoteTemplate, index, total)
}

// FormatPassages renders passages as numbered blocks naming their source.
func FormatPassages(passages []*core.ScoredPassage) string {
	var b strings.Builder
	for i, scored := range passages {
		if scored == nil || scored.Passage == nil {
			continue
		}
		p := scored.Passage
		fmt.Fprintf(&b, "[%d] (%s, passage %d)\n%s\n\n", i+1, p.SourceDocument, p.Position, strings.TrimSpace(p.Text))
	}
	return strings.TrimSpace(b.String())
}
