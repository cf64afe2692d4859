// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docs

import (
	"bytes"
	"fmt"
	"text/template"
)

// notApplicable is the sentinel a summary carries when the chunk is
// irrelevant to the question.
const notApplicable = "Not applicable"

// insufficientAnswer is returned without calling the answer model when no
// evidence was accepted.
const insufficientAnswer = "I cannot answer this question due to insufficient information."

// exampleCitation appears in the answer prompt and is stripped from answers
// that copy it.
const exampleCitation = "(Foo2012)"

var summaryPromptTmpl = template.Must(template.New("summary").Parse(`Summarize and provide direct quotes from the text below to help answer a question. Do not directly answer the question; provide a summary and quotes in the context of the question. Do not use outside sources. Reply with "` + notApplicable + `" if the text is unrelated to the question. Use 75 or fewer words.

{{.Text}}

Extracted from {{.Citation}}
Question: {{.Question}}
Relevant Information Summary:`))

var answerPromptTmpl = template.Must(template.New("answer").Parse(`Write an answer ({{.Length}}) for the question below based solely on the provided context. If the context provides insufficient information, reply "I cannot answer". For each sentence in your answer, indicate which sources most support it with citation keys from the context at the end of the sentence, like ` + exampleCitation + `. Use only the valid keys. Answer in an unbiased, comprehensive, and scholarly tone.

{{.Context}}

Question: {{.Question}}
Answer: `))

var citationPromptTmpl = template.Must(template.New("citation").Parse(`Return a possible citation for the following text. Do not include URLs. The citation should be in MLA format. Do not summarize any of the text in the citation. If a citation cannot be determined from the text, reply "Unknown".

{{.Text}}

Citation:`))

var searchPromptTmpl = template.Must(template.New("search").Parse(`We want to answer the following question: {{.Question}}
Provide {{.N}} different targeted keyword searches, one search per line, that will find papers that help answer the question. Do not use boolean operators. Do not number the lines.
`))

type summaryInput struct {
	Question, Text, Citation string
}

type answerInput struct {
	Question, Context, Length string
}

type citationInput struct {
	Text string
}

type searchInput struct {
	Question string
	N        int
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
