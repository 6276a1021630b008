package llm

import "fmt"

// systemPrompt keeps generations on-format: one function, C only,
// fenced code block, no commentary.
const systemPrompt = `You are a C programming assistant that produces training data for a vulnerability detection model.
Always answer with exactly one complete C function inside a single fenced code block (` + "```c ... ```" + `).
Do not add explanations before or after the code block. Do not write C++.`

// vulnerablePrompt asks for one function exhibiting the given CWE.
func vulnerablePrompt(cwe string) string {
	return fmt.Sprintf(`Write one realistic C function (15-60 lines) that contains a vulnerability of type %s.
The function should look like production code taken from a real project: meaningful identifiers, plausible logic, no comments pointing at the flaw.
The vulnerability must be actually present in the code, not merely hinted at.`, cwe)
}

// benignPrompt asks for one non-vulnerable utility function.
const benignPrompt = `Write one realistic C utility function (15-60 lines) as found in production code: string handling, parsing, buffer management, list manipulation or similar.
The function must be free of vulnerabilities: all bounds checked, all allocations verified, no undefined behavior.`
