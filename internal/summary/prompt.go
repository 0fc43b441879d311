package summary

import "fmt"

const systemInstruction = "You are an assistant that writes terse summaries of CRM activity notes. " +
	"Always respond with JSON only, no prose and no code fences."

const promptTemplate = `Summarize each of the following CRM entries in 20-30 words.
Respond with a JSON array of objects, one per entry, each shaped as
{"guid": "<guid>", "summary": "<summary>"}. Return the array and nothing else.

Entries:
%s`

// buildPrompt embeds the batch payload JSON in the user message.
func buildPrompt(payload string) string {
	return fmt.Sprintf(promptTemplate, payload)
}
