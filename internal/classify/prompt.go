package classify

import "strings"

const systemPrompt = "You are a strict OCR extractor and classifier for Bulgarian bank ads.\n" +
	"Extract EXACT visible text (no guessing, no corrections).\n" +
	"Classify into exactly ONE category from the list.\n" +
	"Return ONLY valid JSON: {\"text\": string, \"type\": string}."

func userPrompt(categories []string) string {
	return "Categories:\n- " + strings.Join(categories, "\n- ")
}
