// Package extraction turns a finished voice transcript into a structured quote draft.
package extraction

import (
	"strings"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/service/llm"
)

// SystemInstruction is sent verbatim as the system message. The model has been tuned
// against this exact text, trailing spaces included, so it must not be reformatted.
const SystemInstruction = "You are an AI assistant specialized in extracting structured quote information from voice input for Australian tradies. \n" +
	"\n" +
	"Extract the following information from the voice input and respond with clean JSON only:\n" +
	"\n" +
	"{\n" +
	"  \"clientName\": \"extracted client name or null\",\n" +
	"  \"clientEmail\": \"extracted email or null\", \n" +
	"  \"clientPhone\": \"extracted phone or null\",\n" +
	"  \"jobTitle\": \"brief descriptive title for the job\",\n" +
	"  \"jobDescription\": \"detailed description of work required\",\n" +
	"  \"location\": \"job location/address\",\n" +
	"  \"tradeType\": \"CONCRETE|TILING|PAINTING|LANDSCAPING|PLUMBING|ELECTRICAL|CARPENTRY|GENERAL\",\n" +
	"  \"measurements\": {\n" +
	"    \"length\": \"number or null\",\n" +
	"    \"width\": \"number or null\", \n" +
	"    \"area\": \"number or null\",\n" +
	"    \"unit\": \"meters|feet|sqm|sqft or null\"\n" +
	"  },\n" +
	"  \"materials\": [\"list of materials mentioned\"],\n" +
	"  \"specialRequirements\": [\"any special requirements or notes\"],\n" +
	"  \"urgency\": \"URGENT|STANDARD|FLEXIBLE\",\n" +
	"  \"estimatedHours\": \"estimated work hours if mentioned or null\",\n" +
	"  \"additionalNotes\": \"any other relevant information\"\n" +
	"}\n" +
	"\n" +
	"Respond with raw JSON only. Do not include code blocks, markdown, or any other formatting."

const userInstructionPrefix = "Please extract quote information from this voice input: "

// NewRequest validates a transcript and pairs it with a trade hint.
// The transcript is kept byte-for-byte; trimming is only used for the emptiness check.
// An empty or unknown hint becomes GENERAL.
func NewRequest(transcript string, hint models.TradeType) (models.ExtractionRequest, error) {
	if strings.TrimSpace(transcript) == "" {
		return models.ExtractionRequest{}, &ValidationError{Field: "voiceText", Reason: "Voice text is required"}
	}
	t, ok := models.ParseTradeType(string(hint))
	if !ok {
		t = models.TradeGeneral
	}
	return models.ExtractionRequest{Transcript: transcript, TradeHint: t}, nil
}

// BuildPrompt renders the two-message instruction for req.
func BuildPrompt(req models.ExtractionRequest) llm.Prompt {
	return llm.Prompt{
		System: SystemInstruction,
		User:   userInstructionPrefix + `"` + req.Transcript + `"`,
	}
}
