package pipeline

import (
	"fmt"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

const companyInstructions = "You are a financial document extraction expert.\n" +
	"Extract only the ISSUED cheques recorded in the company ledger below. Ignore every other entry.\n\n" +
	"Output STRICT JSON only, shaped exactly as:\n" +
	"{\"cheques\": [{\"cheque_number\": string, \"payee_name\": string or null, \"amount\": number, \"issue_date\": string or null}]}\n\n"

const bankInstructions = "You are a banking document expert.\n" +
	"Extract only the CLEARED (cashed) cheques from the bank statement below. Ignore unrelated transactions.\n\n" +
	"Output STRICT JSON only, shaped exactly as:\n" +
	"{\"cashed_cheques\": [{\"cheque_number\": string, \"clearing_date\": string, \"amount\": number}]}\n\n"

const structuringRules = "Rules:\n" +
	"- Copy cheque numbers exactly as printed, including leading zeros and letters.\n" +
	"- Amounts are plain numbers without currency symbols or thousands separators.\n" +
	"- Copy dates as printed; do not reformat them.\n" +
	"- If a field cannot be read, use null. If there are no cheques, return an empty list.\n" +
	"- Do NOT wrap the response in code fences or add any text before or after the JSON.\n\n"

const extractionPrompt = "Transcribe all text of the attached PDF, page by page, in reading order.\n" +
	"Start every page with a line \"--- Page N ---\".\n" +
	"If a page has no readable text, write " + NoTextFound + " as its only line.\n" +
	"Output the plain text only, without commentary or Markdown.\n"

// NoTextFound marks a page that yielded no text.
const NoTextFound = "[NO TEXT FOUND]"

// buildStructuringPrompt assembles the full prompt for one document kind.
func buildStructuringPrompt(rawText string, kind domain.DocumentKind) (string, error) {
	var instructions string
	switch kind {
	case domain.DocumentKindCompany:
		instructions = companyInstructions
	case domain.DocumentKindBank:
		instructions = bankInstructions
	default:
		return "", fmt.Errorf("buildStructuringPrompt: unknown document kind %q", kind)
	}
	return instructions + structuringRules + "Document:\n" + rawText, nil
}
