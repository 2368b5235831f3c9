package classifier

import (
	"fmt"
	"strings"
)

// LangCategoryPrompt asks the model for a single `lang:category` line.
// The category list comes from the engine's dispatch registry so the prompt
// and the validator can never drift apart.
func LangCategoryPrompt(categories []string, messages []string) string {
	return fmt.Sprintf(`Classify the following user messages into:

1. One of the following **categories**:
"""%s"""

2. One of the following **languages**:
lv, eng, ru, ee

If you are not more than 80%% confident about either the category or the language, use 'other'.

User messages:
"""%s"""

Respond **only** in this format (no extra explanation):
lang:category`,
		strings.Join(categories, "\n"),
		strings.Join(messages, "\n"))
}

// ComplaintPrompt asks for a binary Complaint/Resolved verdict on a
// previously categorized ticket.
func ComplaintPrompt(messages []string) string {
	return fmt.Sprintf(`You are a message classifier.

Classify the following user messages as either:

- "Complaint" → if the user is reporting a problem, expressing frustration, or asking for help.
- "Resolved" → if the user says the issue is fixed, found the answer themselves, or is thanking you.

If unsure about the intent or language, default to "Complaint".

User messages:
"""%s"""

Respond with only one word: Complaint or Resolved.`,
		strings.Join(messages, "\n"))
}
