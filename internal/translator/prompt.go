package translator

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the instruction sent to chat-style backends.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate from %s to %s. Output ONLY the translation, nothing else.\n\n",
		req.SourceLang, req.TargetLang)

	if req.HasContext() {
		fmt.Fprintf(&b, "Context: %q = %q\n", req.PreviousSource, req.PreviousTranslation)
		fmt.Fprintf(&b, "Full text: %q", req.CurrentSource)
	} else {
		fmt.Fprintf(&b, "Text: %q", req.CurrentSource)
	}
	return b.String()
}
