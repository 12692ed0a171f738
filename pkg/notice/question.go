package notice

import (
	"regexp"
	"strings"
)

const questionPrefix = "Kitchen sent a yes/no question: "

var legacyQuestion = regexp.MustCompile(`(?i)sent a yes/no question:?\s*(.+)$`)

// CurrentQuestion returns a copy of the notice's kitchen question. Notices
// written before questions were stored explicitly only carry the question
// text in a kitchen history entry; that text is recovered here. Recovered
// questions never carry a response.
func CurrentQuestion(n OrderNotice) *KitchenQuestion {
	if n.KitchenQuestion != nil {
		q := *n.KitchenQuestion
		return &q
	}

	for i := len(n.History) - 1; i >= 0; i-- {
		entry := n.History[i]
		if entry.Actor != ActorKitchen {
			continue
		}
		m := legacyQuestion.FindStringSubmatch(entry.Message)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		return &KitchenQuestion{Text: text, AskedAt: entry.At}
	}

	return nil
}
