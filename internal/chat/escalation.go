package chat

import "strings"

type Reason string

const (
	ReasonNone        Reason = ""
	ReasonKeyword     Reason = "keyword-match"
	ReasonCategory    Reason = "category"
	ReasonExternal    Reason = "external-classifier"
	ReasonComposition Reason = "composer-fallback"
)

type EscalationDecision struct {
	Escalate bool
	Reason   Reason
	Keyword  string
}

// EscalationPolicy holds the escalation keyword set. Decide has no other state.
type EscalationPolicy struct {
	keywords []string
}

func NewEscalationPolicy(keywords []string) EscalationPolicy {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return EscalationPolicy{keywords: kw}
}

// Decide escalates on an escalation keyword anywhere in the text, on a
// complaint or contact intent, or when the composer fell back. The first
// matching rule in that order names the reason.
func (p EscalationPolicy) Decide(text string, cl Classification, comp Composition) EscalationDecision {
	lower := strings.ToLower(text)
	for _, k := range p.keywords {
		if strings.Contains(lower, k) {
			return EscalationDecision{Escalate: true, Reason: ReasonKeyword, Keyword: k}
		}
	}

	if cl.Intent == IntentComplaint || cl.Intent == IntentContact {
		reason := ReasonCategory
		if cl.Source == SourceExternal {
			reason = ReasonExternal
		}
		return EscalationDecision{Escalate: true, Reason: reason}
	}

	if comp.Fallback {
		return EscalationDecision{Escalate: true, Reason: ReasonComposition}
	}

	return EscalationDecision{}
}
