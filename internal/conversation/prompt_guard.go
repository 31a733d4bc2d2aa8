package conversation

import (
	"regexp"
	"strings"
)

// PromptGuardResult contains the result of a prompt injection scan.
type PromptGuardResult struct {
	// Blocked is true if the message must not be sent to the language model.
	// Triage still runs on blocked messages.
	Blocked bool
	// Score is a rough heuristic risk score (0.0 = safe, 1.0 = definitely injection).
	Score float64
	// Reasons lists the detection signals that fired.
	Reasons []string
	// Sanitized is the cleaned message (if not blocked).
	Sanitized string
}

type promptGuardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

// blockThreshold: messages scoring at or above this never reach the model.
const blockThreshold = 0.7

// warnThreshold: messages scoring above this are sanitized before sending.
const warnThreshold = 0.3

var directInjectionPatterns = []promptGuardPattern{
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?|directives?|programming)`), "direct_injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "direct_injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+role\s*:|new\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "direct_injection:new_role", 0.9},
	{regexp.MustCompile(`(?i)override\s+(your\s+)?(system|instructions?|rules?|safety|guidelines?)`), "direct_injection:override", 0.8},
	{regexp.MustCompile(`(?i)(pretend|imagine|suppose|assume)\s+(that\s+)?(you\s+)?(are|have|were|don'?t\s+have)\s+(no\s+)?(rules?|restrictions?|limits?|boundaries|guidelines?|filters?|safety)`), "direct_injection:pretend_no_rules", 0.9},
	{regexp.MustCompile(`(?i)bypass\s+(your\s+)?(safety|filters?|restrictions?|guidelines?|rules?|content\s+policy)`), "direct_injection:bypass", 0.8},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|unrestricted\s*mode|god\s*mode`), "direct_injection:jailbreak_keyword", 0.9},
}

var exfiltrationPatterns = []promptGuardPattern{
	{regexp.MustCompile(`(?i)(reveal|show|display|print|output|repeat|tell\s+me|what\s+(is|are))\s+(your\s+)?(system\s+prompt|instructions?|initial\s+prompt|hidden\s+prompt|system\s+message|original\s+prompt)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(what|list|show|give|tell)\s+(me\s+)?(about\s+)?(all\s+)?(the\s+)?other\s+(students?|users?|sessions?)('?s)?\s*(data|info|names?|messages?|conversations?|records?)?`), "exfiltration:other_users", 0.7},
	{regexp.MustCompile(`(?i)\b(api|secret|aws|gemini|sendgrid|redis)\s*(key|token|secret|password|credential)s?\b`), "exfiltration:credentials_keyword", 0.8},
	{regexp.MustCompile(`(?i)repeat\s+(everything|all|the\s+text)\s+(above|before|from\s+the\s+start|from\s+the\s+beginning)`), "exfiltration:repeat_above", 0.7},
}

var obfuscationPatterns = []promptGuardPattern{
	{regexp.MustCompile(`(?i)base64\s*(encode|decode|:)|\\x[0-9a-fA-F]{2}`), "obfuscation:encoding", 0.5},
	{regexp.MustCompile(`!\[.*\]\(https?://`), "obfuscation:markdown_image", 0.4},
	{regexp.MustCompile(`(?i)<\s*(script|img|iframe|object|embed|link|style|svg|form)\b`), "obfuscation:html_injection", 0.6},
}

var contextManipulationPatterns = []promptGuardPattern{
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "context_manipulation:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`), "context_manipulation:role_markers", 0.7},
	{regexp.MustCompile(`(?i)the\s+real\s+(instructions?|task|prompt|conversation)\s+(is|starts?|begins?)`), "context_manipulation:real_instructions", 0.8},
}

var allPromptGuardPatterns = concatGuardPatterns(
	directInjectionPatterns,
	exfiltrationPatterns,
	obfuscationPatterns,
	contextManipulationPatterns,
)

var (
	specialTokenRe  = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkerRe    = regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`)
	htmlInjectionRe = regexp.MustCompile(`(?i)<\s*(script|img|iframe|object|embed|link|style|svg|form)\b[^>]*>`)
	markdownImageRe = regexp.MustCompile(`!\[.*?\]\(https?://[^)]+\)`)
)

func concatGuardPatterns(groups ...[]promptGuardPattern) []promptGuardPattern {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]promptGuardPattern, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// ScanForPromptInjection analyzes inbound user text for prompt injection
// attempts before it is forwarded to a language model.
func ScanForPromptInjection(message string) PromptGuardResult {
	if strings.TrimSpace(message) == "" {
		return PromptGuardResult{Sanitized: message}
	}

	var reasons []string
	maxWeight := 0.0
	for _, p := range allPromptGuardPatterns {
		if p.re.MatchString(message) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}

	// Multiple signals compound: +0.1 per additional signal, capped at 1.0.
	score := maxWeight
	if len(reasons) > 1 {
		score = maxWeight + float64(len(reasons)-1)*0.1
		if score > 1.0 {
			score = 1.0
		}
	}

	result := PromptGuardResult{
		Score:     score,
		Reasons:   reasons,
		Sanitized: message,
	}
	switch {
	case score >= blockThreshold:
		result.Blocked = true
		result.Sanitized = ""
	case score > warnThreshold:
		result.Sanitized = SanitizeForLLM(message)
	}
	return result
}

// SanitizeForLLM strips known injection markers while keeping the rest of the
// message intact.
func SanitizeForLLM(message string) string {
	cleaned := specialTokenRe.ReplaceAllString(message, "")
	cleaned = roleMarkerRe.ReplaceAllString(cleaned, "")
	cleaned = htmlInjectionRe.ReplaceAllString(cleaned, "")
	cleaned = markdownImageRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
