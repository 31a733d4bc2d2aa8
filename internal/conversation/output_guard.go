package conversation

import (
	"regexp"
	"strings"
)

// OutputGuardResult contains the result of scanning a generated reply.
type OutputGuardResult struct {
	// Leaked is true if the reply contains content that should not be sent.
	Leaked bool
	// Reasons lists the detection signals that fired.
	Reasons []string
	// Sanitized is the cleaned reply, or empty when it cannot be used.
	Sanitized string
}

type outputLeakPattern struct {
	re     *regexp.Regexp
	reason string
	block  bool // block entirely; otherwise try to sanitize
}

var outputLeakPatterns = []outputLeakPattern{
	// System prompt / instruction leaks
	{regexp.MustCompile(`(?i)my (system\s+)?prompt\s+(is|says|tells|instructs)`), "leak:system_prompt_disclosure", true},
	{regexp.MustCompile(`(?i)my instructions?\s+(are|say|tell|include|require)`), "leak:instructions_disclosure", true},
	{regexp.MustCompile(`(?i)(here are|these are|the following are)\s+(my )?(system )?(instructions|rules|guidelines|prompts)`), "leak:rules_listing", true},

	// Model identity
	{regexp.MustCompile(`(?i)i('m| am) (a|an) (AI|artificial intelligence|language model|LLM|GPT|Gemini|Claude)\b`), "leak:ai_identity", false},
	{regexp.MustCompile(`(?i)(powered by|built on|running on)\s+(Claude|GPT|OpenAI|Gemini|Google|Bedrock|AWS)`), "leak:tech_stack", true},

	// Credentials / infrastructure
	{regexp.MustCompile(`(?i)(api[_\s]?key|secret[_\s]?key|access[_\s]?token|bearer\s+token)\s*[:=]\s*\S+`), "leak:credential", true},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "leak:aws_key", true},
	{regexp.MustCompile(`(?i)(redis|postgres)://\S+`), "leak:database_url", true},

	// Replies that work against the safety contract
	{regexp.MustCompile(`(?i)(you (don'?t|do not) need (to call|to contact|to talk to|a) (988|a crisis line|a hotline|a therapist|a counselor|professional help|emergency services))`), "safety:discourages_help", true},
	{regexp.MustCompile(`(?i)you (have|are suffering from|clearly have) (clinical depression|major depress\w*|bipolar|an? (anxiety|personality|eating) disorder|ptsd|ocd|adhd)`), "safety:diagnosis", true},
	{regexp.MustCompile(`(?i)(it'?s|that'?s) (nothing to worry about|not a big deal|just a phase)`), "safety:minimization", true},
	{regexp.MustCompile(`(?i)\b(lethal dose|how many pills)\b`), "safety:means_detail", true},

	// Other users' conversations
	{regexp.MustCompile(`(?i)another (student|user)'?s?\s+(name|message|conversation|session)`), "leak:other_user_ref", true},
}

var aiIdentitySentenceRe = regexp.MustCompile(`(?i)[^.!?]*\bi('m| am) (a|an) (AI|artificial intelligence|language model|LLM|GPT|Gemini|Claude)\b[^.!?]*[.!?]?\s*`)

// ScanOutputForLeaks checks a generated reply for leaks and unsafe guidance.
func ScanOutputForLeaks(reply string) OutputGuardResult {
	if strings.TrimSpace(reply) == "" {
		return OutputGuardResult{Sanitized: reply}
	}

	var reasons []string
	shouldBlock := false
	for _, p := range outputLeakPatterns {
		if p.re.MatchString(reply) {
			reasons = append(reasons, p.reason)
			if p.block {
				shouldBlock = true
			}
		}
	}

	if len(reasons) == 0 {
		return OutputGuardResult{Sanitized: reply}
	}

	result := OutputGuardResult{Leaked: true, Reasons: reasons}
	if !shouldBlock {
		result.Sanitized = strings.TrimSpace(aiIdentitySentenceRe.ReplaceAllString(reply, ""))
	}
	return result
}
