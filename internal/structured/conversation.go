package structured

import "repolearn/internal/llm"

const (
	firstRepairInstruction = "Your previous output was invalid. Fix it and output JSON only. Error: "
	laterRepairInstruction = "Fix the JSON only. Error: "
)

// baseTurns resolves the caller's request into its opening turns.
func baseTurns(req Request) []llm.Message {
	return llm.Request{System: req.System, Prompt: req.Prompt, Messages: req.Messages}.Conversation()
}

// withRepair returns a new conversation extending history (or base when no
// repair has happened yet) with the rejected output and a corrective turn.
// Neither input slice is modified.
func withRepair(base, history []llm.Message, rawOutput, problem string) []llm.Message {
	prior := history
	instruction := laterRepairInstruction
	if len(history) == 0 {
		prior = base
		instruction = firstRepairInstruction
	}
	out := make([]llm.Message, 0, len(prior)+2)
	out = append(out, prior...)
	out = append(out,
		llm.Message{Role: llm.RoleAssistant, Content: rawOutput},
		llm.Message{Role: llm.RoleUser, Content: instruction + problem},
	)
	return out
}
