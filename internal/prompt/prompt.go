// Package prompt combines the assistant's system instruction with retrieved
// knowledge into the instruction handed to a model.
package prompt

// ContextHeader separates the base instruction from retrieved knowledge.
const ContextHeader = "=== RETRIEVED CONTEXT ==="

// NoContext replaces the context block when retrieval found nothing.
const NoContext = "(No relevant context found in Knowledge Base)"

// SystemInstruction is the default base instruction for the NUZP assistant.
const SystemInstruction = `
You are the Official AI Assistant for National University "Zaporizhzhia Polytechnic" (NUZP).
Your goal is to help students, applicants, and staff find accurate information about the university.

ARCHITECTURE:
You are part of a RAG (Retrieval-Augmented Generation) system.
The system has ALREADY retrieved relevant chunks of text based on the user's query and provided them below under "RETRIEVED CONTEXT".

BEHAVIOR GUIDELINES:
1. **Source of Truth**: Base your answers STRICTLY on the "RETRIEVED CONTEXT" provided below.
2. **Missing Info**: If the context is empty or does not contain the answer, state politely in Ukrainian: "Вибачте, у мене немає точної інформації про це в базі знань. Будь ласка, уточніть запит або зверніться до деканату."
3. **Language**: Respond in UKRAINIAN by default.
4. **Tone**: Official, academic, helpful.
5. **Formatting**: Use Markdown lists and bold text for important dates, URLs (make them clickable), and contacts.
6. **Identity**: You represent Zaporizhzhia Polytechnic. Refer to "our university" or "NUZP".
`

// Retriever produces a context block for a query; "" means nothing relevant.
type Retriever interface {
	RetrieveContext(query string) string
}

// Augmented is the outcome of one retrieval plus prompt composition.
type Augmented struct {
	Context string
	Prompt  string
}

// Composer runs retrieval and wraps the result around a base instruction.
type Composer struct {
	Retriever   Retriever
	Instruction string
}

// NewComposer returns a Composer using SystemInstruction.
func NewComposer(r Retriever) *Composer {
	return &Composer{Retriever: r, Instruction: SystemInstruction}
}

// Augment retrieves context for query and builds the augmented instruction.
func (c *Composer) Augment(query string) Augmented {
	ctx := c.Retriever.RetrieveContext(query)
	return Augmented{
		Context: ctx,
		Prompt:  BuildAugmentedPrompt(c.Instruction, ctx),
	}
}

// BuildAugmentedPrompt appends the context block, or the NoContext
// placeholder, to base under ContextHeader.
func BuildAugmentedPrompt(base, context string) string {
	if context == "" {
		context = NoContext
	}
	return base + "\n\n" + ContextHeader + "\n" + context
}
