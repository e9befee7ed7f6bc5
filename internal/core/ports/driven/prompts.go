package driven

// Prompt names. Each maps to <name>.txt in the prompts directory.
const (
	// PromptSemanticSplit takes the window text and must yield a JSON array
	// of chunk strings.
	PromptSemanticSplit = "semantic_split"

	// PromptContextEnrich takes metadata, preceding context and the chunk,
	// in that order, and yields the rewritten chunk.
	PromptContextEnrich = "context_enrich"
)

// PromptStore serves prompt templates. Templates are fmt format strings
// whose %s verbs are filled by the refiner.
type PromptStore interface {
	// Load returns the template for name. A template that was never
	// customised comes back as the built-in default.
	Load(name string) (string, error)

	// Reload drops cached templates so edits on disk are picked up.
	Reload()
}
