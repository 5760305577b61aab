package gemini

// WelcomePromptTemplate asks for a short personalized welcome. The verbs are
// deliberately terse; long prompts made the model ramble.
const WelcomePromptTemplate = `Make a short friendly welcome message.
Include user's name: %s
Language: %s
Very short (1-2 lines).
Simple Bengali + English mix.
No emojis at start.
Max one emoji at end.`
