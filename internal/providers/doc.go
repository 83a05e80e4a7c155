// Package providers implements the model backends reviewers run on.
//
// Supported providers: Ollama (the default, through its native generate API),
// OpenAI and LM Studio (through the OpenAI-compatible chat API), Anthropic and
// Google Gemini.
//
// All providers share a retry helper with exponential back-off for rate
// limits and server errors; authentication failures are never retried.
// Ollama and the OpenAI-compatible providers also implement [Streamer] and
// [ModelLister].
//
// Use [New] to obtain a Provider by name and model.
package providers
