package rag

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// DefaultGenerationModel is the chat model used unless configured otherwise.
const DefaultGenerationModel = "gpt-4o"

// systemPrompt fixes the assistant's role and target language: questions
// come from Russian-speaking users, the retrieved documentation fragments
// are English.
const systemPrompt = `Ты - специализированный ассистент по документации, который отвечает на вопросы пользователей на русском языке.
Ты получаешь вопрос пользователя и релевантные фрагменты из документации на английском языке.
Твоя задача - предоставить точный, полезный и понятный ответ на русском языке, основываясь на предоставленных фрагментах документации.`

// AnswerGenerator synthesizes a grounded answer from retrieved context.
// Implementations may fail for any reason (timeout, quota, malformed
// output); the engine recovers with the extractive fallback.
type AnswerGenerator interface {
	Generate(ctx context.Context, query, contextText string, temperature float64) (string, error)
}

// Generator produces answers with the OpenAI Chat Completions API.
type Generator struct {
	client *openai.Client
	model  string
}

// NewGenerator creates a generator using the given chat model. An empty
// model falls back to DefaultGenerationModel.
func NewGenerator(client *openai.Client, model string) *Generator {
	if model == "" {
		model = DefaultGenerationModel
	}
	return &Generator{
		client: client,
		model:  model,
	}
}

// Generate asks the chat model for an answer grounded in contextText.
func (g *Generator) Generate(ctx context.Context, query, contextText string, temperature float64) (string, error) {
	prompt := fmt.Sprintf(`You are an assistant helping with documentation questions.
Base your answer on the following information:

%s

User question: %s

Provide a concise, clear answer. If the information doesn't fully answer the question,
acknowledge the limitations. If mentioning images, refer to them as [Image X].`, contextText, query)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion returned no content")
	}

	return resp.Choices[0].Message.Content, nil
}
