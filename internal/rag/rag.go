// Package rag composes retrieval and generation into grounded answers.
package rag

import (
	"context"
	"fmt"
	"strings"

	"coursenav/internal/domain"
	"coursenav/internal/llm"
)

const systemPrompt = `You are a university course information assistant for graduate CSCE and ECEN programs.

Your responsibilities:
- Provide accurate, reliable information about graduate-level courses and programs
- Base responses exclusively on the provided context from official documents
- Include specific details like course numbers, credit hours, prerequisites, and requirements
- Help students understand degree plans, specializations, and academic policies

Guidelines:
- Give detailed, helpful answers when the context supports it
- If information is insufficient, clearly state what you don't know
- Always be factual and avoid speculation beyond the provided documents`

const declineAnswer = `I don't have specific information about that topic in my current database.

For the most accurate and up-to-date information, I recommend checking the official course catalog, contacting the department directly, or speaking with an academic advisor.

Is there anything else about the available course information I can help you with?`

// Retriever is the slice of retrieval the answerer needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.SearchResult, error)
}

// Answerer turns a question into a grounded answer: retrieve relevant
// chunks, then have the generator synthesize a reply from them. When
// retrieval comes back empty it declines instead of letting the model
// improvise.
type Answerer struct {
	retriever Retriever
	generator llm.Generator
	topK      int
	minScore  float64
}

// NewAnswerer builds an Answerer.
func NewAnswerer(r Retriever, g llm.Generator, topK int, minScore float64) *Answerer {
	return &Answerer{retriever: r, generator: g, topK: topK, minScore: minScore}
}

// Answer responds to a question, optionally continuing a conversation.
func (a *Answerer) Answer(ctx context.Context, question string, history []llm.Message) (string, error) {
	results, err := a.retriever.Retrieve(ctx, question, a.topK, a.minScore)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}
	if len(results) == 0 {
		return declineAnswer, nil
	}

	reply, err := a.generator.Generate(ctx, BuildMessages(results, history, question))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// BuildMessages constructs the conversation for the generator from
// retrieved chunks, prior history, and the current question.
func BuildMessages(results []domain.SearchResult, history []llm.Message, question string) []llm.Message {
	var msgs []llm.Message
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})

	var ctx strings.Builder
	ctx.WriteString("CONTEXT INFORMATION:\n\n")
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("Source: %s\nContent: %s", r.DocumentID, r.Text))
	}
	ctx.WriteString(strings.Join(parts, "\n\n---\n\n"))
	ctx.WriteString("\n\nAnswer based on the context information above. Include specific details like course numbers, credit hours, prerequisites, and requirements when available.")
	msgs = append(msgs, llm.Message{Role: "user", Content: ctx.String()})
	msgs = append(msgs, llm.Message{Role: "assistant", Content: "I've reviewed the course material. What would you like to know?"})

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})
	return msgs
}
