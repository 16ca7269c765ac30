package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursenav/internal/domain"
	"coursenav/internal/llm"
)

type fakeRetriever struct {
	results []domain.SearchResult
	err     error
}

func (f *fakeRetriever) Retrieve(context.Context, string, int, float64) ([]domain.SearchResult, error) {
	return f.results, f.err
}

type fakeGenerator struct {
	reply string
	err   error
	got   []llm.Message
}

func (f *fakeGenerator) Generate(_ context.Context, msgs []llm.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

func hit(doc, text string, score float64) domain.SearchResult {
	return domain.SearchResult{
		Chunk: domain.Chunk{DocumentID: doc, Text: text},
		Score: score,
	}
}

func TestAnswerGroundedInRetrievedContext(t *testing.T) {
	gen := &fakeGenerator{reply: "  CSCE 629 requires CSCE 221.  "}
	a := NewAnswerer(&fakeRetriever{results: []domain.SearchResult{
		hit("csce629.md", "CSCE 629 requires CSCE 221 and CSCE 222.", 0.9),
	}}, gen, 3, 0.1)

	answer, err := a.Answer(context.Background(), "What does CSCE 629 require?", nil)
	require.NoError(t, err)
	assert.Equal(t, "CSCE 629 requires CSCE 221.", answer)

	require.NotEmpty(t, gen.got)
	assert.Equal(t, "system", gen.got[0].Role)
	assert.Contains(t, gen.got[1].Content, "Source: csce629.md")
	assert.Contains(t, gen.got[1].Content, "CSCE 629 requires CSCE 221 and CSCE 222.")
	assert.Equal(t, "What does CSCE 629 require?", gen.got[len(gen.got)-1].Content)
}

func TestAnswerDeclinesWhenNothingRetrieved(t *testing.T) {
	gen := &fakeGenerator{reply: "should never be called"}
	a := NewAnswerer(&fakeRetriever{}, gen, 3, 0.1)

	answer, err := a.Answer(context.Background(), "What about underwater basket weaving?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "don't have specific information")
	assert.Nil(t, gen.got, "the generator must not run without context")
}

func TestAnswerPropagatesRetrievalError(t *testing.T) {
	a := NewAnswerer(&fakeRetriever{err: domain.ErrBackendUnavailable}, &fakeGenerator{}, 3, 0.1)
	_, err := a.Answer(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestAnswerPropagatesGenerationError(t *testing.T) {
	genErr := errors.Join(domain.ErrGeneration, errors.New("model offline"))
	a := NewAnswerer(&fakeRetriever{results: []domain.SearchResult{
		hit("a.md", "some context", 0.8),
	}}, &fakeGenerator{err: genErr}, 3, 0.1)

	_, err := a.Answer(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestBuildMessagesIncludesHistoryInOrder(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	msgs := BuildMessages([]domain.SearchResult{
		hit("a.md", "context text", 0.9),
	}, history, "follow-up question")

	require.GreaterOrEqual(t, len(msgs), 6)
	assert.Equal(t, "earlier question", msgs[len(msgs)-3].Content)
	assert.Equal(t, "earlier answer", msgs[len(msgs)-2].Content)
	assert.Equal(t, "follow-up question", msgs[len(msgs)-1].Content)
}

func TestBuildMessagesJoinsChunksWithSeparator(t *testing.T) {
	msgs := BuildMessages([]domain.SearchResult{
		hit("a.md", "first chunk", 0.9),
		hit("b.md", "second chunk", 0.8),
	}, nil, "q")

	ctx := msgs[1].Content
	assert.Contains(t, ctx, "Source: a.md\nContent: first chunk")
	assert.Contains(t, ctx, "Source: b.md\nContent: second chunk")
	assert.Contains(t, ctx, "\n\n---\n\n")
}
