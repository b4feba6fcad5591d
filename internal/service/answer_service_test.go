package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"biobyia-go/internal/config"
	"biobyia-go/pkg/llm"
	"biobyia-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	messages []llm.Message
	reply    string
	err      error
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) error {
	f.messages = messages
	if f.err != nil {
		return f.err
	}
	return writer.WriteMessage(1, []byte(f.reply))
}

func (f *fakeLLM) StreamChat(ctx context.Context, prompt string, writer llm.MessageWriter) error {
	return f.StreamChatMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, writer)
}

func TestAskStreamsAnswerWithContext(t *testing.T) {
	store := &fakeQueryStore{
		matches: []vectorstore.Match{
			{ID: "article_a1_chunk_0", Score: 0.91, Metadata: map[string]any{
				"text": "Mitochondria play an early role in cell death.", "article_id": "a1", "chunk_index": 0,
			}},
			{ID: "article_a1_chunk_1", Score: 0.42, Metadata: map[string]any{
				"text": "Unrelated low score chunk.", "article_id": "a1", "chunk_index": 1,
			}},
		},
	}
	embedder := &fakeEmbedder{vector: []float32{0.5, 0.5}}
	querySvc := NewQueryService(embedder, store, config.QueryConfig{TopK: 5})
	chat := &fakeLLM{reply: "Yes, they do."}
	svc := NewAnswerService(querySvc, chat)

	var streamed strings.Builder
	writer := llm.WriterFunc(func(messageType int, data []byte) error {
		streamed.Write(data)
		return nil
	})

	result, err := svc.Ask(context.Background(), "Do mitochondria play a role?", AskOptions{}, writer)
	require.NoError(t, err)

	assert.Equal(t, "Yes, they do.", streamed.String())
	require.Len(t, result.Results, 1)
	assert.Equal(t, []string{"a1"}, result.Articles)
	assert.Contains(t, result.Context, "[Contexto 1] (Artigo: a1, Score: 0.910)")
	assert.NotContains(t, result.Context, "Unrelated low score chunk.")

	require.Len(t, chat.messages, 2)
	assert.Equal(t, "system", chat.messages[0].Role)
	assert.Contains(t, chat.messages[1].Content, "Instruction: Responda à pergunta")
	assert.Contains(t, chat.messages[1].Content, "Mitochondria play an early role")
	assert.Contains(t, chat.messages[1].Content, "Pergunta: Do mitochondria play a role?")
}

func TestAskNoRelevantContext(t *testing.T) {
	querySvc := NewQueryService(&fakeEmbedder{vector: []float32{1}}, &fakeQueryStore{}, config.QueryConfig{TopK: 5})
	chat := &fakeLLM{reply: "I cannot find relevant evidence."}
	svc := NewAnswerService(querySvc, chat)

	result, err := svc.Ask(context.Background(), "Anything?", AskOptions{}, llm.WriterFunc(func(int, []byte) error { return nil }))
	require.NoError(t, err)

	assert.Empty(t, result.Results)
	assert.Equal(t, "Nenhum contexto relevante encontrado.", result.Context)
	assert.Contains(t, chat.messages[1].Content, "Nenhum contexto relevante encontrado.")
}

func TestAskChatFailure(t *testing.T) {
	querySvc := NewQueryService(&fakeEmbedder{vector: []float32{1}}, &fakeQueryStore{}, config.QueryConfig{TopK: 5})
	chat := &fakeLLM{err: errors.New("model overloaded")}
	svc := NewAnswerService(querySvc, chat)

	_, err := svc.Ask(context.Background(), "Anything?", AskOptions{}, llm.WriterFunc(func(int, []byte) error { return nil }))
	require.ErrorContains(t, err, "chat completion failed")
}
