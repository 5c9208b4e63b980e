package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"frameworks/almanac/internal/confidence"
	"frameworks/almanac/internal/intent"
	"frameworks/almanac/internal/investigation"
	"frameworks/almanac/internal/retrieval"
	"frameworks/almanac/internal/routing"
	"frameworks/almanac/pkg/llm"
)

var errProvider = errors.New("provider unavailable")

type sliceStream struct {
	chunks []string
	i      int
}

func (s *sliceStream) Recv() (llm.Chunk, error) {
	if s.i >= len(s.chunks) {
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[s.i]
	s.i++
	return llm.Chunk{Content: c}, nil
}

func (s *sliceStream) Close() error { return nil }

// scriptedProvider answers with reply, or fails with err.
type scriptedProvider struct {
	reply string
	err   error

	mu    sync.Mutex
	calls [][]llm.Message
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	p.mu.Lock()
	p.calls = append(p.calls, messages)
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	return &sliceStream{chunks: []string{p.reply}}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// providerMap serves a scripted provider per profile key.
type providerMap map[string]*scriptedProvider

func (m providerMap) Provider(profile routing.ModelProfile) (llm.Provider, error) {
	p, ok := m[profile.Key]
	if !ok {
		return nil, errors.New("no provider for " + profile.Key)
	}
	return p, nil
}

type stubRetriever struct {
	result retrieval.Result
	calls  int
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string) retrieval.Result {
	r.calls++
	return r.result
}

type stubInvestigator struct {
	result    investigation.Result
	topics    []string
	questions [][]string
}

func (s *stubInvestigator) InvestigateTopic(_ context.Context, topic string, questions []string) investigation.Result {
	s.topics = append(s.topics, topic)
	s.questions = append(s.questions, questions)
	res := s.result
	res.Topic = topic
	return res
}

// evaluatorFunc adapts a function to confidence.Evaluator.
type evaluatorFunc func(response string, category intent.TaskCategory) confidence.Verdict

func (f evaluatorFunc) Evaluate(response string, category intent.TaskCategory) confidence.Verdict {
	return f(response, category)
}

func alwaysEscalate(string, intent.TaskCategory) confidence.Verdict {
	return confidence.Verdict{ShouldEscalate: true, Reasons: []string{"uncertainty", "hedging"}}
}

func neverEscalate(string, intent.TaskCategory) confidence.Verdict {
	return confidence.Verdict{}
}
