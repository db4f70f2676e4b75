package review

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sprite-ai/lexisafe/internal/assistant"
	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/llm"
	"github.com/sprite-ai/lexisafe/internal/model"
	"github.com/sprite-ai/lexisafe/internal/session"
)

const threeClauses = "Unilateral Termination | High | Vendor may exit at will | Mutual notice" +
	"###Data Selling | High | Data may be sold | Prohibit resale" +
	"###Jurisdiction | Low | Local courts | None"

type stubExtractor struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubExtractor) Extract(context.Context, []byte) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

func reply(text string, err error) llm.GeneratorFunc {
	return func(context.Context, string, llm.Options) (string, error) {
		return text, err
	}
}

func newTestOrchestrator(ex document.Extractor, gen llm.Generator) *Orchestrator {
	return New(ex, gen, DefaultConfig(), nil)
}

func analyzedOrchestrator(t *testing.T, gen llm.Generator) *Orchestrator {
	t.Helper()
	o := newTestOrchestrator(&stubExtractor{text: "contract text"}, gen)
	_, err := o.Upload("msa.pdf", []byte("msa"))
	require.NoError(t, err)
	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)
	return o
}

func TestRunAnalysis(t *testing.T) {
	ex := &stubExtractor{text: "The vendor may terminate at any time."}
	o := newTestOrchestrator(ex, reply(threeClauses, nil))

	changed, err := o.Upload("msa.pdf", []byte("pdf bytes"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, session.StateDocumentLoaded, o.Session().State())

	res, err := o.RunAnalysis(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.StateAnalyzed, o.Session().State())
	h, m, l := res.Risks.Counts()
	assert.Equal(t, [3]int{2, 0, 1}, [3]int{h, m, l})
	assert.Equal(t, "Unilateral Termination", res.Risks.High[0].Title)
	assert.Equal(t, "Data Selling", res.Risks.High[1].Title)
	assert.Equal(t, 3, res.Stats.Accepted)
	assert.True(t, o.Session().Snapshot().AnalysisComplete)
}

func TestRunAnalysisCachesExtraction(t *testing.T) {
	ex := &stubExtractor{text: "contract"}
	o := newTestOrchestrator(ex, reply(threeClauses, nil))
	_, err := o.Upload("msa.pdf", []byte("v1"))
	require.NoError(t, err)

	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)
	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), ex.calls.Load())

	_, err = o.Upload("msa.pdf", []byte("v2"))
	require.NoError(t, err)
	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), ex.calls.Load(), "changed document is extracted again")
}

func TestRunAnalysisRequiresDocument(t *testing.T) {
	o := newTestOrchestrator(&stubExtractor{}, reply(threeClauses, nil))
	_, err := o.RunAnalysis(context.Background())
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestRunAnalysisTransportFailure(t *testing.T) {
	o := newTestOrchestrator(&stubExtractor{text: "contract"}, reply("", errors.New("connection refused")))
	_, err := o.Upload("msa.pdf", []byte("x"))
	require.NoError(t, err)

	res, err := o.RunAnalysis(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTransport)
	assert.True(t, strings.HasPrefix(res.Raw, assistant.DisplayErrorPrefix))
	assert.Equal(t, session.StateDocumentLoaded, o.Session().State())
	assert.False(t, o.Session().Snapshot().AnalysisComplete)
}

func TestRunAnalysisExtractionSoftError(t *testing.T) {
	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, p string, _ llm.Options) (string, error) {
		prompt = p
		return "no delimiters present", nil
	})
	o := newTestOrchestrator(&stubExtractor{err: document.ErrUnreadable}, gen)
	_, err := o.Upload("scan.pdf", []byte("x"))
	require.NoError(t, err)

	res, err := o.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Risks.IsEmpty())
	assert.NotContains(t, prompt, document.ErrorPrefix)

	snap := o.Session().Snapshot()
	require.Len(t, snap.Warnings, 1)
	assert.True(t, document.IsSoftError(snap.Warnings[0]))
	assert.Equal(t, session.StateAnalyzed, snap.State)
}

// ctxExtractor fails with the context error when ctx is done.
type ctxExtractor struct {
	text  string
	calls atomic.Int32
}

func (c *ctxExtractor) Extract(ctx context.Context, _ []byte) (string, error) {
	c.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.text, nil
}

func TestRunAnalysisCancelledExtractionNotCached(t *testing.T) {
	ex := &ctxExtractor{text: "The vendor may terminate at any time."}
	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, p string, _ llm.Options) (string, error) {
		prompt = p
		return threeClauses, nil
	})
	o := newTestOrchestrator(ex, gen)
	_, err := o.Upload("msa.pdf", []byte("pdf bytes"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.RunAnalysis(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, session.StateDocumentLoaded, o.Session().State())
	assert.Empty(t, prompt, "model is not called after a cancelled extraction")
	_, cached := o.Session().CachedText()
	assert.False(t, cached)

	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), ex.calls.Load())
	assert.Contains(t, prompt, "The vendor may terminate at any time.")
	assert.Equal(t, session.StateAnalyzed, o.Session().State())
	assert.Empty(t, o.Session().Snapshot().Warnings)
}

func TestRunAnalysisLogsUnclassified(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	o := New(&stubExtractor{text: "c"}, reply("A|Severe|x|y###B|High|x|y", nil), DefaultConfig(), zap.New(core))
	_, err := o.Upload("a.pdf", []byte("a"))
	require.NoError(t, err)
	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)

	warn := logs.FilterMessage("severity labels defaulted to Low").All()
	require.Len(t, warn, 1)
	assert.Equal(t, int64(1), warn[0].ContextMap()["count"])
	assert.Equal(t, 1, logs.FilterMessage("analysis complete").Len())
}

func TestUploadSameDocumentKeepsAnalysis(t *testing.T) {
	o := analyzedOrchestrator(t, reply(threeClauses, nil))

	changed, err := o.Upload("msa.pdf", []byte("msa"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 3, o.Session().Risks().Total())

	changed, err = o.Upload("other.pdf", []byte("other"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, o.Session().Risks().IsEmpty())
}

func TestSendChat(t *testing.T) {
	var prompts []string
	gen := llm.GeneratorFunc(func(_ context.Context, p string, _ llm.Options) (string, error) {
		prompts = append(prompts, p)
		if len(prompts) == 1 {
			return threeClauses, nil
		}
		return "It favours the vendor.", nil
	})
	o := analyzedOrchestrator(t, gen)

	answer, err := o.SendChat(context.Background(), "  Who benefits from termination?  ")
	require.NoError(t, err)
	assert.Equal(t, "It favours the vendor.", answer)

	conv := o.Session().Conversation()
	require.Len(t, conv, 2)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "Who benefits from termination?"}, conv[0])
	assert.Equal(t, model.RoleAssistant, conv[1].Role)

	_, err = o.SendChat(context.Background(), "And jurisdiction?")
	require.NoError(t, err)
	assert.Contains(t, prompts[2], "user: Who benefits from termination?")
	assert.Contains(t, prompts[2], "contract text")
}

func TestSendChatFailureRecorded(t *testing.T) {
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, string, llm.Options) (string, error) {
		calls++
		if calls == 1 {
			return threeClauses, nil
		}
		return "", errors.New("quota")
	})
	o := analyzedOrchestrator(t, gen)

	answer, err := o.SendChat(context.Background(), "hello")
	assert.ErrorIs(t, err, llm.ErrTransport)
	assert.True(t, strings.HasPrefix(answer, assistant.DisplayErrorPrefix))

	conv := o.Session().Conversation()
	require.Len(t, conv, 2)
	assert.Equal(t, answer, conv[1].Content)
	assert.Equal(t, session.StateAnalyzed, o.Session().State())
}

func TestSendChatPreconditions(t *testing.T) {
	o := newTestOrchestrator(&stubExtractor{}, reply("x", nil))
	_, err := o.SendChat(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = o.SendChat(context.Background(), "hi")
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestModals(t *testing.T) {
	o := newTestOrchestrator(&stubExtractor{text: "c"}, reply(threeClauses, nil))
	_, err := o.Upload("a.pdf", []byte("a"))
	require.NoError(t, err)
	assert.ErrorIs(t, o.OpenModal(model.ModalChat), session.ErrInvalidTransition)

	_, err = o.RunAnalysis(context.Background())
	require.NoError(t, err)
	require.NoError(t, o.OpenModal(model.ModalEmail))
	assert.Equal(t, model.ModalEmail, o.Session().ActiveModal())
	require.NoError(t, o.CloseModal())
	assert.Equal(t, model.ModalNone, o.Session().ActiveModal())
}

func TestDraftEmail(t *testing.T) {
	calls := 0
	gen := llm.GeneratorFunc(func(_ context.Context, _ string, opts llm.Options) (string, error) {
		calls++
		if calls == 1 {
			return threeClauses, nil
		}
		assert.InDelta(t, assistant.DefaultEmailTemperature, opts.Temperature, 1e-9)
		return "Subject: Amendments", nil
	})
	o := analyzedOrchestrator(t, gen)

	email, err := o.DraftEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Subject: Amendments", email)
}

func TestDraftEmailReadyToSign(t *testing.T) {
	o := analyzedOrchestrator(t, reply("Jurisdiction|Low|fine|none", nil))
	email, err := o.DraftEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, assistant.ReadyToSignEmail, email)
}

func TestReport(t *testing.T) {
	o := newTestOrchestrator(&stubExtractor{text: "c"}, reply(threeClauses, nil))
	_, err := o.Report()
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	o = analyzedOrchestrator(t, reply(threeClauses, nil))
	data, err := o.Report()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	res := o.Result()
	assert.Equal(t, "msa.pdf", res.DocumentName)
	assert.Equal(t, 3, res.Risks.Total())
	assert.Equal(t, "func", res.Model)
}

func TestReset(t *testing.T) {
	o := analyzedOrchestrator(t, reply(threeClauses, nil))
	require.NoError(t, o.Reset())
	assert.Equal(t, session.StateIdle, o.Session().State())
	assert.ErrorIs(t, o.Reset(), session.ErrInvalidTransition)
}

func TestBusyRejectsConcurrentAction(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	gen := llm.GeneratorFunc(func(context.Context, string, llm.Options) (string, error) {
		close(started)
		<-unblock
		return threeClauses, nil
	})
	o := newTestOrchestrator(&stubExtractor{text: "c"}, gen)
	_, err := o.Upload("a.pdf", []byte("a"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.RunAnalysis(context.Background())
		done <- err
	}()
	<-started

	_, err = o.RunAnalysis(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = o.Upload("b.pdf", []byte("b"))
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, o.Reset(), ErrBusy)

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, session.StateAnalyzed, o.Session().State())
}
