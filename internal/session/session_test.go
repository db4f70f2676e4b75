package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/lexisafe/internal/document"
	"github.com/sprite-ai/lexisafe/internal/model"
)

func docA() document.Document {
	return document.New("a.pdf", []byte("contract A"), document.IdentityContent)
}

func docB() document.Document {
	return document.New("b.pdf", []byte("contract B"), document.IdentityContent)
}

func oneRisk() model.RiskCollection {
	var c model.RiskCollection
	c.Add(model.RiskRecord{Title: "Termination", Severity: model.SeverityHigh})
	return c
}

// analyzed returns a session holding docA with one risk, an open chat modal,
// and one chat turn.
func analyzed(t *testing.T) *Context {
	t.Helper()
	s := New()
	require.True(t, s.Upload(docA()))
	s.CacheText(docA().ID, "contract A text")
	_, err := s.BeginAnalysis()
	require.NoError(t, err)
	require.NoError(t, s.Commit(docA().ID, oneRisk()))
	require.NoError(t, s.OpenModal(model.ModalChat))
	require.NoError(t, s.AppendMessage(model.RoleUser, "hi"))
	return s
}

func TestNewIsIdle(t *testing.T) {
	s := New()
	assert.Equal(t, StateIdle, s.State())
	assert.True(t, s.Risks().IsEmpty())
	assert.Equal(t, model.ModalNone, s.ActiveModal())
}

func TestSameDocumentUploadIsNoOp(t *testing.T) {
	s := analyzed(t)

	assert.False(t, s.Upload(docA()))
	assert.Equal(t, StateAnalyzed, s.State())
	assert.Equal(t, 1, s.Risks().Total())
	assert.Len(t, s.Conversation(), 1)
	assert.Equal(t, model.ModalChat, s.ActiveModal())
	text, ok := s.CachedText()
	assert.True(t, ok)
	assert.Equal(t, "contract A text", text)
}

func TestDifferentDocumentClearsDerivedState(t *testing.T) {
	s := analyzed(t)
	s.AddWarning("page 3 unreadable")

	assert.True(t, s.Upload(docB()))
	assert.Equal(t, StateDocumentLoaded, s.State())
	assert.Equal(t, docB().ID, s.Document().ID)

	snap := s.Snapshot()
	assert.False(t, snap.AnalysisComplete)
	assert.True(t, snap.Risks.IsEmpty())
	assert.Empty(t, snap.Conversation)
	assert.Equal(t, "none", snap.ActiveModal)
	assert.Empty(t, snap.Warnings)
	_, ok := s.CachedText()
	assert.False(t, ok)
}

func TestTransitions(t *testing.T) {
	t.Run("analyze requires document", func(t *testing.T) {
		_, err := New().BeginAnalysis()
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("commit requires document", func(t *testing.T) {
		err := New().Commit("x", oneRisk())
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("modal requires analysis", func(t *testing.T) {
		s := New()
		s.Upload(docA())
		assert.ErrorIs(t, s.OpenModal(model.ModalEmail), ErrInvalidTransition)
		assert.Equal(t, model.ModalNone, s.ActiveModal())
	})

	t.Run("chat requires analysis", func(t *testing.T) {
		s := New()
		s.Upload(docA())
		assert.ErrorIs(t, s.AppendMessage(model.RoleUser, "q"), ErrInvalidTransition)
	})

	t.Run("modal none rejected", func(t *testing.T) {
		s := analyzed(t)
		assert.ErrorIs(t, s.OpenModal(model.ModalNone), ErrInvalidTransition)
		assert.Equal(t, model.ModalChat, s.ActiveModal())
	})

	t.Run("close modal from any state", func(t *testing.T) {
		New().CloseModal()
		s := analyzed(t)
		s.CloseModal()
		assert.Equal(t, model.ModalNone, s.ActiveModal())
		assert.Equal(t, StateAnalyzed, s.State())
	})

	t.Run("reset from idle rejected", func(t *testing.T) {
		assert.ErrorIs(t, New().Reset(), ErrInvalidTransition)
	})

	t.Run("reset from analyzed", func(t *testing.T) {
		s := analyzed(t)
		require.NoError(t, s.Reset())
		assert.Equal(t, StateIdle, s.State())
		assert.Empty(t, s.Document().ID)
		assert.True(t, s.Risks().IsEmpty())
	})

	t.Run("reset from loaded", func(t *testing.T) {
		s := New()
		s.Upload(docA())
		require.NoError(t, s.Reset())
		assert.Equal(t, StateIdle, s.State())
	})

	t.Run("reanalysis allowed", func(t *testing.T) {
		s := analyzed(t)
		_, err := s.BeginAnalysis()
		require.NoError(t, err)
		require.NoError(t, s.Commit(docA().ID, model.RiskCollection{}))
		assert.True(t, s.Risks().IsEmpty())
		assert.Equal(t, StateAnalyzed, s.State())
	})
}

func TestCommitRejectsStaleDocument(t *testing.T) {
	s := New()
	s.Upload(docA())
	_, err := s.BeginAnalysis()
	require.NoError(t, err)

	s.Upload(docB())
	err = s.Commit(docA().ID, oneRisk())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateDocumentLoaded, s.State())
	assert.True(t, s.Risks().IsEmpty())
}

func TestCacheTextIgnoresStaleDocument(t *testing.T) {
	s := New()
	s.Upload(docB())
	s.CacheText(docA().ID, "old text")
	_, ok := s.CachedText()
	assert.False(t, ok)
}

func TestReuploadAfterResetStartsFresh(t *testing.T) {
	s := analyzed(t)
	require.NoError(t, s.Reset())
	assert.True(t, s.Upload(docA()), "identity is forgotten after reset")
	assert.Equal(t, StateDocumentLoaded, s.State())
}

func TestConversationIsCopied(t *testing.T) {
	s := analyzed(t)
	conv := s.Conversation()
	conv[0].Content = "changed"
	assert.Equal(t, "hi", s.Conversation()[0].Content)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "document_loaded", StateDocumentLoaded.String())
	assert.Equal(t, "analyzed", StateAnalyzed.String())
	assert.Equal(t, "unknown", State(9).String())
}
