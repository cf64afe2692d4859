// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperqa/internal/docs"
	"github.com/pdiddy/paperqa/pkg/types"
)

type stubAsker struct {
	got docs.QueryRequest
	err error
}

func (s *stubAsker) Query(_ context.Context, req docs.QueryRequest) (*types.Answer, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &types.Answer{
		Question: req.Question,
		Answer:   "Cells divide by mitosis (Smith2020).",
		Contexts: []types.Context{{Key: "Smith2020 pos 0", DocKey: "Smith2020"}},
		Bibliography: []types.BibEntry{
			{Key: "Smith2020", Citation: "Smith, J. Cells. 2020."},
		},
		Tokens: 42,
	}, nil
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestModel_AskAndRender(t *testing.T) {
	asker := &stubAsker{}
	m := sized(t, New(context.Background(), asker, docs.DefaultQuery(""), "3 documents"))
	assert.Contains(t, m.View(), "No questions yet.")

	m = typeText(m, "How do cells divide?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Thinking about")

	msg := cmd()
	require.IsType(t, answerMsg{}, msg)
	assert.Equal(t, "How do cells divide?", asker.got.Question)
	assert.Equal(t, 10, asker.got.K, "template settings are kept")

	next, _ = m.Update(msg)
	m = next.(Model)
	assert.False(t, m.busy)
	view := m.View()
	assert.Contains(t, view, "Q: How do cells divide?")
	assert.Contains(t, view, "Cells divide by mitosis")
	assert.Contains(t, view, "(Smith2020) Smith, J. Cells. 2020.")
	assert.Contains(t, view, "1 sources, 42 tokens")
}

func TestModel_Error(t *testing.T) {
	asker := &stubAsker{err: errors.New("rate limited")}
	m := sized(t, New(context.Background(), asker, docs.DefaultQuery(""), ""))
	m = typeText(m, "why?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Contains(t, m.status, "Error: rate limited")
	assert.Contains(t, m.View(), "error: rate limited")
}

func TestModel_IgnoresEmptyAndBusyEnter(t *testing.T) {
	m := sized(t, New(context.Background(), &stubAsker{}, docs.DefaultQuery(""), ""))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	m = typeText(m, "first")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(next.(Model), "second")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "no second query while one is running")
}

func TestModel_Quit(t *testing.T) {
	m := New(context.Background(), &stubAsker{}, docs.DefaultQuery(""), "")
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		_, cmd := m.Update(tea.KeyMsg{Type: k})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestModel_LoadingBeforeSize(t *testing.T) {
	m := New(context.Background(), &stubAsker{}, docs.DefaultQuery(""), "")
	assert.Equal(t, "Loading...", m.View())
}
