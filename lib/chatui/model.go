// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is Recall's terminal interface: a bubbletea program
// presenting one conversation at a time, with streaming assistant
// turns, response regeneration and branch navigation, message editing,
// and a fuzzy-filtered session picker.
package chatui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recall-sh/recall/lib/api"
	"github.com/recall-sh/recall/lib/chat"
)

// SessionAPI is the server surface the model needs. *api.Client
// implements it; tests substitute fakes.
type SessionAPI interface {
	ListSessions(ctx context.Context) ([]api.Session, error)
	CreateSession(ctx context.Context, title string) (api.Session, error)
	RenameSession(ctx context.Context, uid, title string) (api.Session, error)
	DeleteSession(ctx context.Context, uid string) error
	ListMessages(ctx context.Context, uid string) ([]api.SessionMessage, error)
}

// LocalStore is the local persistence surface the model needs.
// *localstore.Store implements it. May be nil: every use degrades to
// a no-op (no drafts, no offline cache).
type LocalStore interface {
	SaveDraft(ctx context.Context, sessionUID, content string) error
	LoadDraft(ctx context.Context, sessionUID string) (string, error)
	DeleteDraft(ctx context.Context, sessionUID string) error
	CacheSessions(ctx context.Context, sessions []api.Session) error
	CachedSessions(ctx context.Context) ([]api.Session, error)
	CacheTranscript(ctx context.Context, sessionUID string, messages []chat.Message) error
	LoadTranscript(ctx context.Context, sessionUID string) ([]chat.Message, error)
	DeleteSession(ctx context.Context, sessionUID string) error
	SaveSetting(ctx context.Context, key, value string) error
	LoadSetting(ctx context.Context, key string) (string, error)
}

// SettingShowThinking is the localstore settings key persisting the
// reasoning-block visibility toggle across runs.
const SettingShowThinking = "show_thinking"

// StreamNotifier forwards controller updates into the bubbletea
// program. Wire it as the controller's notify callback, then call
// SetProgram once the program exists; updates arriving before that
// are dropped.
type StreamNotifier struct {
	program atomic.Pointer[tea.Program]
}

// SetProgram sets the receiving program. Safe from any goroutine.
func (notifier *StreamNotifier) SetProgram(program *tea.Program) {
	notifier.program.Store(program)
}

// Notify implements the controller callback.
func (notifier *StreamNotifier) Notify(update chat.Update) {
	if program := notifier.program.Load(); program != nil {
		program.Send(streamEventMsg{update: update})
	}
}

// Messages delivered to Update.
type (
	streamEventMsg  struct{ update chat.Update }
	turnFinishedMsg struct{ err error }

	sessionsLoadedMsg struct {
		sessions   []api.Session
		offline    bool
		openPicker bool
		err        error
	}
	sessionOpenedMsg struct {
		conversation chat.Conversation
		draft        string
		offline      bool
		err          error
	}
	sessionCreatedMsg struct {
		session api.Session
		err     error
	}
	sessionRenamedMsg struct {
		session api.Session
		err     error
	}
	sessionDeletedMsg struct {
		uid string
		err error
	}
	transcriptCachedMsg struct{ err error }
)

// Options configures the model.
type Options struct {
	Controller *chat.Controller
	Client     SessionAPI
	Store      LocalStore // may be nil
	Logger     *slog.Logger
	Theme      Theme
	Keys       KeyMap

	// ShowThinking is the initial state of the reasoning-block toggle.
	ShowThinking bool

	// CompactTimestamps shortens session timestamps in the picker.
	CompactTimestamps bool
}

// Model is the root bubbletea model.
type Model struct {
	controller *chat.Controller
	client     SessionAPI
	store      LocalStore
	logger     *slog.Logger
	theme      Theme
	keys       KeyMap

	viewport viewport.Model
	composer textarea.Model
	spinner  spinner.Model
	picker   *sessionPicker

	width  int
	height int
	ready  bool

	streaming    bool
	showThinking bool
	timeFormat   string

	// editingIndex is the user message being edited, or -1. While
	// set, Send resubmits instead of appending.
	editingIndex int

	// pendingSend holds text submitted before any session existed; it
	// is sent as the first turn once the auto-created session opens.
	pendingSend string

	notice      string
	noticeLevel slog.Level
}

// New creates the model. Call Init/Update/View via tea.NewProgram.
func New(options Options) *Model {
	composer := textarea.New()
	composer.Placeholder = "Ask your notes anything…"
	composer.ShowLineNumbers = false
	composer.SetHeight(3)
	composer.Focus()
	// Enter sends; these insert a line break instead.
	composer.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")

	loading := spinner.New(spinner.WithSpinner(spinner.MiniDot))

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Model{
		controller:   options.Controller,
		client:       options.Client,
		store:        options.Store,
		logger:       logger,
		theme:        options.Theme,
		keys:         options.Keys,
		composer:     composer,
		spinner:      loading,
		showThinking: options.ShowThinking,
		timeFormat:   timestampFormat(options.CompactTimestamps),
		editingIndex: -1,
	}
}

func (model *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		model.loadSessionsCmd(true),
	)
}

func (model *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.resize(msg.Width, msg.Height)
		return model, nil

	case tea.KeyMsg:
		return model.updateKey(msg)

	case streamEventMsg:
		model.refreshTranscript()
		model.viewport.GotoBottom()
		return model, nil

	case turnFinishedMsg:
		return model.finishTurn(msg.err)

	case spinner.TickMsg:
		if !model.streaming {
			return model, nil
		}
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(msg)
		model.refreshTranscript()
		return model, cmd

	case sessionsLoadedMsg:
		return model.sessionsLoaded(msg)

	case sessionOpenedMsg:
		return model.sessionOpened(msg)

	case sessionCreatedMsg:
		if msg.err != nil {
			model.restorePendingSend()
			return model, model.showError("creating session failed", msg.err)
		}
		model.picker = nil
		return model, model.openSessionCmd(msg.session.UID)

	case sessionRenamedMsg:
		if msg.err != nil {
			return model, model.showError("renaming session failed", msg.err)
		}
		if model.picker != nil {
			model.picker.updateTitle(msg.session.UID, msg.session.Title)
		}
		return model, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			return model, model.showError("deleting session failed", msg.err)
		}
		if model.picker != nil {
			model.picker.removeSession(msg.uid)
		}
		return model, nil

	case transcriptCachedMsg:
		if msg.err != nil {
			model.logger.Warn("transcript cache write failed", "error", msg.err)
		}
		return model, nil

	case logRecordMsg:
		model.notice = msg.Summary
		model.noticeLevel = msg.Level
		return model, model.fadeNoticeCmd()

	case noticeFadeMsg:
		model.notice = ""
		return model, nil
	}

	return model, model.updateComponents(msg)
}

func (model *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, model.keys.Quit) {
		return model, tea.Sequence(model.saveDraftCmd(), tea.Quit)
	}

	if model.picker != nil {
		return model.updatePickerKey(msg)
	}

	switch {
	case key.Matches(msg, model.keys.Send):
		return model.submit()

	case key.Matches(msg, model.keys.Cancel):
		if model.streaming {
			model.controller.Cancel()
			return model, nil
		}
		if model.editingIndex >= 0 {
			model.editingIndex = -1
			model.composer.Reset()
			return model, nil
		}
		return model, nil

	case key.Matches(msg, model.keys.Regenerate):
		return model.regenerate()

	case key.Matches(msg, model.keys.Edit):
		return model.beginEdit()

	case key.Matches(msg, model.keys.BranchPrevious):
		return model.switchBranch(-1)

	case key.Matches(msg, model.keys.BranchNext):
		return model.switchBranch(+1)

	case key.Matches(msg, model.keys.ScrollUp):
		model.viewport.HalfViewUp()
		return model, nil

	case key.Matches(msg, model.keys.ScrollDown):
		model.viewport.HalfViewDown()
		return model, nil

	case key.Matches(msg, model.keys.Sessions):
		return model, tea.Sequence(model.saveDraftCmd(), model.loadSessionsCmd(true))

	case key.Matches(msg, model.keys.NewSession):
		return model, tea.Sequence(model.saveDraftCmd(), model.createSessionCmd())

	case key.Matches(msg, model.keys.ToggleThinking):
		model.showThinking = !model.showThinking
		model.refreshTranscript()
		return model, model.saveThinkingSettingCmd()
	}

	var cmd tea.Cmd
	model.composer, cmd = model.composer.Update(msg)
	return model, cmd
}

func (model *Model) updatePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	picker := model.picker

	if picker.renaming {
		switch {
		case key.Matches(msg, model.keys.PickerOpen):
			uid, title, ok := picker.renameTarget()
			picker.cancelRename()
			if ok {
				return model, model.renameSessionCmd(uid, title)
			}
			return model, nil

		case key.Matches(msg, model.keys.PickerDismiss):
			picker.cancelRename()
			return model, nil
		}
		var cmd tea.Cmd
		picker.rename, cmd = picker.rename.Update(msg)
		return model, cmd
	}

	switch {
	case key.Matches(msg, model.keys.PickerDismiss):
		model.picker = nil
		return model, nil

	case key.Matches(msg, model.keys.PickerUp):
		picker.moveCursor(-1)
		return model, nil

	case key.Matches(msg, model.keys.PickerDown):
		picker.moveCursor(+1)
		return model, nil

	case key.Matches(msg, model.keys.PickerOpen):
		if session, ok := picker.selected(); ok {
			model.picker = nil
			return model, model.openSessionCmd(session.UID)
		}
		return model, nil

	case key.Matches(msg, model.keys.PickerRename):
		picker.beginRename()
		return model, nil

	case key.Matches(msg, model.keys.PickerDelete):
		if session, ok := picker.selected(); ok {
			return model, model.deleteSessionCmd(session.UID)
		}
		return model, nil

	case key.Matches(msg, model.keys.NewSession):
		return model, model.createSessionCmd()
	}

	var cmd tea.Cmd
	picker.filter, cmd = picker.filter.Update(msg)
	picker.applyFilter()
	return model, cmd
}

// submit sends the composer text as a new turn, or resubmits the
// message under edit.
func (model *Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(model.composer.Value())
	if text == "" {
		return model, nil
	}
	if model.streaming {
		return model, model.showError("still streaming", chat.ErrBusy)
	}
	if model.controller.ConversationID() == "" {
		// No session yet: create one, open it, then send this text as
		// its first turn.
		model.pendingSend = text
		model.editingIndex = -1
		model.composer.Reset()
		return model, model.createSessionCmd()
	}

	editIndex := model.editingIndex
	model.editingIndex = -1
	model.composer.Reset()

	if editIndex >= 0 {
		model.streaming = true
		turn := func() tea.Msg {
			return turnFinishedMsg{err: model.controller.EditAndResubmit(context.Background(), editIndex, text)}
		}
		model.refreshTranscript()
		return model, tea.Batch(turn, model.spinner.Tick, model.clearDraftCmd())
	}
	return model, model.startSend(text)
}

// startSend begins streaming text as a new turn in the current
// session.
func (model *Model) startSend(text string) tea.Cmd {
	model.streaming = true
	turn := func() tea.Msg {
		return turnFinishedMsg{err: model.controller.Send(context.Background(), text)}
	}
	model.refreshTranscript()
	return tea.Batch(turn, model.spinner.Tick, model.clearDraftCmd())
}

// restorePendingSend puts text held for an auto-created session back
// into the composer when the session could not be opened.
func (model *Model) restorePendingSend() {
	if model.pendingSend != "" {
		model.composer.SetValue(model.pendingSend)
		model.pendingSend = ""
	}
}

// regenerate re-streams the latest assistant response.
func (model *Model) regenerate() (tea.Model, tea.Cmd) {
	if model.streaming {
		return model, nil
	}
	index := model.latestMessageIndex(chat.RoleAssistant)
	if index < 0 {
		return model, nil
	}
	model.streaming = true
	turn := func() tea.Msg {
		return turnFinishedMsg{err: model.controller.Regenerate(context.Background(), index)}
	}
	return model, tea.Batch(turn, model.spinner.Tick)
}

// beginEdit loads the latest user message into the composer.
func (model *Model) beginEdit() (tea.Model, tea.Cmd) {
	if model.streaming {
		return model, nil
	}
	index := model.latestMessageIndex(chat.RoleUser)
	if index < 0 {
		return model, nil
	}
	messages := model.controller.Messages()
	model.editingIndex = index
	model.composer.SetValue(messages[index].Content)
	model.composer.CursorEnd()
	return model, nil
}

// switchBranch moves the latest assistant message to an adjacent
// variant.
func (model *Model) switchBranch(delta int) (tea.Model, tea.Cmd) {
	if model.streaming {
		return model, nil
	}
	index := model.latestMessageIndex(chat.RoleAssistant)
	if index < 0 {
		return model, nil
	}
	messages := model.controller.Messages()
	target := messages[index].CurrentBranch + delta
	if target < 0 || target > len(messages[index].Branches) {
		return model, nil
	}
	if err := model.controller.SelectBranch(index, target); err != nil {
		return model, model.showError("switching variant failed", err)
	}
	model.refreshTranscript()
	return model, nil
}

// latestMessageIndex returns the index of the last message with the
// given role, or -1.
func (model *Model) latestMessageIndex(role chat.Role) int {
	messages := model.controller.Messages()
	for index := len(messages) - 1; index >= 0; index-- {
		if messages[index].Role == role {
			return index
		}
	}
	return -1
}

func (model *Model) finishTurn(err error) (tea.Model, tea.Cmd) {
	model.streaming = false
	model.refreshTranscript()
	model.viewport.GotoBottom()

	var cmds []tea.Cmd
	if err != nil && !errors.Is(err, chat.ErrBusy) {
		var turnError *chat.TurnError
		if errors.As(err, &turnError) {
			cmds = append(cmds, model.showError("assistant error", errors.New(turnError.Message)))
		} else {
			cmds = append(cmds, model.showError("turn failed", err))
		}
	}
	cmds = append(cmds, model.cacheTranscriptCmd())
	return model, tea.Batch(cmds...)
}

func (model *Model) sessionsLoaded(msg sessionsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return model, model.showError("loading sessions failed", msg.err)
	}
	if msg.openPicker {
		model.picker = newSessionPicker(msg.sessions, msg.offline, model.theme, model.timeFormat)
	}
	return model, nil
}

func (model *Model) sessionOpened(msg sessionOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		model.restorePendingSend()
		return model, model.showError("opening session failed", msg.err)
	}
	if err := model.controller.Load(msg.conversation); err != nil {
		model.restorePendingSend()
		return model, model.showError("opening session failed", err)
	}
	model.editingIndex = -1
	if model.pendingSend == "" {
		model.composer.SetValue(msg.draft)
	}
	model.refreshTranscript()
	model.viewport.GotoBottom()
	if msg.offline {
		model.logger.Warn("server unreachable, showing cached transcript",
			"session", msg.conversation.ID)
	}
	if text := model.pendingSend; text != "" {
		model.pendingSend = ""
		return model, model.startSend(text)
	}
	return model, nil
}

// --- commands ---

func (model *Model) loadSessionsCmd(openPicker bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		sessions, err := model.client.ListSessions(ctx)
		if err == nil {
			if model.store != nil {
				if cacheErr := model.store.CacheSessions(ctx, sessions); cacheErr != nil {
					model.logger.Warn("session cache write failed", "error", cacheErr)
				}
			}
			return sessionsLoadedMsg{sessions: sessions, openPicker: openPicker}
		}

		// Server unreachable: fall back to the local cache.
		if model.store != nil {
			if cached, cacheErr := model.store.CachedSessions(ctx); cacheErr == nil && len(cached) > 0 {
				return sessionsLoadedMsg{sessions: cached, offline: true, openPicker: openPicker}
			}
		}
		return sessionsLoadedMsg{err: err}
	}
}

func (model *Model) openSessionCmd(uid string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		var draft string
		if model.store != nil {
			draft, _ = model.store.LoadDraft(ctx, uid)
		}

		serverMessages, err := model.client.ListMessages(ctx, uid)
		if err == nil {
			return sessionOpenedMsg{
				conversation: conversationFromServer(uid, serverMessages),
				draft:        draft,
			}
		}

		// Offline: serve the cached transcript if one exists.
		if model.store != nil {
			if cached, cacheErr := model.store.LoadTranscript(ctx, uid); cacheErr == nil && cached != nil {
				conversation := chat.Conversation{ID: uid}
				for index := range cached {
					message := cached[index]
					conversation.Messages = append(conversation.Messages, &message)
				}
				return sessionOpenedMsg{conversation: conversation, draft: draft, offline: true}
			}
		}
		return sessionOpenedMsg{err: err}
	}
}

func (model *Model) createSessionCmd() tea.Cmd {
	return func() tea.Msg {
		session, err := model.client.CreateSession(context.Background(), "")
		return sessionCreatedMsg{session: session, err: err}
	}
}

func (model *Model) renameSessionCmd(uid, title string) tea.Cmd {
	return func() tea.Msg {
		session, err := model.client.RenameSession(context.Background(), uid, title)
		return sessionRenamedMsg{session: session, err: err}
	}
}

func (model *Model) deleteSessionCmd(uid string) tea.Cmd {
	return func() tea.Msg {
		if err := model.client.DeleteSession(context.Background(), uid); err != nil {
			return sessionDeletedMsg{uid: uid, err: err}
		}
		if model.store != nil {
			if err := model.store.DeleteSession(context.Background(), uid); err != nil {
				model.logger.Warn("local session cleanup failed", "session", uid, "error", err)
			}
		}
		return sessionDeletedMsg{uid: uid}
	}
}

func (model *Model) cacheTranscriptCmd() tea.Cmd {
	if model.store == nil {
		return nil
	}
	uid := model.controller.ConversationID()
	if uid == "" {
		return nil
	}
	messages := model.controller.Messages()
	return func() tea.Msg {
		return transcriptCachedMsg{err: model.store.CacheTranscript(context.Background(), uid, messages)}
	}
}

func (model *Model) saveDraftCmd() tea.Cmd {
	if model.store == nil {
		return nil
	}
	uid := model.controller.ConversationID()
	if uid == "" {
		return nil
	}
	draft := model.composer.Value()
	return func() tea.Msg {
		if err := model.store.SaveDraft(context.Background(), uid, draft); err != nil {
			model.logger.Warn("draft save failed", "session", uid, "error", err)
		}
		return nil
	}
}

func (model *Model) clearDraftCmd() tea.Cmd {
	if model.store == nil {
		return nil
	}
	uid := model.controller.ConversationID()
	if uid == "" {
		return nil
	}
	return func() tea.Msg {
		if err := model.store.DeleteDraft(context.Background(), uid); err != nil {
			model.logger.Warn("draft clear failed", "session", uid, "error", err)
		}
		return nil
	}
}

func (model *Model) saveThinkingSettingCmd() tea.Cmd {
	if model.store == nil {
		return nil
	}
	value := strconv.FormatBool(model.showThinking)
	return func() tea.Msg {
		if err := model.store.SaveSetting(context.Background(), SettingShowThinking, value); err != nil {
			model.logger.Warn("setting save failed", "key", SettingShowThinking, "error", err)
		}
		return nil
	}
}

func (model *Model) fadeNoticeCmd() tea.Cmd {
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{}
	})
}

func (model *Model) showError(context string, err error) tea.Cmd {
	model.notice = context + ": " + err.Error()
	model.noticeLevel = slog.LevelError
	model.logger.Error(context, "error", err)
	return model.fadeNoticeCmd()
}

// conversationFromServer maps the persisted message history into the
// in-memory conversation. Tool-invocation rows are persisted
// separately server-side and are not part of the replayable dialogue,
// so they are skipped.
func conversationFromServer(uid string, serverMessages []api.SessionMessage) chat.Conversation {
	conversation := chat.Conversation{ID: uid}
	for _, serverMessage := range serverMessages {
		if serverMessage.ToolName != "" {
			continue
		}
		role := chat.RoleUser
		if serverMessage.Role == string(chat.RoleAssistant) {
			role = chat.RoleAssistant
		}
		conversation.Messages = append(conversation.Messages, &chat.Message{
			ID:      fmt.Sprintf("srv-%d", serverMessage.ID),
			Role:    role,
			Content: serverMessage.Content,
		})
	}
	return conversation
}

// --- layout and view ---

const composerHeight = 3

func (model *Model) resize(width, height int) {
	model.width = width
	model.height = height

	transcriptHeight := height - composerHeight - 3 // border + status line
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}
	if !model.ready {
		model.viewport = viewport.New(width, transcriptHeight)
		model.ready = true
	} else {
		model.viewport.Width = width
		model.viewport.Height = transcriptHeight
	}
	model.composer.SetWidth(width - 2)
	model.refreshTranscript()
	model.viewport.GotoBottom()
}

func (model *Model) updateComponents(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	model.composer, cmd = model.composer.Update(msg)
	cmds = append(cmds, cmd)
	model.viewport, cmd = model.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (model *Model) refreshTranscript() {
	if !model.ready {
		return
	}
	content := renderTranscript(model.controller.Messages(), model.theme, transcriptOptions{
		width:        model.viewport.Width - 1,
		showThinking: model.showThinking,
		streaming:    model.streaming,
		spinnerFrame: model.spinner.View(),
	})
	model.viewport.SetContent(content)
}

func (model *Model) View() string {
	if !model.ready {
		return "starting…"
	}

	if model.picker != nil {
		return model.picker.view(model.width, model.height-1) + "\n" + model.statusLine()
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, false).
		BorderForeground(model.theme.BorderColor).
		Width(model.width)

	return model.viewport.View() + "\n" +
		border.Render(model.composer.View()) + "\n" +
		model.statusLine()
}

func (model *Model) statusLine() string {
	if model.notice != "" {
		style := lipgloss.NewStyle().
			Foreground(model.theme.NoticeForeground).
			Background(model.theme.NoticeBackground).
			Width(model.width)
		return style.Render(" " + model.notice)
	}

	help := lipgloss.NewStyle().Foreground(model.theme.HelpText)
	switch {
	case model.picker != nil && model.picker.renaming:
		return help.Render(" renaming — Enter confirm · Esc cancel")
	case model.picker != nil:
		return help.Render(" Enter open · C-n new · C-r rename · C-x delete · Esc close")
	case model.streaming:
		return help.Render(" Esc stop · C-c quit")
	case model.editingIndex >= 0:
		return help.Render(" editing message — Enter resubmit · Esc cancel")
	default:
		return help.Render(" Enter send · C-r regenerate · C-e edit · C-←/→ variants · C-s sessions · C-t thinking · C-c quit")
	}
}
