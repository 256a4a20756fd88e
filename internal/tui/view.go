package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/chat"
	"github.com/comigor/ragchat-go/internal/logger"
)

const helpText = "enter send • tab focus • ctrl+u upload • d delete • ctrl+r refresh • ctrl+l clear • ctrl+t theme • ctrl+c quit"

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	side := min(sidebarWidth, m.width/3)
	bodyH := m.height - headerHeight - footerHeight

	chatCol := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.renderInput())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(side, bodyH), chatCol)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	left := m.styles.Title.Render("RAG Chat")
	if id := m.chatSnap.ConversationID; id != "" {
		left += m.styles.Muted.Render("  " + truncate(id, 8))
	}
	right := m.connIndicator() + m.styles.Muted.Render("  "+string(m.theme))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return m.styles.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) connIndicator() string {
	switch m.chatSnap.Connection {
	case chat.ConnConnected:
		return m.styles.Connected.Render("● Connected")
	case chat.ConnDisconnected:
		return m.styles.Offline.Render("● Disconnected")
	default:
		return m.styles.Checking.Render("● Checking…")
	}
}

func (m Model) renderSidebar(width, height int) string {
	inner := max(width-4, 4)
	snap := m.docSnap
	var b strings.Builder

	b.WriteString(m.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(snap.Documents))))
	b.WriteString("\n")
	switch {
	case snap.Uploading():
		b.WriteString(m.spinner.View() + " Uploading...\n")
	case snap.Loading():
		b.WriteString(m.spinner.View() + " Loading...\n")
	}
	if snap.Error != "" {
		b.WriteString(m.styles.Banner.Width(inner).Render(snap.Error))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("esc to dismiss"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(snap.Documents) == 0 && !snap.Loading() {
		b.WriteString(m.styles.Muted.Width(inner).Render("No documents yet. Press ctrl+u to upload one."))
		b.WriteString("\n")
	}
	now := m.now()
	for i, d := range snap.Documents {
		name := fileIcon(d.Type) + " " + truncate(d.Filename, inner-5)
		if i == m.selected && m.focus == focusSidebar {
			b.WriteString(m.styles.Selected.Render("› " + name))
		} else {
			b.WriteString("  " + name)
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("  " + formatSize(d.Size) + " · " + formatAge(d.UploadTime.Time, now)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("Storage"))
	b.WriteString("\n")
	b.WriteString(usageBar(snap.UsagePercent(), inner, m.styles))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(usageLine(snap.TotalSize, snap.Quota, snap.UsagePercent())))

	style := m.styles.Sidebar
	if m.focus == focusSidebar {
		style = m.styles.SidebarBusy
	}
	return style.Width(max(width-2, 1)).Height(max(height-2, 1)).Render(b.String())
}

func (m Model) renderInput() string {
	style := m.styles.Input
	if m.focus == focusInput && m.mode == modeNormal {
		style = m.styles.InputFocus
	}
	return style.Render(m.input.View())
}

func (m Model) renderFooter() string {
	switch m.mode {
	case modeUpload:
		return m.styles.Prompt.Render(m.path.View())
	case modeConfirmDelete:
		return m.styles.Prompt.Render(fmt.Sprintf("Delete %s? (y/n)", m.pendingName()))
	}
	if m.status != "" {
		return m.styles.Footer.Render(m.status)
	}
	return m.styles.Footer.Render(truncate(helpText, max(m.width-2, 1)))
}

func (m Model) pendingName() string {
	for _, d := range m.docSnap.Documents {
		if d.ID == m.pending {
			return d.Filename
		}
	}
	return m.pending
}

// renderHistory formats the transcript for the viewport.
func (m Model) renderHistory(width int) string {
	var b strings.Builder
	for i, msg := range m.chatSnap.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		stamp := m.styles.Muted.Render(" " + msg.Timestamp.Local().Format("15:04"))
		if msg.Role == api.RoleUser {
			b.WriteString(m.styles.UserLabel.Render("You") + stamp + "\n")
			b.WriteString(m.styles.UserText.Width(max(width-2, 1)).Render(msg.Content))
			b.WriteString("\n")
			continue
		}
		b.WriteString(m.styles.BotLabel.Render("Assistant") + stamp + "\n")
		b.WriteString(safeRenderMarkdown(m.renderer, msg.Content))
		b.WriteString("\n")
		for _, s := range msg.Sources {
			b.WriteString(m.styles.Source.Render(fmt.Sprintf("📎 %s (%.2f)", s.Filename, s.RelevanceScore)))
			b.WriteString("\n")
		}
	}
	if m.sending {
		b.WriteString("\n" + m.spinner.View() + m.styles.Muted.Render(" Assistant is thinking..."))
	}
	return b.String()
}

// safeRenderMarkdown falls back to the raw text when glamour fails or panics.
func safeRenderMarkdown(r *glamour.TermRenderer, content string) (out string) {
	if r == nil {
		return content
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.L.Error("markdown render panic", "panic", rec)
			out = content
		}
	}()
	rendered, err := r.Render(content)
	if err != nil {
		logger.L.Warn("markdown render failed", "error", err)
		return content
	}
	return strings.Trim(rendered, "\n")
}
