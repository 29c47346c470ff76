package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	chatWidth := width - 4
	if chatWidth > maxChatWidth {
		chatWidth = maxChatWidth
	}
	if chatWidth < 20 {
		chatWidth = 20
	}

	// title, weather, input box and hint
	chrome := 8
	m.viewport.Width = chatWidth
	m.viewport.Height = max(height-chrome, 3)
	m.input.Width = chatWidth - 6

	style := "dark"
	if !lipgloss.HasDarkBackground() {
		style = "light"
	}
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(chatWidth-4),
	)
	m.refresh()
}

func (m *Model) renderMarkdown(src string) string {
	if m.renderer == nil {
		return src
	}
	out, err := m.renderer.Render(src)
	if err != nil {
		return src
	}
	return strings.TrimRight(out, "\n")
}

func (m *Model) renderEntries() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(userLabelStyle.Render(m.deps.Session.UserName()))
			b.WriteString("\n")
			b.WriteString(userMsgStyle.Render(e.text))
		case entryAssistant:
			b.WriteString(assistantLabelStyle.Render("Asistan"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(e.text))
		case entryNotice:
			b.WriteString(noticeStyle.Render(e.text))
		case entryError:
			b.WriteString(errorStyle.Render(e.text))
		}
	}
	return b.String()
}

func (m *Model) weatherLine() string {
	if m.weather == nil {
		return weatherStyle.Render("🌡️ hava durumu alınıyor...")
	}
	w := m.weather
	return weatherStyle.Render(fmt.Sprintf("📍 %s  🌡️ %.1f°C %s  💧 %%%.0f  💨 %.0f km/s",
		w.City, w.Temperature, w.Description, w.Humidity, w.WindSpeed))
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.weatherLine())
	b.WriteString("\n\n")

	if !m.chatting() {
		b.WriteString(hintStyle.Render("👋 Hoş Geldiniz! Sistemi başlatmak için lütfen adınızı girin."))
		b.WriteString("\n")
		if len(m.entries) > 0 {
			b.WriteString(m.renderEntries())
			b.WriteString("\n")
		}
	} else {
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
	}

	status := ""
	switch {
	case m.recording:
		status = m.spinner.View() + " kaydediliyor"
	case m.loading:
		status = m.spinner.View() + " düşünüyor"
	}
	if status != "" {
		b.WriteString(hintStyle.Render(status))
		b.WriteString("\n")
	}

	b.WriteString(inputBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter gönder • ctrl+r sesli komut • pgup/pgdn kaydır • esc çıkış"))
	return b.String()
}
