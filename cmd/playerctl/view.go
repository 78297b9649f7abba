package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7d56f4"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(12)
	currentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04b575"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04b575"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff0000")).
			Bold(true)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func formatSeconds(v *structpb.Value) string {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return "--:--"
	}
	s := int(n.NumberValue)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func renderTrack(t *structpb.Struct) string {
	f := t.GetFields()
	name := f["name"].GetStringValue()
	if artist := f["artist"].GetStringValue(); artist != "" {
		name += " - " + artist
	}
	return fmt.Sprintf("%s %s", name, mutedStyle.Render("("+strings.ToLower(f["kind"].GetStringValue())+")"))
}

func renderPlayback(pb *structpb.Struct) string {
	f := pb.GetFields()

	state := f["state"].GetStringValue()
	if f["unavailable"].GetBoolValue() {
		state += " " + errorStyle.Render("(unavailable)")
	}
	volume := fmt.Sprintf("%.0f%%", f["volume"].GetNumberValue()*100)
	if f["muted"].GetBoolValue() {
		volume += " " + mutedStyle.Render("(muted)")
	}

	lines := []string{
		row("State", state),
		row("Position", formatSeconds(f["position"])+" / "+formatSeconds(f["duration"])),
		row("Volume", volume),
	}

	tracks := f["tracks"].GetListValue().GetValues()
	if len(tracks) == 0 {
		lines = append(lines, mutedStyle.Render("Playlist is empty"))
		return strings.Join(lines, "\n")
	}

	current := int(f["current_index"].GetNumberValue())
	lines = append(lines, "", titleStyle.Render("Playlist"))
	for i, v := range tracks {
		line := fmt.Sprintf("%2d. %s", i, renderTrack(v.GetStructValue()))
		if i == current {
			line = currentStyle.Render("▶ ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderMood(m *structpb.Struct) string {
	f := m.GetFields()
	emotion := f["emotion"].GetStringValue()
	out := fmt.Sprintf("%s %.0f%%", emotion, f["intensity"].GetNumberValue()*100)
	if bpm := f["bpm"].GetNumberValue(); bpm > 0 {
		out += fmt.Sprintf(" %.0f bpm", bpm)
	}
	if src := f["source"].GetStringValue(); src != "" {
		out += " " + mutedStyle.Render("via "+src)
	}
	return out
}

func renderStatus(s *structpb.Struct) string {
	f := s.GetFields()
	lines := []string{
		titleStyle.Render("moodbox"),
		row("Session", f["session_id"].GetStringValue()),
		row("Phase", f["phase"].GetStringValue()),
		row("Mood", renderMood(f["mood"].GetStructValue())),
		row("Watchers", fmt.Sprintf("%.0f", f["subscribers"].GetNumberValue())),
		"",
		renderPlayback(f["playback"].GetStructValue()),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderFrame(fr *structpb.Struct) string {
	f := fr.GetFields()
	primary := f["palette"].GetStructValue().GetFields()["primary"].GetStructValue().GetFields()["hex"].GetStringValue()
	swatch := lipgloss.NewStyle().Background(lipgloss.Color(primary)).Render("   ")
	return fmt.Sprintf("%s %s intensity=%.2f bpm=%.0f", swatch, f["emotion"].GetStringValue(),
		f["intensity"].GetNumberValue(), f["bpm"].GetNumberValue())
}

func renderNotification(msg *structpb.Struct) string {
	f := msg.GetFields()
	kind := f["kind"].GetStringValue()
	header := mutedStyle.Render(fmt.Sprintf("#%.0f %s", f["sequence_no"].GetNumberValue(), kind))
	if event := f["event"].GetStringValue(); event != "" {
		header += " " + event
	}

	payload := f["payload"].GetStructValue()
	switch kind {
	case "initial":
		return header + "\n" + renderStatus(payload)
	case "state":
		return header + "\n" + renderPlayback(payload)
	case "mood":
		return header + " " + renderMood(payload)
	case "frame":
		return header + " " + renderFrame(payload)
	case "error":
		return header + " " + errorStyle.Render(payload.GetFields()["message"].GetStringValue())
	default:
		return header
	}
}
