package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"todo-client/domain"
)

const columnWidthID = 6

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	idStyle     = lipgloss.NewStyle().Width(columnWidthID).Foreground(lipgloss.Color("8"))
	activeStyle = lipgloss.NewStyle()
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	descStyle   = lipgloss.NewStyle().Faint(true).PaddingLeft(columnWidthID + 4)
	statsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

func renderHeader(id domain.Identity) string {
	return headerStyle.Render("Tasks for " + displayName(id))
}

func renderIdentity(id domain.Identity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("id:"), id.ID)
	if id.Email != "" {
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("email:"), id.Email)
	}
	if id.Name != "" {
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("name:"), id.Name)
	}
	if id.CreatedAt != "" {
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("member since:"), id.CreatedAt)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTasks(list []domain.Task) string {
	if len(list) == 0 {
		return statsStyle.Render("No tasks")
	}
	rows := make([]string, 0, len(list))
	for _, t := range list {
		box, style := "[ ]", activeStyle
		if t.Completed {
			box, style = "[x]", doneStyle
		}
		row := idStyle.Render(strconv.FormatInt(t.ID, 10)) + box + " " + style.Render(t.Title)
		if d := t.DescriptionText(); d != "" {
			row += "\n" + descStyle.Render(d)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func renderStats(s domain.TaskStatistics) string {
	return statsStyle.Render(fmt.Sprintf("%d total, %d active, %d completed", s.Total, s.Active, s.Completed))
}

func renderReply(text string) string {
	return replyStyle.Render(text)
}

func renderError(err error) string {
	return errorStyle.Render("error: " + err.Error())
}
