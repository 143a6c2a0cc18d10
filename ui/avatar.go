package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
)

// avatar is the instructor shown next to the board. It only moves while
// the lecture is being spoken.
type avatar struct {
	spinner spinner.Model
	playing bool
}

func newAvatar() avatar {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"(o_o)", "(O_o)", "(o_O)", "(O_O)"},
		FPS:    spinner.Dot.FPS,
	}
	s.Style = aiStyle
	return avatar{spinner: s}
}

func (a avatar) View() string {
	face := "(-_-)"
	if a.playing {
		face = a.spinner.View()
	}
	return face + "\n" + subtleStyle.Render("LIVE INSTRUCTOR")
}
