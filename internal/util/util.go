package util

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var IsDebug bool

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45B7D1")).
			Italic(true)

	exampleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)
)

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// ErrorHandler returns a stylized error message. In debug mode the full error
// chain is rendered, including wrapped stack traces.
func ErrorHandler(err error) string {
	if IsDebug {
		styledHeader := errorStyle.Render("DEBUG ERROR")
		styledError := debugErrorStyle.Render(fmt.Sprintf("%+v", err))
		return fmt.Sprintf("%s\n%s", styledHeader, styledError)
	}

	styledError := errorStyle.Render(fmt.Sprintf("✗ %v", err))
	styledHint := warningStyle.Render("run with -debug to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// invalidDirChars matches the characters the target filesystem refuses in a
// directory name.
var invalidDirChars = func() *regexp.Regexp {
	if runtime.GOOS == "windows" {
		return regexp.MustCompile(`[\\/:*?"<>|]`)
	}
	return regexp.MustCompile(`[/:]`)
}()

// SanitizeDirName replaces invalid path characters with underscores so a
// series title can name its download directory on any OS.
func SanitizeDirName(name string) string {
	return invalidDirChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

// Helper prints the help message
func Helper() {
	title := titleStyle.Render("aniworld - batch episode downloader")

	usage := helpStyle.Render("Usage:")
	usageExamples := []string{
		"  aniworld " + exampleStyle.Render("[listing URL...]"),
		"  aniworld " + optionStyle.Render("-start 3 -end 5") + " " + exampleStyle.Render("https://host/anime/123-title"),
		"  aniworld " + optionStyle.Render("-file URLs.txt"),
	}

	options := helpStyle.Render("Options:")
	optionsList := []string{
		"  " + optionStyle.Render("-start N") + "   first episode of the window (default: from the beginning)",
		"  " + optionStyle.Render("-end N") + "     last episode of the window (default: through the end)",
		"  " + optionStyle.Render("-dir PATH") + "  download root directory (default: Downloads)",
		"  " + optionStyle.Render("-file PATH") + " read listing URLs from a file, one per line",
		"  " + optionStyle.Render("-debug") + "     enable debug logging",
		"  " + optionStyle.Render("-help, -h") + "  show this help message",
	}

	fmt.Println(title)
	fmt.Println()
	fmt.Println(usage)
	for _, line := range usageExamples {
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Println(options)
	for _, line := range optionsList {
		fmt.Println(line)
	}
	fmt.Println()
}
