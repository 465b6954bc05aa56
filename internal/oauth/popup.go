// ABOUTME: Popup implementations: system browser and plain URL printing
// ABOUTME: The browser cannot be closed remotely, so Close is a no-op there
package oauth

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// BrowserPopup opens the authorize URL in the system browser
type BrowserPopup struct{}

func (BrowserPopup) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func (BrowserPopup) Close() error { return nil }

// PrintPopup writes the URL for the user to open by hand
type PrintPopup struct {
	Out io.Writer
}

func (p PrintPopup) Open(url string) error {
	_, err := fmt.Fprintf(p.Out, "Open this URL to authorize Notion:\n  %s\n", url)
	return err
}

func (PrintPopup) Close() error { return nil }
