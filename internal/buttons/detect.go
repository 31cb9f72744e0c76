package buttons

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/user/quickbuttons/internal/audio"
	"github.com/user/quickbuttons/internal/types"
)

// DetectFromFile proposes a button for a file dropped onto the panel or
// passed to "buttons import". The result has no id; pass it to Create.
func DetectFromFile(path string) (types.Button, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.Button{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return types.Button{}, fmt.Errorf("detect button: %w", err)
	}
	if info.IsDir() {
		return types.Button{}, fmt.Errorf("detect button: %s is a directory", path)
	}

	name := filepath.Base(abs)
	label := strings.TrimSuffix(name, filepath.Ext(name))
	ext := strings.ToLower(filepath.Ext(abs))

	switch {
	case ext == ".py" || ext == ".pyw":
		return types.Button{Type: types.TypePython, Label: label, Params: types.Params{"script": abs}}, nil
	case ext == ".sh":
		return shellButton(label, "bash "+quote(abs)), nil
	case ext == ".bat" || ext == ".cmd" || ext == ".exe":
		return shellButton(label, quote(abs)), nil
	case audio.Playable(abs):
		return types.Button{Type: types.TypeMusic, Label: label, Params: types.Params{"file": abs}}, nil
	case ext == ".txt" || ext == ".url":
		if u := firstURL(abs); u != "" {
			return types.Button{Type: types.TypeWebsite, Label: label, Params: types.Params{"url": u}}, nil
		}
	}
	return shellButton(label, openCommand(abs)), nil
}

func shellButton(label, command string) types.Button {
	return types.Button{Type: types.TypeShell, Label: label, Params: types.Params{"command": command}}
}

func quote(path string) string {
	if goruntime.GOOS == "windows" {
		return `"` + path + `"`
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func openCommand(path string) string {
	switch goruntime.GOOS {
	case "darwin":
		return "open " + quote(path)
	case "windows":
		return `start "" ` + quote(path)
	default:
		return "xdg-open " + quote(path)
	}
}

// firstURL returns the file's first non-empty line when it is an http(s)
// URL, also accepting the URL= line of a .url shortcut.
func firstURL(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "[InternetShortcut]" {
			continue
		}
		line = strings.TrimPrefix(line, "URL=")
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line
		}
		return ""
	}
	return ""
}
