package panel

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/fsnotify/fsnotify"

	"github.com/user/quickbuttons/internal/executor"
)

const (
	tickInterval = 500 * time.Millisecond
	debounce     = 150 * time.Millisecond
	// selfWriteWindow is how long after our own save a config event is
	// ignored.
	selfWriteWindow = time.Second
)

// lastSelfWrite tracks when the panel last saved the config itself.
var lastSelfWrite atomic.Int64

// MarkSelfWrite tells the watcher to skip the events of a save the panel
// just made.
func MarkSelfWrite() { lastSelfWrite.Store(time.Now().UnixMilli()) }

func isSelfWrite() bool {
	return time.Since(time.UnixMilli(lastSelfWrite.Load())) < selfWriteWindow
}

// renderers caches glamour renderers keyed by "style:width". A renderer is
// not safe for concurrent use, so each use holds the cache lock.
var (
	renderMu  sync.Mutex
	renderers = make(map[string]*glamour.TermRenderer)
)

func glamourRender(markdown, style string, width int) string {
	if width < 20 {
		width = 80
	}
	key := fmt.Sprintf("%s:%d", style, width)
	renderMu.Lock()
	defer renderMu.Unlock()
	r, ok := renderers[key]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return markdown
		}
		renderers[key] = r
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

func renderMarkdown(invocation, markdown, style string, width int) tea.Cmd {
	return func() tea.Msg {
		return renderedMsg{invocation: invocation, content: glamourRender(markdown, style, width)}
	}
}

// waitOutbox blocks until the executor has queued events and returns them
// all, so one Update turn applies them in order.
func waitOutbox(ob *executor.Outbox) tea.Cmd {
	return func() tea.Msg {
		if events := ob.Drain(); len(events) > 0 {
			return outboxMsg{events: events}
		}
		ev, err := ob.Next(context.Background())
		if err != nil {
			return nil
		}
		return outboxMsg{events: append([]executor.Event{ev}, ob.Drain()...)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// watchConfig watches the config directory for changes to the config file.
// The store writes through a temp file and a rename, so create and rename
// events count as changes. Rapid events are coalesced.
func watchConfig(watcher *fsnotify.Watcher, path string) tea.Cmd {
	name := filepath.Base(path)
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				time.Sleep(debounce)
			drain:
				for {
					select {
					case _, ok := <-watcher.Events:
						if !ok {
							break drain
						}
					default:
						break drain
					}
				}
				if isSelfWrite() {
					continue
				}
				return configChangedMsg{}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return errMsg{fmt.Errorf("watch config: %w", err)}
			}
		}
	}
}
