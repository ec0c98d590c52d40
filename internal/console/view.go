// Package console is the terminal display of the bridge: live metrics, a log
// pane and key bindings that steer the treadmill.
package console

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

// Verify View implements treadmill.Display
var _ treadmill.Display = (*View)(nil)

const maxLogLines = 500

type View struct {
	logger *log.Logger
	app    *tview.Application
	keys   *keyMap
	logs   <-chan string

	metricsPanel *tview.TextView
	statusPanel  *tview.TextView
	logView      *tview.TextView

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	latest treadmill.Status
	dirty  chan struct{}
}

// NewView builds the widgets. logs feeds the log pane and may be nil; quit is
// called when the user asks to leave. Bind must be called before Run.
func NewView(logger *log.Logger, logs <-chan string, quit func()) *View {
	if logger == nil {
		panic("View: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		logger: logger,
		app:    tview.NewApplication(),
		logs:   logs,
		ctx:    ctx,
		cancel: cancel,
		dirty:  make(chan struct{}, 1),
	}
	v.keys = &keyMap{quit: func() {
		v.logger.Println("View: quit requested")
		quit()
	}}
	v.layout()
	return v
}

func (v *View) layout() {
	help := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(helpText)

	v.metricsPanel = tview.NewTextView().SetDynamicColors(true)
	v.metricsPanel.SetBorder(true).SetTitle(" Metrics ")
	v.metricsPanel.SetText(formatMetrics(treadmill.Status{}))

	v.statusPanel = tview.NewTextView().SetDynamicColors(true)
	v.statusPanel.SetBorder(true).SetTitle(" Treadmill ")

	// Drawing is driven by the pumps, never by SetChangedFunc, so writes
	// after Stop cannot hang
	v.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(false).
		SetMaxLines(maxLogLines)
	v.logView.SetBorder(true).SetTitle(" Logs ")

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.metricsPanel, 0, 2, false).
		AddItem(v.statusPanel, 0, 1, false)

	body := tview.NewFlex().
		AddItem(left, 0, 1, false).
		AddItem(v.logView, 0, 1, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(help, 2, 0, false).
		AddItem(body, 0, 1, true)

	v.app.SetRoot(root, true)
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if v.keys.handle(event) {
			return nil
		}
		return event
	})
}

// Bind routes key presses to ctrl
func (v *View) Bind(ctrl Control) {
	v.keys.ctrl = ctrl
}

// Refresh records the status for the next draw without blocking the caller
func (v *View) Refresh(s treadmill.Status) {
	v.mu.Lock()
	v.latest = s
	v.mu.Unlock()
	select {
	case v.dirty <- struct{}{}:
	default:
	}
}

// Run blocks until Stop or a terminal error
func (v *View) Run() error {
	if v.keys.ctrl == nil {
		return fmt.Errorf("console: no control bound")
	}
	// the pumps are not waited for: a stopped app never drains their updates
	go_func_utils.SafeGo(v.logger, v.drawStatus)
	if v.logs != nil {
		go_func_utils.SafeGo(v.logger, v.drawLogs)
	}
	if err := v.app.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

func (v *View) Stop() {
	v.cancel()
	v.app.Stop()
}

func (v *View) drawStatus() {
	for {
		select {
		case <-v.ctx.Done():
			return
		case <-v.dirty:
		}
		v.mu.Lock()
		s := v.latest
		v.mu.Unlock()
		v.app.QueueUpdateDraw(func() {
			v.keys.sync(s)
			v.metricsPanel.SetText(formatMetrics(s))
			v.statusPanel.SetText(formatStatus(s))
		})
	}
}

func (v *View) drawLogs() {
	for {
		select {
		case <-v.ctx.Done():
			return
		case line, ok := <-v.logs:
			if !ok {
				return
			}
			stamped := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), line)
			v.app.QueueUpdateDraw(func() {
				fmt.Fprint(v.logView, stamped)
			})
		}
	}
}
