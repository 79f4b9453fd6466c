package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/baaaaaaaka/tunneler/internal/config"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

var errQuit = errors.New("quit")

var newScreen = tcell.NewScreen

// Engine is the part of *tunnel.Engine the dashboard drives.
type Engine interface {
	Config() config.Config
	SetConfig(config.Config)
	ActiveTunnels(ctx context.Context) ([]tunnel.Active, error)
	Start(ctx context.Context, name string) ([]tunnel.StartResult, error)
	Stop(ctx context.Context, name string) ([]tunnel.StopResult, error)
}

type Options struct {
	Engine Engine
	// Reload re-reads the configuration for the r key. Nil disables reload.
	Reload          func(context.Context) (config.Config, error)
	RefreshInterval time.Duration
	Version         string
}

type uiEvent struct {
	when time.Time
	kind string
}

func (e *uiEvent) When() time.Time { return e.when }

type rect struct {
	y int
	x int
	h int
	w int
}

type listState struct {
	selected int
	scroll   int
}

type itemKind string

const (
	kindTunnel  itemKind = "tunnel"
	kindGroup   itemKind = "group"
	kindUnknown itemKind = "unknown"
)

type item struct {
	name    string
	kind    itemKind
	active  bool
	detail  string
	started time.Time
}

type uiState struct {
	items      []item
	list       listState
	loadError  error
	message    string
	messageErr bool
}

type row struct {
	label    string
	selected bool
	style    tcell.Style
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Engine == nil {
		return errors.New("engine is required")
	}

	state := &uiState{}
	refreshState(ctx, state, opts)

	screen, err := newScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	done := make(chan struct{})
	defer close(done)

	if opts.RefreshInterval > 0 {
		interval := opts.RefreshInterval
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					screen.PostEvent(&uiEvent{when: time.Now(), kind: "refresh"})
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			screen.PostEvent(&uiEvent{when: time.Now(), kind: "quit"})
		case <-done:
		}
	}()

	for {
		draw(screen, state, opts)
		ev := screen.PollEvent()

		switch tev := ev.(type) {
		case nil:
			return ctx.Err()
		case *uiEvent:
			switch tev.kind {
			case "quit":
				return ctx.Err()
			case "refresh":
				refreshState(ctx, state, opts)
			}
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			if err := handleKey(ctx, screen, state, opts, tev); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func handleKey(ctx context.Context, screen tcell.Screen, state *uiState, opts Options, ev *tcell.EventKey) error {
	_, h := screen.Size()
	viewH := max(0, h-3)

	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyESC:
		return errQuit
	case tcell.KeyEnter:
		toggleSelected(ctx, screen, state, opts)
		return nil
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return errQuit
		case ' ':
			toggleSelected(ctx, screen, state, opts)
			return nil
		case 's':
			act(ctx, screen, state, opts, true)
			return nil
		case 'x':
			act(ctx, screen, state, opts, false)
			return nil
		case 'r', 'R':
			reload(ctx, state, opts)
			return nil
		}
	}
	applyListNavigation(&state.list, len(state.items), viewH, ev)
	return nil
}

func selectedItem(state *uiState) (item, bool) {
	if state.list.selected < 0 || state.list.selected >= len(state.items) {
		return item{}, false
	}
	return state.items[state.list.selected], true
}

func toggleSelected(ctx context.Context, screen tcell.Screen, state *uiState, opts Options) {
	it, ok := selectedItem(state)
	if !ok {
		return
	}
	act(ctx, screen, state, opts, !it.active)
}

func act(ctx context.Context, screen tcell.Screen, state *uiState, opts Options, start bool) {
	it, ok := selectedItem(state)
	if !ok {
		return
	}
	if it.kind == kindUnknown {
		state.message, state.messageErr = "unmanaged forward; stop it outside tunneler", true
		return
	}

	verb := "stopping"
	if start {
		verb = "starting"
	}
	state.message, state.messageErr = verb+" "+it.name+"...", false
	draw(screen, state, opts)

	if start {
		results, err := opts.Engine.Start(ctx, it.name)
		state.message, state.messageErr = summarizeStart(results, err)
	} else {
		results, err := opts.Engine.Stop(ctx, it.name)
		state.message, state.messageErr = summarizeStop(results, err)
	}
	refreshStatePreserveSelection(ctx, state, opts)
}

func reload(ctx context.Context, state *uiState, opts Options) {
	if opts.Reload != nil {
		cfg, err := opts.Reload(ctx)
		if err != nil {
			state.message, state.messageErr = "reload failed: "+firstLine(err.Error()), true
			return
		}
		opts.Engine.SetConfig(cfg)
		state.message, state.messageErr = "configuration reloaded", false
	}
	refreshStatePreserveSelection(ctx, state, opts)
}

func summarizeStart(results []tunnel.StartResult, err error) (string, bool) {
	if err != nil {
		return firstLine(err.Error()), true
	}
	parts := make([]string, 0, len(results))
	failed := false
	for _, r := range results {
		if r.OK() {
			parts = append(parts, fmt.Sprintf("%s:%d OK", r.Name, r.LocalPort))
			continue
		}
		failed = true
		parts = append(parts, fmt.Sprintf("%s FAIL (%s)", r.Name, r.Status))
	}
	return strings.Join(parts, "; "), failed
}

func summarizeStop(results []tunnel.StopResult, err error) (string, bool) {
	if err != nil {
		return firstLine(err.Error()), true
	}
	parts := make([]string, 0, len(results))
	failed := false
	for _, r := range results {
		if r.OK {
			parts = append(parts, r.Name+" OK")
			continue
		}
		failed = true
		parts = append(parts, r.Name+" FAIL")
	}
	return strings.Join(parts, "; "), failed
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func refreshState(ctx context.Context, state *uiState, opts Options) {
	active, err := opts.Engine.ActiveTunnels(ctx)
	state.loadError = err
	state.items = buildItems(opts.Engine.Config(), active)
	state.list.clamp(len(state.items))
}

func refreshStatePreserveSelection(ctx context.Context, state *uiState, opts Options) {
	prev, ok := selectedItem(state)
	refreshState(ctx, state, opts)
	if !ok {
		return
	}
	for i, it := range state.items {
		if it.name == prev.name && it.kind == prev.kind {
			state.list.selected = i
			return
		}
	}
}

// buildItems lists tunnels, then groups, then unknown forwards. A group is
// active when all of its members are.
func buildItems(cfg config.Config, active []tunnel.Active) []item {
	byName := map[string]tunnel.Active{}
	var unknown []tunnel.Active
	for _, a := range active {
		if a.Name == tunnel.UnknownName {
			unknown = append(unknown, a)
			continue
		}
		if _, seen := byName[a.Name]; !seen {
			byName[a.Name] = a
		}
	}

	items := make([]item, 0, len(cfg.Tunnels)+len(cfg.Groups)+len(unknown))
	for _, name := range cfg.TunnelNames() {
		t := cfg.Tunnels[name]
		it := item{
			name:   name,
			kind:   kindTunnel,
			detail: fmt.Sprintf(":%d -> %s:%d via %s@%s", t.LocalPort, config.HostFor(t), t.RemotePort, cfg.UserFor(t), t.Server),
		}
		if a, ok := byName[name]; ok {
			it.active = true
			it.started = a.Observed.Started
			if a.Observed.LocalPort != 0 && a.Observed.LocalPort != t.LocalPort {
				it.detail = fmt.Sprintf(":%d (configured %d) -> %s:%d via %s@%s",
					a.Observed.LocalPort, t.LocalPort, config.HostFor(t), t.RemotePort, cfg.UserFor(t), t.Server)
			}
		}
		items = append(items, it)
	}

	for _, name := range cfg.GroupNames() {
		g := cfg.Groups[name]
		members := make([]string, 0, len(g.Members))
		all := len(g.Members) > 0
		for _, m := range g.Members {
			members = append(members, m.String())
			if _, ok := byName[m.Tunnel]; !ok {
				all = false
			}
		}
		items = append(items, item{
			name:   name,
			kind:   kindGroup,
			active: all,
			detail: "[" + strings.Join(members, " ") + "]",
		})
	}

	sort.SliceStable(unknown, func(i, j int) bool {
		return unknown[i].Observed.LocalPort < unknown[j].Observed.LocalPort
	})
	for _, a := range unknown {
		items = append(items, item{
			name:    tunnel.UnknownName,
			kind:    kindUnknown,
			active:  true,
			detail:  a.Observed.String(),
			started: a.Observed.Started,
		})
	}
	return items
}

func itemLabel(it item, nameW int) string {
	marker := "○"
	switch {
	case it.kind == kindUnknown:
		marker = "?"
	case it.active:
		marker = "●"
	}
	label := fmt.Sprintf("%s %s  %-5s  %s", marker, padRight(it.name, nameW), it.kind, it.detail)
	if it.active && !it.started.IsZero() {
		label += "  up since " + humanize.Time(it.started)
	}
	return label
}

func draw(screen tcell.Screen, state *uiState, opts Options) {
	screen.Clear()
	w, h := screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	box := rect{y: 0, x: 0, h: max(0, h-1), w: w}
	title := "tunneler " + versionLabel(opts.Version)
	drawBox(screen, box, title)

	viewH := max(0, box.h-2)
	state.list.ensureVisible(viewH, len(state.items))
	drawList(screen, box, renderRows(state, viewH))

	drawStatus(screen, w, h, state)
	screen.Show()
}

func renderRows(state *uiState, viewH int) []row {
	if len(state.items) == 0 {
		msg := "no tunnels configured"
		if state.loadError != nil {
			msg = "error: " + firstLine(state.loadError.Error())
		}
		return []row{{label: msg, style: tcell.StyleDefault.Dim(true)}}
	}

	nameW := 0
	for _, it := range state.items {
		nameW = max(nameW, displayWidth(it.name))
	}

	end := min(len(state.items), state.list.scroll+viewH)
	rows := make([]row, 0, viewH)
	for i := state.list.scroll; i < end; i++ {
		it := state.items[i]
		style := tcell.StyleDefault
		switch {
		case it.kind == kindUnknown:
			style = style.Foreground(tcell.ColorYellow)
		case it.active:
			style = style.Foreground(tcell.ColorGreen)
		default:
			style = style.Dim(true)
		}
		rows = append(rows, row{
			label:    itemLabel(it, nameW),
			selected: i == state.list.selected,
			style:    style,
		})
	}
	return rows
}

const keyHints = "j/k move  enter toggle  s start  x stop  r reload  q quit"

func drawStatus(screen tcell.Screen, w, h int, state *uiState) {
	style := tcell.StyleDefault.Reverse(true)
	text := keyHints
	if state.loadError != nil && state.message == "" {
		text = "error: " + firstLine(state.loadError.Error())
		style = style.Foreground(tcell.ColorRed)
	}
	if state.message != "" {
		text = state.message
		if state.messageErr {
			style = style.Foreground(tcell.ColorRed)
		}
	}
	writeText(screen, 0, h-1, padRight(truncate(text, w), w), style)
}

func applyListNavigation(state *listState, nItems int, viewH int, ev *tcell.EventKey) {
	if nItems <= 0 {
		state.selected = 0
		state.scroll = 0
		return
	}
	switch ev.Key() {
	case tcell.KeyUp:
		state.selected = clamp(state.selected-1, 0, nItems-1)
	case tcell.KeyDown:
		state.selected = clamp(state.selected+1, 0, nItems-1)
	case tcell.KeyPgUp:
		state.selected = clamp(state.selected-max(1, viewH), 0, nItems-1)
	case tcell.KeyPgDn:
		state.selected = clamp(state.selected+max(1, viewH), 0, nItems-1)
	case tcell.KeyHome:
		state.selected = 0
	case tcell.KeyEnd:
		state.selected = nItems - 1
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'k', 'K':
			state.selected = clamp(state.selected-1, 0, nItems-1)
		case 'j', 'J':
			state.selected = clamp(state.selected+1, 0, nItems-1)
		case 'g':
			state.selected = 0
		case 'G':
			state.selected = nItems - 1
		default:
			return
		}
	default:
		return
	}
	state.ensureVisible(viewH, nItems)
}

func (s *listState) clamp(nItems int) {
	if nItems <= 0 {
		s.selected = 0
		s.scroll = 0
		return
	}
	s.selected = clamp(s.selected, 0, nItems-1)
	s.scroll = clamp(s.scroll, 0, max(0, nItems-1))
}

func (s *listState) ensureVisible(viewH int, nItems int) {
	if nItems <= 0 || viewH <= 0 {
		s.scroll = 0
		return
	}
	maxScroll := max(0, nItems-viewH)
	if s.selected < s.scroll {
		s.scroll = s.selected
	} else if s.selected >= s.scroll+viewH {
		s.scroll = s.selected - viewH + 1
	}
	s.scroll = clamp(s.scroll, 0, maxScroll)
}

func drawBox(screen tcell.Screen, r rect, title string) {
	if r.w < 2 || r.h < 2 {
		return
	}
	style := tcell.StyleDefault.Bold(true)
	for x := r.x + 1; x < r.x+r.w-1; x++ {
		screen.SetContent(x, r.y, tcell.RuneHLine, nil, style)
		screen.SetContent(x, r.y+r.h-1, tcell.RuneHLine, nil, style)
	}
	for y := r.y + 1; y < r.y+r.h-1; y++ {
		screen.SetContent(r.x, y, tcell.RuneVLine, nil, style)
		screen.SetContent(r.x+r.w-1, y, tcell.RuneVLine, nil, style)
	}
	screen.SetContent(r.x, r.y, tcell.RuneULCorner, nil, style)
	screen.SetContent(r.x+r.w-1, r.y, tcell.RuneURCorner, nil, style)
	screen.SetContent(r.x, r.y+r.h-1, tcell.RuneLLCorner, nil, style)
	screen.SetContent(r.x+r.w-1, r.y+r.h-1, tcell.RuneLRCorner, nil, style)

	title = truncate(" "+title+" ", max(0, r.w-2))
	titleX := r.x + 1 + max(0, (r.w-2-displayWidth(title))/2)
	writeText(screen, titleX, r.y, title, tcell.StyleDefault.Reverse(true).Bold(true))
}

func drawList(screen tcell.Screen, r rect, rows []row) {
	if r.h < 3 || r.w < 4 {
		return
	}
	innerH := r.h - 2
	innerW := r.w - 2
	for i := 0; i < innerH; i++ {
		y := r.y + 1 + i
		if i >= len(rows) {
			writeText(screen, r.x+1, y, padRight("", innerW), tcell.StyleDefault)
			continue
		}
		style := rows[i].style
		if rows[i].selected {
			style = style.Reverse(true).Bold(true)
		}
		writeText(screen, r.x+1, y, padRight(truncate(rows[i].label, innerW), innerW), style)
	}
}

func writeText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	offset := 0
	for _, ch := range text {
		width := runewidth.RuneWidth(ch)
		if width == 0 {
			continue
		}
		screen.SetContent(x+offset, y, ch, nil, style)
		offset += width
	}
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if displayWidth(s) <= width {
		return s
	}
	var buf strings.Builder
	curWidth := 0
	for _, ch := range s {
		chWidth := runewidth.RuneWidth(ch)
		if curWidth+chWidth > width {
			break
		}
		buf.WriteRune(ch)
		curWidth += chWidth
	}
	return buf.String()
}

func padRight(s string, width int) string {
	if displayWidth(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-displayWidth(s))
}

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

func versionLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "dev") {
		return "dev"
	}
	if strings.HasPrefix(strings.ToLower(v), "v") {
		return v
	}
	return "v" + v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
