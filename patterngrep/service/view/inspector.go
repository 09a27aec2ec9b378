package view

import (
	"errors"
	"sync"

	"github.com/go-appsec/patterngrep/patterngrep/service/store"
)

// ErrNoSelection is returned by Inspector.Find when no row is selected or the
// selected row was dropped by a clear.
var ErrNoSelection = errors.New("no exchange selected")

// Pane is one rendered text area with its cursor and selection.
type Pane struct {
	text      string
	cursor    int
	selection Span
	selected  bool
}

// Display replaces the text and moves the cursor to the start.
func (p *Pane) Display(text string) {
	p.text = text
	p.cursor = 0
	p.selection = Span{}
	p.selected = false
}

// Search selects the first case-insensitive occurrence of needle and moves
// the cursor to its end. The pane is left unchanged when nothing is found.
func (p *Pane) Search(needle string) (Span, bool) {
	span, ok := Find(p.text, needle)
	if ok {
		p.selection = span
		p.selected = true
		p.cursor = span.End
	}
	return span, ok
}

func (p Pane) Text() string { return p.text }

func (p Pane) Cursor() int { return p.cursor }

// Selection returns the selected range, if any.
func (p Pane) Selection() (Span, bool) { return p.selection, p.selected }

// Source is read access to captured exchanges.
type Source interface {
	GetAt(generation uint64, index int) (*store.Exchange, error)
	Generation() uint64
}

// Selection describes the row currently shown by an Inspector.
type Selection struct {
	Generation   uint64
	Index        int
	Row          Row
	RequestText  string
	ResponseText string
}

// Inspector holds the operator's selected row and its two rendered panes.
type Inspector struct {
	src Source

	mu         sync.Mutex
	selected   bool
	generation uint64
	index      int
	row        Row
	panes      [2]Pane
}

// NewInspector creates an inspector reading from src.
func NewInspector(src Source) *Inspector {
	return &Inspector{src: src}
}

// Select loads the row at index as observed at generation and renders both
// sides. A stale or out-of-range index returns store.ErrIndexOutOfRange and
// keeps the previous selection.
func (in *Inspector) Select(generation uint64, index int) (Selection, error) {
	ex, err := in.src.GetAt(generation, index)
	if err != nil {
		return Selection{}, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	in.selected = true
	in.generation = generation
	in.index = index
	in.row = RowSummary(ex)
	in.panes[SideRequest].Display(FullText(ex, SideRequest))
	in.panes[SideResponse].Display(FullText(ex, SideResponse))
	return in.selectionLocked(), nil
}

// Current returns the selection, or false when nothing is selected.
func (in *Inspector) Current() (Selection, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.validLocked() {
		return Selection{}, false
	}
	return in.selectionLocked(), true
}

// FindResult is the outcome of one search in the selected row. Match and
// Context are copied from the pane the search ran against.
type FindResult struct {
	Index   int
	Side    Side
	Span    Span
	Found   bool
	Match   string
	Context string // line containing the match
}

// Find searches the selected row's text on side. The search and the returned
// text come from the same selection even if a clear races with it.
func (in *Inspector) Find(side Side, needle string) (FindResult, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.validLocked() {
		return FindResult{}, ErrNoSelection
	}
	res := FindResult{Index: in.index, Side: side}
	pane := &in.panes[side]
	res.Span, res.Found = pane.Search(needle)
	if res.Found {
		res.Match = pane.text[res.Span.Start:res.Span.End]
		res.Context = lineAround(pane.text, res.Span)
	}
	return res, nil
}

// Pane returns a copy of the pane for side.
func (in *Inspector) Pane(side Side) Pane {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.panes[side]
}

// Invalidate drops a selection made before the store reached generation.
// Late notifications for older generations leave newer selections alone.
func (in *Inspector) Invalidate(generation uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.selected && in.generation < generation {
		in.resetLocked()
	}
}

// validLocked reports whether a selection exists and still refers to live
// data, dropping it otherwise. Caller must hold mu.
func (in *Inspector) validLocked() bool {
	if !in.selected {
		return false
	} else if in.generation != in.src.Generation() {
		in.resetLocked()
		return false
	}
	return true
}

func (in *Inspector) resetLocked() {
	in.selected = false
	in.generation = 0
	in.index = 0
	in.row = Row{}
	in.panes[SideRequest].Display("")
	in.panes[SideResponse].Display("")
}

func (in *Inspector) selectionLocked() Selection {
	return Selection{
		Generation:   in.generation,
		Index:        in.index,
		Row:          in.row,
		RequestText:  in.panes[SideRequest].Text(),
		ResponseText: in.panes[SideResponse].Text(),
	}
}
