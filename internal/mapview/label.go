package mapview

import (
	"sync"

	"bus-tracker/internal/geo"

	"github.com/google/uuid"
)

// Label is a text overlay pinned to a geographic anchor, used for stop names.
type Label struct {
	id     string
	text   string
	anchor geo.Point

	mu sync.Mutex
	m  Map
	at Pixel
}

func NewLabel(text string, anchor geo.Point) *Label {
	return &Label{id: uuid.NewString(), text: text, anchor: anchor}
}

func (l *Label) ID() string        { return l.id }
func (l *Label) Text() string      { return l.text }
func (l *Label) Anchor() geo.Point { return l.anchor }

func (l *Label) Attach(m Map) {
	l.mu.Lock()
	l.m = m
	l.mu.Unlock()
	m.AddOverlay(l)
}

func (l *Label) Reposition(px Pixel) {
	l.mu.Lock()
	m := l.m
	l.at = px
	l.mu.Unlock()
	if m != nil {
		m.DrawLabel(l.id, l.text, px)
	}
}

func (l *Label) Detach() {
	l.mu.Lock()
	m := l.m
	l.m = nil
	l.mu.Unlock()
	if m != nil {
		m.RemoveOverlay(l)
	}
}

// Position is the last screen position the label was drawn at.
func (l *Label) Position() Pixel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.at
}
