package apiserver

import (
	"sync"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/infrastructure/http/webserver"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
)

// page is the server-side stand-in for an API client's document. It has no
// selector; the client reports its colour scheme explicitly.
type page struct {
	document *webserver.Document
	signal   *webserver.ClientHintSignal
}

// documents holds the headless pages of API clients, keyed by document id
type documents struct {
	mu    sync.Mutex
	pages map[string]*page
}

func newDocuments() *documents {
	return &documents{pages: make(map[string]*page)}
}

func (d *documents) get(id string) *page {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pages[id]
	if !ok {
		p = &page{
			document: webserver.NewDocument(false),
			signal:   webserver.NewClientHintSignal(theme.SystemUnknown),
		}
		d.pages[id] = p
	}
	return p
}

func (d *documents) ports(id string) outbound.DocumentPorts {
	p := d.get(id)
	return outbound.DocumentPorts{
		Presentation: p.document,
		Signal:       p.signal,
	}
}

func (d *documents) forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pages, id)
}

// prune drops pages whose theme session is gone and returns how many
func (d *documents) prune(alive func(id string) bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id := range d.pages {
		if !alive(id) {
			delete(d.pages, id)
			removed++
		}
	}
	return removed
}

func (d *documents) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pages)
}
