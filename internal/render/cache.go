package render

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/glamour"
)

// rendererPool reuses renderers per option set.
// glamour.TermRenderer is not safe for concurrent Render calls, so each
// caller borrows its own instance.
type rendererPool struct {
	mu    sync.RWMutex
	pools map[Options]*sync.Pool
}

var globalPool = &rendererPool{
	pools: make(map[Options]*sync.Pool),
}

func (p *rendererPool) pool(opts Options) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[opts]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok := p.pools[opts]; ok {
		return pool
	}

	pool = &sync.Pool{
		New: func() any {
			renderer, err := newRenderer(opts)
			if err != nil {
				return nil
			}
			return renderer
		},
	}
	p.pools[opts] = pool
	return pool
}

func (p *rendererPool) get(opts Options) (*glamour.TermRenderer, error) {
	if r, ok := p.pool(opts).Get().(*glamour.TermRenderer); ok && r != nil {
		return r, nil
	}
	// New failed inside the pool; retry directly to surface the error
	return newRenderer(opts)
}

func (p *rendererPool) put(opts Options, renderer *glamour.TermRenderer) {
	if renderer != nil {
		p.pool(opts).Put(renderer)
	}
}

func newRenderer(opts Options) (*glamour.TermRenderer, error) {
	style, standard := resolveStyle(opts.Style)

	rendererOpts := []glamour.TermRendererOption{
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}
	if standard {
		rendererOpts = append(rendererOpts, glamour.WithStandardStyle(style))
	} else {
		rendererOpts = append(rendererOpts, glamour.WithStylePath(style))
	}
	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		rendererOpts = append(rendererOpts, glamour.WithPreservedNewLines())
	}

	renderer, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer, nil
}

// ClearCache drops all pooled renderers
func ClearCache() {
	globalPool.mu.Lock()
	globalPool.pools = make(map[Options]*sync.Pool)
	globalPool.mu.Unlock()
}

// CacheSize returns the number of distinct option sets seen
func CacheSize() int {
	globalPool.mu.RLock()
	defer globalPool.mu.RUnlock()
	return len(globalPool.pools)
}
