package console

// DefaultProxyPoolSize bounds the free list of the render proxy pool.
const DefaultProxyPoolSize = 256

// Proxy is a pooled row handle temporarily bound to a visible entry.
type Proxy struct {
	slot  int
	entry *Entry
}

// Slot identifies the proxy within its pool.
func (p *Proxy) Slot() int { return p.slot }

// Entry returns the entry the proxy is bound to, or nil when released.
func (p *Proxy) Entry() *Entry { return p.entry }

// ProxyPool hands out render proxies and keeps released ones for reuse.
type ProxyPool struct {
	free     []*Proxy
	maxFree  int
	nextSlot int
	inUse    int
}

// NewProxyPool creates a pool retaining at most maxFree released proxies.
func NewProxyPool(maxFree int) *ProxyPool {
	if maxFree <= 0 {
		maxFree = DefaultProxyPoolSize
	}
	return &ProxyPool{maxFree: maxFree}
}

// Acquire binds a proxy to e.
func (p *ProxyPool) Acquire(e *Entry) *Proxy {
	var px *Proxy
	if n := len(p.free); n > 0 {
		px = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		px = &Proxy{slot: p.nextSlot}
		p.nextSlot++
	}
	px.entry = e
	p.inUse++
	return px
}

// Release unbinds px and returns it to the free list.
func (p *ProxyPool) Release(px *Proxy) {
	if px == nil || px.entry == nil {
		return
	}
	px.entry = nil
	p.inUse--
	if len(p.free) < p.maxFree {
		p.free = append(p.free, px)
	}
}

// InUse returns the number of bound proxies.
func (p *ProxyPool) InUse() int { return p.inUse }

// Free returns the number of idle proxies kept for reuse.
func (p *ProxyPool) Free() int { return len(p.free) }
