package local

func (p *Provider) HashCost() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hashCost
}

var DummyHash = dummyHash
