package couchbase

// CasManager combines CAS getting and setting capabilities.
type CasManager interface {
	CasGetter
	CasSetter
}

// CasSetter is implemented by documents that track their CAS value.
// CAS (Compare-And-Swap) values are used for optimistic concurrency control.
type CasSetter interface {
	SetCas(c uint64)
}

type CasGetter interface {
	GetCas() uint64
}

// Cas can be embedded in document types that need CAS tracking.
type Cas struct {
	c uint64
}

func (c *Cas) GetCas() uint64 {
	return c.c
}

func (c *Cas) SetCas(cas uint64) {
	c.c = cas
}
