package vault

// Key is the unlock credential for one load attempt: a master key entered
// interactively or fetched from the cached-key store. It is used by at most
// one load attempt and wiped when that attempt completes, success or
// failure, to minimize residency in memory.
type Key struct {
	material []byte
}

// NewKey wraps key material. The caller hands over ownership; the slice is
// zeroized by Wipe.
func NewKey(material []byte) *Key {
	return &Key{material: material}
}

// Bytes returns the key material. Returns nil after Wipe.
func (k *Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	return k.material
}

// Wipe zeroizes the key material. Safe to call more than once and on nil.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	for i := range k.material {
		k.material[i] = 0
	}
	k.material = nil
}

// Wiped reports whether the material has been cleared.
func (k *Key) Wiped() bool {
	return k == nil || k.material == nil
}
