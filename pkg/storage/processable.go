package storage

// Processable is one asset bound to the storage that owns it. It lives for
// a single scan call.
type Processable struct {
	storage Storage
	asset   interface{}
}

// NewProcessable binds asset to storage
func NewProcessable(storage Storage, asset interface{}) *Processable {
	return &Processable{storage: storage, asset: asset}
}

// Asset returns the underlying asset
func (p *Processable) Asset() interface{} {
	return p.asset
}

// Storage returns the owning storage
func (p *Processable) Storage() Storage {
	return p.storage
}

// Path calls withPath with a local path to the asset. A nil withPath is a no-op.
func (p *Processable) Path(withPath func(path string) error) error {
	if withPath == nil {
		return nil
	}
	return p.storage.AssetPath(p.asset, withPath)
}

// Remove deletes the asset at its origin
func (p *Processable) Remove() error {
	return p.storage.AssetRemove(p.asset)
}
