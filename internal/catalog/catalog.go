package catalog

// Catalog is the document index used by the service layer.
type Catalog interface {
	Upsert(d Document, body string) error
	Delete(path string) error
	DeletePrefix(prefix string) (int, error)
	Get(path string) (*Document, error)
	Checksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
