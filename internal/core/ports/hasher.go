package ports

// Hasher computes a content fingerprint for a byte stream. Temp-storage
// content addressing and the pipeline runtime's clobber check go through
// this port; CORE A's command fingerprints are compared as plain
// producing-attribute strings and do not use it.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// Sum returns the hex-encoded content hash of data.
	Sum(data []byte) string

	// SumFile returns the hex-encoded content hash of the file at path.
	SumFile(path string) (string, error)
}
