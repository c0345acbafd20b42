package badger

import (
	"fmt"

	"github.com/poiesic/keywordlens/core"
)

// Key prefixes for different data types
const (
	keywordPrefix  = "kwvar:"
	postPrefix     = "cpost:"
	clusterPrefix  = "kwclu:"
	functionPrefix = "sfunc:"
)

// appendID builds prefix followed by the 16 raw ID bytes, so keys under a
// prefix sort by ID.
func appendID(prefix string, id core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+len(id))
	buf = append(buf, prefix...)
	return append(buf, id[:]...)
}

// makeKeywordKey generates a key for a keyword variation by ID.
func makeKeywordKey(id core.ID) []byte {
	return appendID(keywordPrefix, id)
}

// makePostKey generates a key for a content post by ID.
func makePostKey(id core.ID) []byte {
	return appendID(postPrefix, id)
}

// makeClusterKey generates a key for a cluster by ID.
func makeClusterKey(id core.ID) []byte {
	return appendID(clusterPrefix, id)
}

// makeFunctionKey generates the catalog key of an installed search function.
func makeFunctionKey(name string) []byte {
	return []byte(functionPrefix + name)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
