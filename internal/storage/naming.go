package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"strconv"

	"github.com/google/uuid"
)

// collectionPrefix starts every collection name created by this tool
const collectionPrefix = "vc-"

// documentNamespace seeds the deterministic record ids
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dshills/vectorcode/document"))

// CollectionName derives a stable collection name from the owner and the absolute project root
func CollectionName(username, hostname, projectRoot string) string {
	sum := sha256.Sum256([]byte(username + "@" + hostname + ":" + projectRoot))
	return collectionPrefix + hex.EncodeToString(sum[:])[:32]
}

// DocumentID returns the record id of one chunk of a file.
// The id is the same every time the chunk is stored, so re-indexing replaces records.
func DocumentID(path string, chunkIndex int) uuid.UUID {
	return uuid.NewSHA1(documentNamespace, []byte(path+"#"+strconv.Itoa(chunkIndex)))
}

// CurrentOwner returns the user and host names recorded on new collections
func CurrentOwner() (username, hostname string) {
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	if username == "" {
		username = os.Getenv("USER")
	}
	hostname, _ = os.Hostname()
	return username, hostname
}
