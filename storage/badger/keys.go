package badger

import (
	"bytes"
	"encoding/binary"
)

// Key prefixes for different data types
const (
	passagePrefix         = "psg:"
	passageMetadataPrefix = "psgmeta:"
	passageDocumentPrefix = "psgdoc:"
	tombstonePrefix       = "psgtomb:"
	checkpointPrefix      = "chkpt:"
)

// documentSeparator terminates the document name inside document index keys.
const documentSeparator = 0x00

// makePassageKey generates the primary key for a passage.
func makePassageKey(id string) []byte {
	return []byte(passagePrefix + id)
}

// passageIDFromKey strips the primary key prefix.
func passageIDFromKey(key []byte) string {
	return string(key[len(passagePrefix):])
}

// makeMetadataKey generates the key holding a passage's metadata.
func makeMetadataKey(id string) []byte {
	return []byte(passageMetadataPrefix + id)
}

// makeTombstoneKey generates the key recording where a removed passage went.
func makeTombstoneKey(id string) []byte {
	return []byte(tombstonePrefix + id)
}

// makeDocumentKey generates a composite key for the document order index.
// Format: prefix document 0x00 position id
func makeDocumentKey(document string, position int, id string) []byte {
	prefix := makePartialDocumentKey(document)
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makePartialDocumentKey generates the prefix shared by all index keys of a document.
// Format: prefix document 0x00
func makePartialDocumentKey(document string) []byte {
	buf := make([]byte, 0, len(passageDocumentPrefix)+len(document)+1)
	buf = append(buf, passageDocumentPrefix...)
	buf = append(buf, document...)
	return append(buf, documentSeparator)
}

// documentFromKey extracts the document name from a document index key.
func documentFromKey(key []byte) string {
	rest := key[len(passageDocumentPrefix):]
	if i := bytes.IndexByte(rest, documentSeparator); i >= 0 {
		return string(rest[:i])
	}
	return string(rest)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(checkpointPrefix + processorType)
}
