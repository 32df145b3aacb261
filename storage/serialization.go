// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.



package storage

import (
	"fmt"

	"github.com/poiesic/archivist/core"
)

// MarshalPassage serializes the body of a passage. The ID lives in the key
// and metadata is stored under its own key, so neither is written here.
func MarshalPassage(passage *core.Passage) []byte {
	body := *passage
	body.ID = ""
	body.Metadata = nil
	buf := make([]byte, core.PassageMUS.Size(body))
	core.PassageMUS.Marshal(body, buf)
	return buf
}

// UnmarshalPassage deserializes a passage body stored under id.
// Metadata is initialized empty.
func UnmarshalPassage(id string, data []byte) (*core.Passage, error) {
	passage, n, err := core.PassageMUS.Unmarshal(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("%d trailing bytes", len(data)-n)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: passage %s: %w", ErrSerializationFailed, id, err)
	}
	passage.ID = id
	passage.Metadata = map[string]string{}
	return &passage, nil
}

// MarshalMetadata serializes passage metadata. A nil map is stored as empty.
func MarshalMetadata(metadata map[string]string) []byte {
	buf := make([]byte, core.MetadataMUS.Size(metadata))
	core.MetadataMUS.Marshal(metadata, buf)
	return buf
}

// UnmarshalMetadata deserializes passage metadata.
func UnmarshalMetadata(data []byte) (map[string]string, error) {
	metadata, n, err := core.MetadataMUS.Unmarshal(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("%d trailing bytes", len(data)-n)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return metadata, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, core.CheckpointMUS.Size(*checkpoint))
	core.CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := core.CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}
