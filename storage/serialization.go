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

	"github.com/vmihailenco/msgpack/v5"

	"github.com/poiesic/keywordlens/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, len(id))
	copy(buf, id[:])
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	var id core.ID
	if len(data) != len(id) {
		return id, fmt.Errorf("%w: id is %d bytes", ErrSerializationFailed, len(data))
	}
	copy(id[:], data)
	return id, nil
}

func marshal[T any](v *T) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalKeyword serializes a KeywordVariation to bytes.
func MarshalKeyword(kw *core.KeywordVariation) ([]byte, error) {
	return marshal(kw)
}

// UnmarshalKeyword deserializes a KeywordVariation from bytes.
func UnmarshalKeyword(data []byte) (*core.KeywordVariation, error) {
	return unmarshal[core.KeywordVariation](data)
}

// MarshalPost serializes a ContentPost to bytes.
func MarshalPost(post *core.ContentPost) ([]byte, error) {
	return marshal(post)
}

// UnmarshalPost deserializes a ContentPost from bytes.
func UnmarshalPost(data []byte) (*core.ContentPost, error) {
	return unmarshal[core.ContentPost](data)
}

// MarshalCluster serializes a SemanticCluster to bytes.
func MarshalCluster(cluster *core.SemanticCluster) ([]byte, error) {
	return marshal(cluster)
}

// UnmarshalCluster deserializes a SemanticCluster from bytes.
func UnmarshalCluster(data []byte) (*core.SemanticCluster, error) {
	return unmarshal[core.SemanticCluster](data)
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return marshal(checkpoint)
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return unmarshal[core.Checkpoint](data)
}
