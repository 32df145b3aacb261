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



package core

import (
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Serializers for values stored by the badger repositories. Times are kept
// as Unix microseconds and decode in UTC.
var (
	PassageMUS    = passageMUS{}
	CheckpointMUS = checkpointMUS{}
	MetadataMUS   = ord.NewMapSer[string, string](ord.String, ord.String)

	vectorMUS = ord.NewSliceSer[float32](raw.Float32)
)

var (
	_ mus.Serializer[Passage]           = PassageMUS
	_ mus.Serializer[Checkpoint]        = CheckpointMUS
	_ mus.Serializer[map[string]string] = MetadataMUS
)

type passageMUS struct{}

func (s passageMUS) Marshal(v Passage, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.SourceDocument, bs[n:])
	n += varint.Int.Marshal(v.Position, bs[n:])
	n += MetadataMUS.Marshal(v.Metadata, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(v.InsertedAt, bs[n:])
	return n + raw.TimeUnixMicroUTC.Marshal(v.UpdatedAt, bs[n:])
}

func (s passageMUS) Unmarshal(bs []byte) (v Passage, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceDocument, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Position, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metadata, n1, err = MetadataMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if len(v.Vector) == 0 {
		v.Vector = nil
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (s passageMUS) Size(v Passage) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.SourceDocument)
	size += varint.Int.Size(v.Position)
	size += MetadataMUS.Size(v.Metadata)
	size += vectorMUS.Size(v.Vector)
	size += raw.TimeUnixMicroUTC.Size(v.InsertedAt)
	return size + raw.TimeUnixMicroUTC.Size(v.UpdatedAt)
}

func (s passageMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	for _, skip := range []func([]byte) (int, error){
		ord.String.Skip,
		ord.String.Skip,
		varint.Int.Skip,
		MetadataMUS.Skip,
		vectorMUS.Skip,
		raw.TimeUnixMicroUTC.Skip,
		raw.TimeUnixMicroUTC.Skip,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

type checkpointMUS struct{}

func (s checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.ProcessorType, bs)
	n += ord.String.Marshal(v.LastID, bs[n:])
	n += varint.Int.Marshal(v.Processed, bs[n:])
	return n + raw.TimeUnixMicroUTC.Marshal(v.UpdatedAt, bs[n:])
}

func (s checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	v.ProcessorType, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.LastID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Processed, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (s checkpointMUS) Size(v Checkpoint) (size int) {
	size = ord.String.Size(v.ProcessorType)
	size += ord.String.Size(v.LastID)
	size += varint.Int.Size(v.Processed)
	return size + raw.TimeUnixMicroUTC.Size(v.UpdatedAt)
}

func (s checkpointMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	for _, skip := range []func([]byte) (int, error){
		ord.String.Skip,
		varint.Int.Skip,
		raw.TimeUnixMicroUTC.Skip,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
