package core

import (
	"errors"
	"testing"
)

func TestValidatePassage(t *testing.T) {
	tests := []struct {
		name    string
		passage *Passage
		wantErr error
	}{
		{
			name: "valid passage",
			passage: &Passage{
				ID:             "p1",
				Text:           "The bank reopened in Hamburg.",
				SourceDocument: "minutes-1919",
				Position:       0,
			},
			wantErr: nil,
		},
		{
			name: "valid passage without vector or metadata",
			passage: &Passage{
				ID:             "p2",
				Text:           "Second paragraph.",
				SourceDocument: "minutes-1919",
				Position:       1,
			},
			wantErr: nil,
		},
		{
			name:    "nil passage",
			passage: nil,
			wantErr: ErrInvalidPassage,
		},
		{
			name: "empty id",
			passage: &Passage{
				Text:           "text",
				SourceDocument: "doc",
			},
			wantErr: ErrEmptyPassageID,
		},
		{
			name: "empty text",
			passage: &Passage{
				ID:             "p1",
				SourceDocument: "doc",
			},
			wantErr: ErrEmptyText,
		},
		{
			name: "empty source document",
			passage: &Passage{
				ID:   "p1",
				Text: "text",
			},
			wantErr: ErrEmptySourceDocument,
		},
		{
			name: "negative position",
			passage: &Passage{
				ID:             "p1",
				Text:           "text",
				SourceDocument: "doc",
				Position:       -1,
			},
			wantErr: ErrInvalidPosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassage(tt.passage)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePassage() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassage() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidPassage) {
				t.Errorf("ValidatePassage() error = %v, should wrap ErrInvalidPassage", err)
			}
		})
	}
}
