package domain

import (
	"encoding/json"
	"strings"
)

// MediaRecord is the canonical shape of one image owned by a product. The
// external store's file identifier and the legacy public identifier are both
// optional; at least the URL is always present.
type MediaRecord struct {
	URL      string `json:"url"`
	FileID   string `json:"fileId,omitempty"`
	PublicID string `json:"public_id,omitempty"`
}

// Identifier returns the stable identifier used to match client-submitted
// "keep this image" references against stored records: fileId, else public_id,
// else the URL.
func (m MediaRecord) Identifier() string {
	if m.FileID != "" {
		return m.FileID
	}
	if m.PublicID != "" {
		return m.PublicID
	}
	return m.URL
}

// ImageInput is the ingestion-boundary representation of an image: clients and
// legacy rows may submit either a bare URL string or an object carrying
// url/secure_url, fileId and public_id. It is the single normalization point
// for heterogeneous image shapes.
type ImageInput struct {
	str string
	obj *imageObject
}

type imageObject struct {
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
	FileID    string `json:"fileId"`
	PublicID  string `json:"public_id"`
}

func (in *ImageInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		in.str = s
		in.obj = nil
		return nil
	}

	var obj imageObject
	if err := json.Unmarshal(data, &obj); err == nil {
		in.str = ""
		in.obj = &obj
		return nil
	}

	// Unusable entries (null, numbers, ...) are dropped later, not rejected.
	in.str = ""
	in.obj = nil
	return nil
}

func (in ImageInput) MarshalJSON() ([]byte, error) {
	if rec := in.Normalize(); rec != nil {
		return json.Marshal(rec)
	}
	return []byte("null"), nil
}

// Normalize converts the raw input into a canonical MediaRecord, or nil when
// no usable URL is found.
func (in ImageInput) Normalize() *MediaRecord {
	if in.obj != nil {
		url := in.obj.URL
		if url == "" {
			url = in.obj.SecureURL
		}
		if url == "" {
			return nil
		}
		return &MediaRecord{
			URL:      url,
			FileID:   in.obj.FileID,
			PublicID: in.obj.PublicID,
		}
	}

	trimmed := strings.TrimSpace(in.str)
	if trimmed == "" {
		return nil
	}
	return &MediaRecord{URL: trimmed}
}

// Identifier mirrors MediaRecord.Identifier for raw inputs: a bare string is
// its own identifier, an object resolves fileId, else public_id, else url.
func (in ImageInput) Identifier() string {
	if in.obj != nil {
		if in.obj.FileID != "" {
			return in.obj.FileID
		}
		if in.obj.PublicID != "" {
			return in.obj.PublicID
		}
		return in.obj.URL
	}
	return in.str
}

// NormalizeImages maps raw inputs through Normalize and drops the unusable
// entries.
func NormalizeImages(inputs []ImageInput) []MediaRecord {
	records := make([]MediaRecord, 0, len(inputs))
	for _, in := range inputs {
		if rec := in.Normalize(); rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// DecodeStoredImages decodes the persisted JSON image list, tolerating both
// canonical records and legacy bare-string entries.
func DecodeStoredImages(data []byte) ([]MediaRecord, error) {
	if len(data) == 0 {
		return []MediaRecord{}, nil
	}

	var inputs []ImageInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, err
	}
	return NormalizeImages(inputs), nil
}
